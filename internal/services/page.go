package services

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) Limit() int  { return p.Size }
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// HasNext reports whether rows remain after this page out of count.
func (p Page) HasNext(count int) bool { return p.Number*p.Size < count }

func (p Page) HasPrevious() bool { return p.Number > 1 }
