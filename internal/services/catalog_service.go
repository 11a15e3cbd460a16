package services

import (
	"errors"
	"strings"

	"openmarket/internal/domain"
	"openmarket/internal/repos"
	"openmarket/internal/validate"
)

type CatalogService struct {
	Prods *repos.ProductRepo
	Locks *StockLocks
}

func NewCatalogService(prods *repos.ProductRepo, locks *StockLocks) *CatalogService {
	if locks == nil {
		locks = NewStockLocks()
	}
	return &CatalogService{Prods: prods, Locks: locks}
}

func (s *CatalogService) List(search string, page Page) ([]domain.Product, int, error) {
	return s.Prods.Search(strings.TrimSpace(search), page.Limit(), page.Offset())
}

func (s *CatalogService) ListBySeller(seller string, page Page) ([]domain.Product, int, error) {
	return s.Prods.ListBySeller(seller, page.Limit(), page.Offset())
}

func (s *CatalogService) Get(id int) (domain.Product, error) {
	p, err := s.Prods.Get(id)
	if errors.Is(err, repos.ErrNotFound) {
		return domain.Product{}, &NotFoundError{Resource: "product", ID: id, FromPath: true}
	}
	return p, err
}

// ProductPatch lists the editable fields; nil means unchanged.
type ProductPatch struct {
	Name           *string `json:"name"`
	Info           *string `json:"info"`
	Image          *string `json:"image"`
	Price          *int    `json:"price"`
	ShippingMethod *string `json:"shipping_method"`
	ShippingFee    *int    `json:"shipping_fee"`
	Stock          *int    `json:"stock"`
}

func (p ProductPatch) validate() error {
	v := &ValidationError{}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		v.add("name", "This field may not be blank.")
	}
	if p.Price != nil && *p.Price < 0 {
		v.add("price", "Ensure this value is greater than or equal to 0.")
	}
	if p.ShippingFee != nil && *p.ShippingFee < 0 {
		v.add("shipping_fee", "Ensure this value is greater than or equal to 0.")
	}
	if p.Stock != nil && *p.Stock < 0 {
		v.add("stock", "Ensure this value is greater than or equal to 0.")
	}
	if p.ShippingMethod != nil {
		if _, ok := validate.ShippingMethod(*p.ShippingMethod); !ok {
			v.add("shipping_method", "Must be 'PARCEL' or 'DELIVERY'.")
		}
	}
	return v.orNil()
}

// Update applies patch to the seller's own product. The stock lock is held
// so an edit never interleaves with an order commit on the same product.
func (s *CatalogService) Update(userID string, id int, patch ProductPatch) (domain.Product, error) {
	if err := patch.validate(); err != nil {
		return domain.Product{}, err
	}
	unlock := s.Locks.Lock(id)
	defer unlock()

	p, err := s.Get(id)
	if err != nil {
		return domain.Product{}, err
	}
	if p.Seller.Username != userID {
		return domain.Product{}, ErrForbidden
	}
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Info != nil {
		p.Info = *patch.Info
	}
	if patch.Image != nil {
		p.Image = *patch.Image
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.ShippingMethod != nil {
		p.ShippingMethod = domain.ShippingMethod(strings.ToUpper(strings.TrimSpace(*patch.ShippingMethod)))
	}
	if patch.ShippingFee != nil {
		p.ShippingFee = *patch.ShippingFee
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if err := s.Prods.Update(p); err != nil {
		return domain.Product{}, err
	}
	return s.Prods.Get(id)
}

// Delete removes a product; only its seller may do so.
func (s *CatalogService) Delete(userID string, id int) error {
	unlock := s.Locks.Lock(id)
	defer unlock()

	p, err := s.Get(id)
	if err != nil {
		return err
	}
	if p.Seller.Username != userID {
		return ErrForbidden
	}
	return s.Prods.Delete(id)
}
