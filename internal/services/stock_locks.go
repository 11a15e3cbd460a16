package services

import (
	"sort"
	"sync"
)

// StockLocks hands out one mutex per product id. Everything that reads a
// product's stock and then writes it holds that product's lock in between.
type StockLocks struct {
	mu    sync.Mutex
	locks map[int]*stockLock
}

type stockLock struct {
	sync.Mutex
	refs int
}

func NewStockLocks() *StockLocks {
	return &StockLocks{locks: map[int]*stockLock{}}
}

// Lock acquires the locks for ids in ascending order, so two callers with
// overlapping sets cannot deadlock. The returned func releases them.
func (s *StockLocks) Lock(ids ...int) (unlock func()) {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)
	sorted = dedupe(sorted)

	held := make([]*stockLock, 0, len(sorted))
	for _, id := range sorted {
		l := s.acquire(id)
		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
			s.release(sorted[i])
		}
	}
}

func (s *StockLocks) acquire(id int) *stockLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &stockLock{}
		s.locks[id] = l
	}
	l.refs++
	return l
}

func (s *StockLocks) release(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.locks[id]
	l.refs--
	if l.refs == 0 {
		delete(s.locks, id)
	}
}

func dedupe(sorted []int) []int {
	out := sorted[:0]
	for _, v := range sorted {
		if len(out) == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
