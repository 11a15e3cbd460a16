package services

import (
	"errors"

	"openmarket/internal/domain"
	"openmarket/internal/repos"
)

// CartService edits cart entries under the product's stock lock, the same
// lock an order holds while it reads and removes those entries.
type CartService struct {
	Carts *repos.CartRepo
	Prods *repos.ProductRepo
	Locks *StockLocks
}

func NewCartService(carts *repos.CartRepo, prods *repos.ProductRepo, locks *StockLocks) *CartService {
	if locks == nil {
		locks = NewStockLocks()
	}
	return &CartService{Carts: carts, Prods: prods, Locks: locks}
}

func (s *CartService) Add(userID string, productID, qty int) (domain.CartEntry, error) {
	if qty < 1 {
		return domain.CartEntry{}, fieldError("quantity", "Ensure this value is greater than or equal to 1.")
	}
	defer s.Locks.Lock(productID)()

	p, err := s.Prods.Get(productID)
	if errors.Is(err, repos.ErrNotFound) {
		return domain.CartEntry{}, &NotFoundError{Resource: "product", ID: productID}
	}
	if err != nil {
		return domain.CartEntry{}, err
	}
	return s.Carts.Upsert(userID, p, qty)
}

func (s *CartService) List(userID string, page Page) ([]domain.CartEntry, int, error) {
	return s.Carts.List(userID, page.Limit(), page.Offset())
}

// owned loads an entry and checks it belongs to userID.
func (s *CartService) owned(userID string, id int) (domain.CartEntry, error) {
	e, err := s.Carts.ByID(id)
	if errors.Is(err, repos.ErrNotFound) {
		return domain.CartEntry{}, &NotFoundError{Resource: "cart item", ID: id, FromPath: true}
	}
	if err != nil {
		return domain.CartEntry{}, err
	}
	if e.UserID != userID {
		return domain.CartEntry{}, ErrForbidden
	}
	return e, nil
}

func (s *CartService) Get(userID string, id int) (domain.CartEntry, error) {
	return s.owned(userID, id)
}

func (s *CartService) UpdateQuantity(userID string, id, qty int) (domain.CartEntry, error) {
	e, err := s.owned(userID, id)
	if err != nil {
		return domain.CartEntry{}, err
	}
	if qty < 1 {
		return domain.CartEntry{}, fieldError("quantity", "Ensure this value is greater than or equal to 1.")
	}
	defer s.Locks.Lock(e.Product.ID)()
	updated, err := s.Carts.UpdateQuantity(id, qty)
	if errors.Is(err, repos.ErrNotFound) {
		// consumed by an order while we waited for the lock
		return domain.CartEntry{}, &NotFoundError{Resource: "cart item", ID: id, FromPath: true}
	}
	return updated, err
}

func (s *CartService) Delete(userID string, id int) error {
	e, err := s.owned(userID, id)
	if err != nil {
		return err
	}
	defer s.Locks.Lock(e.Product.ID)()
	err = s.Carts.Delete(id)
	if errors.Is(err, repos.ErrNotFound) {
		return &NotFoundError{Resource: "cart item", ID: id, FromPath: true}
	}
	return err
}

// Clear empties the user's cart and reports how many entries went.
func (s *CartService) Clear(userID string) (int, error) {
	return s.Carts.Clear(userID)
}
