package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"openmarket/internal/domain"
	applog "openmarket/internal/log"
	"openmarket/internal/repos"
)

// ProductCatalog is the product lookup and stock mutation the order flow
// needs. Get reports a missing product with repos.ErrNotFound.
type ProductCatalog interface {
	Get(id int) (domain.Product, error)
	SetStock(id, stock int) error
}

// CartStore resolves and consumes a user's cart entries by product id.
type CartStore interface {
	Get(userID string, productID int) (domain.CartEntry, error)
	RemoveMany(userID string, productIDs []int) (int, error)
}

type OrderStore interface {
	NextID() (int, error)
	Insert(o *domain.Order) error
}

type OrderHistory interface {
	Get(id int) (domain.Order, error)
	ListByUser(userID string, limit, offset int) ([]domain.Order, int, error)
	Delete(id int) error
}

type OrderRepository interface {
	OrderStore
	OrderHistory
}

type CartItemRef struct {
	ProductID int `json:"product_id"`
}

// PlaceOrderRequest is the body of an order submission. Pointer fields tell
// a missing value apart from a zero one.
type PlaceOrderRequest struct {
	OrderType           string        `json:"order_type"`
	ProductID           *int          `json:"product_id"`
	Quantity            *int          `json:"quantity"`
	CartItems           []CartItemRef `json:"cart_items"`
	TotalPrice          *int          `json:"total_price"`
	Receiver            string        `json:"receiver"`
	ReceiverPhoneNumber string        `json:"receiver_phone_number"`
	Address             string        `json:"address"`
	AddressMessage      string        `json:"address_message"`
	PaymentMethod       string        `json:"payment_method"`
}

const msgRequired = "This field is required."

// lineTotals prices one order line per order type. Direct orders leave the
// shipping fee out of the total, cart orders add it once per line.
// TODO: settle whether direct orders should include the shipping fee and
// collapse this to one rule.
var lineTotals = map[domain.OrderType]func(unitPrice, qty, shippingFee int) int{
	domain.DirectOrder: func(unitPrice, qty, _ int) int { return unitPrice * qty },
	domain.CartOrder:   func(unitPrice, qty, shippingFee int) int { return unitPrice*qty + shippingFee },
}

var initialStatus = map[domain.OrderType]domain.OrderStatus{
	domain.DirectOrder: domain.StatusPaymentComplete,
	domain.CartOrder:   domain.StatusPaymentPending,
}

type OrderService struct {
	Catalog ProductCatalog
	Carts   CartStore
	Orders  OrderRepository
	Locks   *StockLocks
	Now     func() time.Time

	// idMu pairs NextID with Insert so two commits never share an id.
	idMu sync.Mutex
}

func NewOrderService(catalog ProductCatalog, carts CartStore, orders OrderRepository, locks *StockLocks) *OrderService {
	if locks == nil {
		locks = NewStockLocks()
	}
	return &OrderService{Catalog: catalog, Carts: carts, Orders: orders, Locks: locks, Now: time.Now}
}

type orderLine struct {
	productID int
	qty       int
}

// Place validates req, reconciles price and stock against the catalog and
// commits the order for userID. Nothing is mutated unless every check
// passes. The returned order has no owner set.
func (s *OrderService) Place(req PlaceOrderRequest, userID string) (*domain.Order, error) {
	typ := domain.OrderType(req.OrderType)
	if _, ok := initialStatus[typ]; !ok {
		return nil, fieldError("order_type", "Must be 'direct_order' or 'cart_order'.")
	}
	if err := validateOrder(typ, req); err != nil {
		return nil, err
	}

	// Cart entries are read and consumed under the same locks.
	unlock := s.Locks.Lock(referencedProducts(typ, req)...)
	defer unlock()

	lines, err := s.resolveLines(typ, req, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(lines))
	for i, l := range lines {
		ids[i] = l.productID
	}

	products, err := s.reconcile(typ, lines, *req.TotalPrice)
	if err != nil {
		return nil, err
	}
	order, err := s.commit(typ, req, userID, lines, products)
	if err != nil {
		return nil, err
	}

	if typ == domain.CartOrder {
		// The order is already committed; leftover cart rows are harmless.
		if _, err := s.Carts.RemoveMany(userID, ids); err != nil {
			applog.Error(nil, "order.cart.cleanup.fail", err, map[string]any{"order_id": order.ID, "user_id": userID})
		}
	}

	out := *order
	out.UserID = ""
	return &out, nil
}

func validateOrder(typ domain.OrderType, req PlaceOrderRequest) error {
	v := &ValidationError{}
	switch typ {
	case domain.DirectOrder:
		if req.ProductID == nil {
			v.add("product_id", msgRequired)
		}
		if req.Quantity == nil {
			v.add("quantity", msgRequired)
		} else if *req.Quantity < 1 {
			v.add("quantity", "Ensure this value is greater than or equal to 1.")
		}
	case domain.CartOrder:
		if req.CartItems == nil {
			v.add("cart_items", msgRequired)
		} else if len(req.CartItems) == 0 {
			v.add("cart_items", "Select at least one cart item.")
		}
	}
	if req.TotalPrice == nil {
		v.add("total_price", msgRequired)
	}
	if strings.TrimSpace(req.Receiver) == "" {
		v.add("receiver", msgRequired)
	}
	if strings.TrimSpace(req.ReceiverPhoneNumber) == "" {
		v.add("receiver_phone_number", msgRequired)
	}
	if req.PaymentMethod == "" {
		v.add("payment_method", msgRequired)
	} else if !domain.PaymentMethod(req.PaymentMethod).Valid() {
		v.add("payment_method", fmt.Sprintf("%q is not a valid choice.", req.PaymentMethod))
	}
	return v.orNil()
}

func referencedProducts(typ domain.OrderType, req PlaceOrderRequest) []int {
	if typ == domain.DirectOrder {
		return []int{*req.ProductID}
	}
	ids := make([]int, len(req.CartItems))
	for i, ref := range req.CartItems {
		ids[i] = ref.ProductID
	}
	return ids
}

// resolveLines turns the request into (product, quantity) pairs. For cart
// orders every reference must be an entry of userID; all bad references are
// reported together.
func (s *OrderService) resolveLines(typ domain.OrderType, req PlaceOrderRequest, userID string) ([]orderLine, error) {
	if typ == domain.DirectOrder {
		return []orderLine{{productID: *req.ProductID, qty: *req.Quantity}}, nil
	}

	seen := map[int]bool{}
	var lines []orderLine
	var invalid []string
	for _, ref := range req.CartItems {
		if seen[ref.ProductID] {
			continue
		}
		seen[ref.ProductID] = true
		entry, err := s.Carts.Get(userID, ref.ProductID)
		if errors.Is(err, repos.ErrNotFound) {
			invalid = append(invalid, strconv.Itoa(ref.ProductID))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load cart entry for product %d: %w", ref.ProductID, err)
		}
		lines = append(lines, orderLine{productID: ref.ProductID, qty: entry.Quantity})
	}
	if len(invalid) > 0 {
		return nil, fieldError(NonFieldErrors, "The following cart items are invalid: "+strings.Join(invalid, ", "))
	}
	return lines, nil
}

// reconcile reads current stock and price for every line and checks the
// client total. Callers hold the stock locks for all lines.
func (s *OrderService) reconcile(typ domain.OrderType, lines []orderLine, clientTotal int) ([]domain.Product, error) {
	lineTotal := lineTotals[typ]
	products := make([]domain.Product, len(lines))
	total := 0
	for i, l := range lines {
		p, err := s.Catalog.Get(l.productID)
		if errors.Is(err, repos.ErrNotFound) {
			// A cart entry can outlive its product.
			return nil, &NotFoundError{Resource: "product", ID: l.productID, FromCart: typ == domain.CartOrder}
		}
		if err != nil {
			return nil, fmt.Errorf("load product %d: %w", l.productID, err)
		}
		if p.Stock < l.qty {
			return nil, &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Requested: l.qty, Available: p.Stock}
		}
		products[i] = p
		total += lineTotal(p.Price, l.qty, p.ShippingFee)
	}
	if total != clientTotal {
		return nil, &PriceMismatchError{Expected: total, Got: clientTotal}
	}
	return products, nil
}

type stockChange struct {
	productID int
	before    int
}

func (s *OrderService) commit(typ domain.OrderType, req PlaceOrderRequest, userID string, lines []orderLine, products []domain.Product) (*domain.Order, error) {
	lineTotal := lineTotals[typ]
	items := make([]domain.OrderItem, len(lines))
	applied := make([]stockChange, 0, len(lines))
	for i, l := range lines {
		p := products[i]
		if err := s.Catalog.SetStock(p.ID, p.Stock-l.qty); err != nil {
			s.restoreStock(applied)
			return nil, fmt.Errorf("update stock for product %d: %w", p.ID, err)
		}
		applied = append(applied, stockChange{productID: p.ID, before: p.Stock})

		snap := p
		snap.Stock = p.Stock - l.qty
		items[i] = domain.OrderItem{
			Product:            snap,
			OrderedQuantity:    l.qty,
			OrderedUnitPrice:   p.Price,
			OrderedShippingFee: p.ShippingFee,
			ItemTotalPrice:     lineTotal(p.Price, l.qty, p.ShippingFee),
		}
	}

	s.idMu.Lock()
	defer s.idMu.Unlock()

	id, err := s.Orders.NextID()
	if err != nil {
		s.restoreStock(applied)
		return nil, fmt.Errorf("next order id: %w", err)
	}
	now := s.Now()
	ts := domain.Timestamp(now)
	order := &domain.Order{
		ID:                  id,
		UserID:              userID,
		OrderNumber:         fmt.Sprintf("%d-%06d", now.UnixMilli(), id),
		PaymentMethod:       domain.PaymentMethod(req.PaymentMethod),
		Status:              initialStatus[typ],
		Type:                typ,
		TotalPrice:          *req.TotalPrice,
		Items:               items,
		Receiver:            req.Receiver,
		ReceiverPhoneNumber: req.ReceiverPhoneNumber,
		Address:             req.Address,
		DeliveryMessage:     req.AddressMessage,
		CreatedAt:           ts,
		UpdatedAt:           ts,
	}
	if err := s.Orders.Insert(order); err != nil {
		s.restoreStock(applied)
		return nil, fmt.Errorf("insert order: %w", err)
	}
	return order, nil
}

// restoreStock writes back the pre-order stock of every line already
// decremented. Locks are still held, so nobody saw the interim values.
func (s *OrderService) restoreStock(applied []stockChange) {
	for i := len(applied) - 1; i >= 0; i-- {
		c := applied[i]
		if err := s.Catalog.SetStock(c.productID, c.before); err != nil {
			applog.Error(nil, "order.stock.restore.fail", err, map[string]any{"product_id": c.productID, "stock": c.before})
		}
	}
}

// List returns userID's orders, owner stripped.
func (s *OrderService) List(userID string, page Page) ([]domain.Order, int, error) {
	orders, count, err := s.Orders.ListByUser(userID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	for i := range orders {
		orders[i].UserID = ""
	}
	return orders, count, nil
}

// Get returns the order only to its owner; anyone else gets NotFound.
func (s *OrderService) Get(userID string, id int) (*domain.Order, error) {
	o, err := s.Orders.Get(id)
	if errors.Is(err, repos.ErrNotFound) || (err == nil && o.UserID != userID) {
		return nil, &NotFoundError{Resource: "order", ID: id, FromPath: true}
	}
	if err != nil {
		return nil, err
	}
	o.UserID = ""
	return &o, nil
}

// Cancel deletes the owner's order. Stock is not given back.
func (s *OrderService) Cancel(userID string, id int) error {
	if _, err := s.Get(userID, id); err != nil {
		return err
	}
	return s.Orders.Delete(id)
}
