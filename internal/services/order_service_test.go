package services_test

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openmarket/internal/domain"
	"openmarket/internal/repos"
	"openmarket/internal/services"
)

type orderEnv struct {
	db    *sqlx.DB
	prods *repos.ProductRepo
	carts *repos.CartRepo
	ords  *repos.OrderRepo
	svc   *services.OrderService
}

func newOrderEnv(t *testing.T) *orderEnv {
	t.Helper()
	db := memdb(t)
	e := &orderEnv{
		db:    db,
		prods: repos.NewProductRepo(db),
		carts: repos.NewCartRepo(db),
		ords:  repos.NewOrderRepo(db),
	}
	e.svc = services.NewOrderService(e.prods, e.carts, e.ords, nil)
	return e
}

func direct(productID, qty, total int) services.PlaceOrderRequest {
	return services.PlaceOrderRequest{
		OrderType:           string(domain.DirectOrder),
		ProductID:           ptr(productID),
		Quantity:            ptr(qty),
		TotalPrice:          ptr(total),
		Receiver:            "Alice",
		ReceiverPhoneNumber: "01011112222",
		Address:             "Seoul",
		AddressMessage:      "leave at the door",
		PaymentMethod:       string(domain.PayCard),
	}
}

func cartOrder(total int, productIDs ...int) services.PlaceOrderRequest {
	refs := make([]services.CartItemRef, len(productIDs))
	for i, id := range productIDs {
		refs[i] = services.CartItemRef{ProductID: id}
	}
	return services.PlaceOrderRequest{
		OrderType:           string(domain.CartOrder),
		CartItems:           refs,
		TotalPrice:          ptr(total),
		Receiver:            "Alice",
		ReceiverPhoneNumber: "01011112222",
		PaymentMethod:       string(domain.PayKakaoPay),
	}
}

func TestPlace_DirectOrder(t *testing.T) {
	e := newOrderEnv(t)
	p := addProduct(t, e.db, "Mug", 1000, 0, 5)

	o, err := e.svc.Place(direct(p.ID, 2, 2000), "alice")
	require.NoError(t, err)

	assert.Equal(t, 2000, o.TotalPrice)
	assert.Equal(t, domain.StatusPaymentComplete, o.Status)
	assert.Equal(t, domain.DirectOrder, o.Type)
	assert.Empty(t, o.UserID)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 2000, o.Items[0].ItemTotalPrice)
	assert.Equal(t, 2, o.Items[0].OrderedQuantity)
	assert.Equal(t, 1000, o.Items[0].OrderedUnitPrice)
	assert.Equal(t, "leave at the door", o.DeliveryMessage)
	assert.Equal(t, 3, stockOf(t, e.db, p.ID))

	stored, err := e.ords.Get(o.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.UserID)
	assert.Equal(t, o.OrderNumber, stored.OrderNumber)
}

func TestPlace_DirectOrderLeavesShippingFeeOutOfTotal(t *testing.T) {
	e := newOrderEnv(t)
	p := addProduct(t, e.db, "Planner", 17500, 3000, 10)

	_, err := e.svc.Place(direct(p.ID, 2, 38000), "alice")
	var pm *services.PriceMismatchError
	require.ErrorAs(t, err, &pm)
	assert.Equal(t, 35000, pm.Expected)

	o, err := e.svc.Place(direct(p.ID, 2, 35000), "alice")
	require.NoError(t, err)
	assert.Equal(t, 3000, o.Items[0].OrderedShippingFee)
	assert.Equal(t, 35000, o.Items[0].ItemTotalPrice)
}

func TestPlace_InsufficientStock(t *testing.T) {
	e := newOrderEnv(t)
	p := addProduct(t, e.db, "Mug", 1000, 0, 5)

	_, err := e.svc.Place(direct(p.ID, 6, 6000), "alice")
	var ise *services.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, p.ID, ise.ProductID)
	assert.Contains(t, err.Error(), "Mug(1)")
	assert.Equal(t, 5, stockOf(t, e.db, p.ID))
	assert.Zero(t, countOrders(t, e.db))
}

func TestPlace_PriceMismatch(t *testing.T) {
	e := newOrderEnv(t)
	p := addProduct(t, e.db, "Mug", 1000, 0, 5)

	_, err := e.svc.Place(direct(p.ID, 2, 1999), "alice")
	var pm *services.PriceMismatchError
	require.ErrorAs(t, err, &pm)
	assert.Equal(t, 2000, pm.Expected)
	assert.Equal(t, 1999, pm.Got)
	assert.Contains(t, err.Error(), "2000")
	assert.Equal(t, 5, stockOf(t, e.db, p.ID))
}

func TestPlace_StockBoundary(t *testing.T) {
	e := newOrderEnv(t)
	p := addProduct(t, e.db, "Mug", 100, 0, 4)

	_, err := e.svc.Place(direct(p.ID, 5, 500), "alice")
	var ise *services.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 4, stockOf(t, e.db, p.ID))

	_, err = e.svc.Place(direct(p.ID, 4, 400), "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, stockOf(t, e.db, p.ID))
}

func TestPlace_DirectOrderUnknownProduct(t *testing.T) {
	e := newOrderEnv(t)

	_, err := e.svc.Place(direct(99, 1, 100), "alice")
	var nf *services.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 99, nf.ID)
	assert.Equal(t, `Invalid pk "99" - object does not exist.`, nf.Detail())
}

func TestPlace_Validation(t *testing.T) {
	e := newOrderEnv(t)

	t.Run("unknown order type", func(t *testing.T) {
		req := direct(1, 1, 100)
		req.OrderType = "gift_order"
		_, err := e.svc.Place(req, "alice")
		var ve *services.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields, "order_type")
	})

	t.Run("missing direct fields are reported together", func(t *testing.T) {
		_, err := e.svc.Place(services.PlaceOrderRequest{
			OrderType:     string(domain.DirectOrder),
			PaymentMethod: "bitcoin",
		}, "alice")
		var ve *services.ValidationError
		require.ErrorAs(t, err, &ve)
		for _, f := range []string{"product_id", "quantity", "total_price", "receiver", "receiver_phone_number", "payment_method"} {
			assert.Contains(t, ve.Fields, f)
		}
		assert.Contains(t, ve.Fields["payment_method"][0], "bitcoin")
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		_, err := e.svc.Place(direct(1, 0, 0), "alice")
		var ve *services.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields, "quantity")
	})

	t.Run("empty cart items", func(t *testing.T) {
		_, err := e.svc.Place(cartOrder(0), "alice")
		var ve *services.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields, "cart_items")
	})

	t.Run("blank receiver counts as missing", func(t *testing.T) {
		req := direct(1, 1, 100)
		req.Receiver = "   "
		_, err := e.svc.Place(req, "alice")
		var ve *services.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{"This field is required."}, ve.Fields["receiver"])
	})
}

func TestPlace_CartOrder(t *testing.T) {
	e := newOrderEnv(t)
	a := addProduct(t, e.db, "Planner", 17500, 3000, 10)
	b := addProduct(t, e.db, "Stickers", 4500, 2500, 10)
	c := addProduct(t, e.db, "Keyboard", 89000, 0, 10)

	_, err := e.carts.Upsert("alice", a, 2)
	require.NoError(t, err)
	_, err = e.carts.Upsert("alice", b, 1)
	require.NoError(t, err)
	_, err = e.carts.Upsert("alice", c, 1)
	require.NoError(t, err)
	_, err = e.carts.Upsert("bob", a, 1)
	require.NoError(t, err)

	// (17500*2 + 3000) + (4500*1 + 2500)
	o, err := e.svc.Place(cartOrder(45000, a.ID, b.ID), "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaymentPending, o.Status)
	require.Len(t, o.Items, 2)
	assert.Equal(t, 38000, o.Items[0].ItemTotalPrice)
	assert.Equal(t, 7000, o.Items[1].ItemTotalPrice)
	assert.Equal(t, 8, stockOf(t, e.db, a.ID))
	assert.Equal(t, 9, stockOf(t, e.db, b.ID))

	left, n, err := e.carts.List("alice", 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, c.ID, left[0].Product.ID)

	_, err = e.carts.Get("bob", a.ID)
	assert.NoError(t, err, "other users' entries stay")
}

func TestPlace_CartOrderUsesCurrentPriceNotSnapshot(t *testing.T) {
	e := newOrderEnv(t)
	p := addProduct(t, e.db, "Mug", 1000, 500, 10)
	_, err := e.carts.Upsert("alice", p, 1)
	require.NoError(t, err)

	p.Price = 1200
	require.NoError(t, e.prods.Update(p))

	_, err = e.svc.Place(cartOrder(1500, p.ID), "alice")
	var pm *services.PriceMismatchError
	require.ErrorAs(t, err, &pm)
	assert.Equal(t, 1700, pm.Expected)

	o, err := e.svc.Place(cartOrder(1700, p.ID), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1200, o.Items[0].OrderedUnitPrice)
}

func TestPlace_CartOrderInvalidRefsListedTogether(t *testing.T) {
	e := newOrderEnv(t)
	a := addProduct(t, e.db, "A", 100, 0, 10)
	b := addProduct(t, e.db, "B", 100, 0, 10)
	_, err := e.carts.Upsert("alice", a, 1)
	require.NoError(t, err)
	_, err = e.carts.Upsert("bob", b, 1)
	require.NoError(t, err)

	_, err = e.svc.Place(cartOrder(100, a.ID, b.ID, 77), "alice")
	var ve *services.ValidationError
	require.ErrorAs(t, err, &ve)
	msgs := ve.Fields[services.NonFieldErrors]
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "2, 77")
	assert.Equal(t, 10, stockOf(t, e.db, a.ID))
}

func TestPlace_CartOrderIsAllOrNothing(t *testing.T) {
	e := newOrderEnv(t)
	a := addProduct(t, e.db, "A", 100, 0, 10)
	b := addProduct(t, e.db, "B", 100, 0, 1)
	_, err := e.carts.Upsert("alice", a, 2)
	require.NoError(t, err)
	_, err = e.carts.Upsert("alice", b, 3)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = e.svc.Place(cartOrder(500, a.ID, b.ID), "alice")
		var ise *services.InsufficientStockError
		require.ErrorAs(t, err, &ise)
		assert.Equal(t, b.ID, ise.ProductID)
	}
	assert.Equal(t, 10, stockOf(t, e.db, a.ID))
	assert.Equal(t, 1, stockOf(t, e.db, b.ID))
	assert.Zero(t, countOrders(t, e.db))
	_, n, err := e.carts.List("alice", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPlace_SnapshotSurvivesCatalogEdit(t *testing.T) {
	e := newOrderEnv(t)
	p := addProduct(t, e.db, "Mug", 1000, 0, 5)

	o, err := e.svc.Place(direct(p.ID, 1, 1000), "alice")
	require.NoError(t, err)

	p.Name = "Renamed"
	p.Price = 9999
	require.NoError(t, e.prods.Update(p))

	got, err := e.svc.Get("alice", o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mug", got.Items[0].Product.Name)
	assert.Equal(t, 1000, got.Items[0].Product.Price)
	assert.Equal(t, 4, got.Items[0].Product.Stock)
}

func TestPlace_OrderNumber(t *testing.T) {
	e := newOrderEnv(t)
	e.svc.Now = func() time.Time { return time.UnixMilli(1700000000123) }
	p := addProduct(t, e.db, "Mug", 1000, 0, 5)

	o, err := e.svc.Place(direct(p.ID, 1, 1000), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, o.ID)
	assert.Equal(t, "1700000000123-000001", o.OrderNumber)
	assert.Regexp(t, `^\d+-000001$`, o.OrderNumber)
}

func TestOrderIDsAreNotReusedAfterCancel(t *testing.T) {
	e := newOrderEnv(t)
	p := addProduct(t, e.db, "Mug", 1000, 0, 5)

	first, err := e.svc.Place(direct(p.ID, 1, 1000), "alice")
	require.NoError(t, err)
	require.NoError(t, e.svc.Cancel("alice", first.ID))

	second, err := e.svc.Place(direct(p.ID, 1, 1000), "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID+1, second.ID)
	assert.NotEqual(t, first.OrderNumber, second.OrderNumber)
	assert.Equal(t, 3, stockOf(t, e.db, p.ID), "cancel does not give stock back")
}

func TestPlace_ConcurrentOrdersNeverOversell(t *testing.T) {
	e := newOrderEnv(t)
	p := addProduct(t, e.db, "Limited", 100, 0, 10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, short := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.Place(direct(p.ID, 1, 100), "alice")
			mu.Lock()
			defer mu.Unlock()
			var ise *services.InsufficientStockError
			switch {
			case err == nil:
				ok++
			case errors.As(err, &ise):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 10, short)
	assert.Equal(t, 0, stockOf(t, e.db, p.ID))
	assert.Equal(t, 10, countOrders(t, e.db))
}

// flakyCatalog fails SetStock for one product id.
type flakyCatalog struct {
	*repos.ProductRepo
	failID int
}

func (f flakyCatalog) SetStock(id, stock int) error {
	if id == f.failID {
		return errors.New("disk full")
	}
	return f.ProductRepo.SetStock(id, stock)
}

func TestPlace_StockWriteFailureRestoresEarlierLines(t *testing.T) {
	e := newOrderEnv(t)
	a := addProduct(t, e.db, "A", 100, 0, 10)
	b := addProduct(t, e.db, "B", 100, 0, 10)
	_, err := e.carts.Upsert("alice", a, 2)
	require.NoError(t, err)
	_, err = e.carts.Upsert("alice", b, 2)
	require.NoError(t, err)

	svc := services.NewOrderService(flakyCatalog{ProductRepo: e.prods, failID: b.ID}, e.carts, e.ords, nil)
	_, err = svc.Place(cartOrder(400, a.ID, b.ID), "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, 10, stockOf(t, e.db, a.ID))
	assert.Equal(t, 10, stockOf(t, e.db, b.ID))
	assert.Zero(t, countOrders(t, e.db))
	_, n, err := e.carts.List("alice", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// slowCarts widens the gap between reading a cart entry and using it.
type slowCarts struct {
	*repos.CartRepo
}

func (s slowCarts) Get(userID string, productID int) (domain.CartEntry, error) {
	e, err := s.CartRepo.Get(userID, productID)
	time.Sleep(20 * time.Millisecond)
	return e, err
}

func TestPlace_CartEntryFeedsOneOrder(t *testing.T) {
	e := newOrderEnv(t)
	p := addProduct(t, e.db, "Mug", 100, 0, 100)
	_, err := e.carts.Upsert("alice", p, 1)
	require.NoError(t, err)
	svc := services.NewOrderService(e.prods, slowCarts{e.carts}, e.ords, nil)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Place(cartOrder(100, p.ID), "alice")
		}(i)
	}
	wg.Wait()

	placed := 0
	for _, err := range errs {
		if err == nil {
			placed++
			continue
		}
		var ve *services.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields[services.NonFieldErrors][0], "cart items are invalid")
	}
	assert.Equal(t, 1, placed)
	assert.Equal(t, 99, stockOf(t, e.db, p.ID))
	assert.Equal(t, 1, countOrders(t, e.db))
}

func TestPlace_CartOrderForDeletedProduct(t *testing.T) {
	e := newOrderEnv(t)
	p := addProduct(t, e.db, "Mug", 100, 0, 5)
	_, err := e.carts.Upsert("alice", p, 1)
	require.NoError(t, err)
	require.NoError(t, e.prods.Delete(p.ID))

	_, err = e.svc.Place(cartOrder(100, p.ID), "alice")
	var nf *services.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.True(t, nf.FromCart)
	assert.Equal(t, fmt.Sprintf("Invalid pk %q - object does not exist.", strconv.Itoa(p.ID)), nf.Detail())
	assert.Zero(t, countOrders(t, e.db))

	_, n, err := e.carts.List("alice", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "cart is left for the user to fix")

	_, err = e.svc.Place(direct(p.ID, 1, 100), "alice")
	require.ErrorAs(t, err, &nf)
	assert.False(t, nf.FromCart)
}

func TestOrders_OwnerOnly(t *testing.T) {
	e := newOrderEnv(t)
	p := addProduct(t, e.db, "Mug", 1000, 0, 5)
	o, err := e.svc.Place(direct(p.ID, 1, 1000), "alice")
	require.NoError(t, err)

	_, err = e.svc.Get("bob", o.ID)
	var nf *services.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "No Order matches the given query.", nf.Detail())

	require.ErrorAs(t, e.svc.Cancel("bob", o.ID), &nf)

	list, n, err := e.svc.List("alice", services.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, list[0].UserID)

	_, n, err = e.svc.List("bob", services.NewPage(1, 10))
	require.NoError(t, err)
	assert.Zero(t, n)
}
