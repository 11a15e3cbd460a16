package repos

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"

	"openmarket/internal/domain"
)

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

type orderRow struct {
	ID                  int    `db:"id"`
	Username            string `db:"username"`
	OrderNumber         string `db:"order_number"`
	PaymentMethod       string `db:"payment_method"`
	Status              string `db:"order_status"`
	Type                string `db:"order_type"`
	TotalPrice          int    `db:"total_price"`
	Receiver            string `db:"receiver"`
	ReceiverPhoneNumber string `db:"receiver_phone_number"`
	Address             string `db:"address"`
	DeliveryMessage     string `db:"delivery_message"`
	CreatedAt           string `db:"created_at"`
	UpdatedAt           string `db:"updated_at"`
}

type orderItemRow struct {
	OrderID            int    `db:"order_id"`
	ProductJSON        string `db:"product_json"`
	OrderedQuantity    int    `db:"ordered_quantity"`
	OrderedUnitPrice   int    `db:"ordered_unit_price"`
	OrderedShippingFee int    `db:"ordered_shipping_fee"`
	ItemTotalPrice     int    `db:"item_total_price"`
}

const orderSelect = `
  SELECT id, username, order_number, payment_method, order_status, order_type, total_price,
         receiver, receiver_phone_number, address, delivery_message, created_at, updated_at
  FROM orders`

// NextID returns one past the highest id ever handed out, so a cancelled
// order's id is not reused.
func (r *OrderRepo) NextID() (int, error) {
	var n int
	err := r.db.Get(&n, `
		SELECT MAX(
		  COALESCE((SELECT MAX(id) FROM orders), 0),
		  COALESCE((SELECT seq FROM sqlite_sequence WHERE name = 'orders'), 0)
		) + 1`)
	return n, err
}

// Insert writes the order header and its items in one transaction.
func (r *OrderRepo) Insert(o *domain.Order) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
	  INSERT INTO orders
	    (id, username, order_number, payment_method, order_status, order_type, total_price,
	     receiver, receiver_phone_number, address, delivery_message, created_at, updated_at)
	  VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, o.ID, o.UserID, o.OrderNumber, o.PaymentMethod, o.Status, o.Type, o.TotalPrice,
		o.Receiver, o.ReceiverPhoneNumber, o.Address, o.DeliveryMessage, o.CreatedAt, o.UpdatedAt); err != nil {
		return err
	}
	for i, it := range o.Items {
		snap, err := json.Marshal(it.Product)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`
		  INSERT INTO order_items(order_id, position, product_json, ordered_quantity, ordered_unit_price, ordered_shipping_fee, item_total_price)
		  VALUES(?,?,?,?,?,?,?)
		`, o.ID, i, string(snap), it.OrderedQuantity, it.OrderedUnitPrice, it.OrderedShippingFee, it.ItemTotalPrice); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *OrderRepo) Get(id int) (domain.Order, error) {
	var row orderRow
	if err := r.db.Get(&row, orderSelect+` WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, ErrNotFound
		}
		return domain.Order{}, err
	}
	orders, err := r.withItems([]orderRow{row})
	if err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

func (r *OrderRepo) ListByUser(username string, limit, offset int) ([]domain.Order, int, error) {
	var count int
	if err := r.db.Get(&count, `SELECT COUNT(*) FROM orders WHERE username = ?`, username); err != nil {
		return nil, 0, err
	}
	var rows []orderRow
	if err := r.db.Select(&rows, orderSelect+` WHERE username = ? ORDER BY id LIMIT ? OFFSET ?`,
		username, limit, offset); err != nil {
		return nil, 0, err
	}
	out, err := r.withItems(rows)
	return out, count, err
}

func (r *OrderRepo) Delete(id int) error {
	res, err := r.db.Exec(`DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *OrderRepo) withItems(rows []orderRow) ([]domain.Order, error) {
	out := make([]domain.Order, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]int, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	query, args, err := sqlx.In(`
		SELECT order_id, product_json, ordered_quantity, ordered_unit_price, ordered_shipping_fee, item_total_price
		FROM order_items WHERE order_id IN (?) ORDER BY order_id, position`, ids)
	if err != nil {
		return nil, err
	}
	var items []orderItemRow
	if err := r.db.Select(&items, query, args...); err != nil {
		return nil, err
	}
	byOrder := map[int][]domain.OrderItem{}
	for _, it := range items {
		oi := domain.OrderItem{
			OrderedQuantity:    it.OrderedQuantity,
			OrderedUnitPrice:   it.OrderedUnitPrice,
			OrderedShippingFee: it.OrderedShippingFee,
			ItemTotalPrice:     it.ItemTotalPrice,
		}
		if err := json.Unmarshal([]byte(it.ProductJSON), &oi.Product); err != nil {
			return nil, err
		}
		byOrder[it.OrderID] = append(byOrder[it.OrderID], oi)
	}
	for _, row := range rows {
		out = append(out, domain.Order{
			ID:                  row.ID,
			UserID:              row.Username,
			OrderNumber:         row.OrderNumber,
			PaymentMethod:       domain.PaymentMethod(row.PaymentMethod),
			Status:              domain.OrderStatus(row.Status),
			Type:                domain.OrderType(row.Type),
			TotalPrice:          row.TotalPrice,
			Items:               byOrder[row.ID],
			Receiver:            row.Receiver,
			ReceiverPhoneNumber: row.ReceiverPhoneNumber,
			Address:             row.Address,
			DeliveryMessage:     row.DeliveryMessage,
			CreatedAt:           row.CreatedAt,
			UpdatedAt:           row.UpdatedAt,
		})
	}
	return out, nil
}
