package repos

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"openmarket/internal/domain"
)

type CartRepo struct{ db *sqlx.DB }

func NewCartRepo(db *sqlx.DB) *CartRepo { return &CartRepo{db: db} }

type cartRow struct {
	ID          int    `db:"id"`
	Username    string `db:"username"`
	ProductJSON string `db:"product_json"`
	Quantity    int    `db:"quantity"`
	AddedAt     string `db:"added_at"`
	UpdatedAt   string `db:"updated_at"`
}

const cartSelect = `
  SELECT id, username, product_json, quantity, added_at, COALESCE(updated_at,'') AS updated_at
  FROM cart_items`

func (row cartRow) entry() (domain.CartEntry, error) {
	e := domain.CartEntry{
		ID:        row.ID,
		UserID:    row.Username,
		Quantity:  row.Quantity,
		AddedAt:   row.AddedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(row.ProductJSON), &e.Product); err != nil {
		return domain.CartEntry{}, err
	}
	return e, nil
}

func (r *CartRepo) one(query string, args ...any) (domain.CartEntry, error) {
	var row cartRow
	if err := r.db.Get(&row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CartEntry{}, ErrNotFound
		}
		return domain.CartEntry{}, err
	}
	return row.entry()
}

// Upsert snapshots p into the user's cart. Adding a product that is already
// there bumps its quantity and keeps the original snapshot.
func (r *CartRepo) Upsert(username string, p domain.Product, qty int) (domain.CartEntry, error) {
	snap, err := json.Marshal(p)
	if err != nil {
		return domain.CartEntry{}, err
	}
	now := domain.Timestamp(time.Now())
	if _, err := r.db.Exec(`
		INSERT INTO cart_items(username, product_id, product_json, quantity, added_at)
		VALUES(?,?,?,?,?)
		ON CONFLICT(username, product_id) DO UPDATE
		SET quantity = cart_items.quantity + excluded.quantity, updated_at = ?
	`, username, p.ID, string(snap), qty, now, now); err != nil {
		return domain.CartEntry{}, err
	}
	return r.Get(username, p.ID)
}

// Get returns the user's entry for a product.
func (r *CartRepo) Get(username string, productID int) (domain.CartEntry, error) {
	return r.one(cartSelect+` WHERE username = ? AND product_id = ?`, username, productID)
}

func (r *CartRepo) ByID(id int) (domain.CartEntry, error) {
	return r.one(cartSelect+` WHERE id = ?`, id)
}

func (r *CartRepo) List(username string, limit, offset int) ([]domain.CartEntry, int, error) {
	var count int
	if err := r.db.Get(&count, `SELECT COUNT(*) FROM cart_items WHERE username = ?`, username); err != nil {
		return nil, 0, err
	}
	var rows []cartRow
	if err := r.db.Select(&rows, cartSelect+` WHERE username = ? ORDER BY id LIMIT ? OFFSET ?`,
		username, limit, offset); err != nil {
		return nil, 0, err
	}
	out := make([]domain.CartEntry, 0, len(rows))
	for _, row := range rows {
		e, err := row.entry()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, count, nil
}

func (r *CartRepo) UpdateQuantity(id, qty int) (domain.CartEntry, error) {
	res, err := r.db.Exec(`UPDATE cart_items SET quantity = ?, updated_at = ? WHERE id = ?`,
		qty, domain.Timestamp(time.Now()), id)
	if err != nil {
		return domain.CartEntry{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.CartEntry{}, ErrNotFound
	}
	return r.ByID(id)
}

func (r *CartRepo) Delete(id int) error {
	res, err := r.db.Exec(`DELETE FROM cart_items WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveMany deletes the user's entries for the given products. Entries of
// other users are never touched.
func (r *CartRepo) RemoveMany(username string, productIDs []int) (int, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`DELETE FROM cart_items WHERE username = ? AND product_id IN (?)`, username, productIDs)
	if err != nil {
		return 0, err
	}
	res, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *CartRepo) Clear(username string) (int, error) {
	res, err := r.db.Exec(`DELETE FROM cart_items WHERE username = ?`, username)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
