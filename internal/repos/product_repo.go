package repos

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"openmarket/internal/domain"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

const productSelect = `
  SELECT
    p.id, p.name, p.info, p.image, p.price, p.shipping_method, p.shipping_fee, p.stock,
    p.created_at, p.updated_at,
    u.username AS "seller.username", u.name AS "seller.name",
    COALESCE(u.store_name,'') AS "seller.store_name"
  FROM products p
  JOIN users u ON u.username = p.seller_username`

func (r *ProductRepo) Get(id int) (domain.Product, error) {
	var p domain.Product
	err := r.db.Get(&p, productSelect+` WHERE p.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, ErrNotFound
	}
	return p, err
}

// SetStock overwrites the stock counter. Callers serialize per product.
func (r *ProductRepo) SetStock(id, stock int) error {
	res, err := r.db.Exec(`UPDATE products SET stock = ?, updated_at = ? WHERE id = ?`,
		stock, domain.Timestamp(time.Now()), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches q as a literal substring of name or info,
// case-insensitively; an empty q matches all.
func (r *ProductRepo) Search(q string, limit, offset int) ([]domain.Product, int, error) {
	where := `1 = 1`
	args := []any{}
	if q != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
		where = `(LOWER(p.name) LIKE ? ESCAPE '\' OR LOWER(p.info) LIKE ? ESCAPE '\')`
		args = append(args, like, like)
	}
	return r.page(where, args, limit, offset)
}

func (r *ProductRepo) ListBySeller(seller string, limit, offset int) ([]domain.Product, int, error) {
	return r.page(`p.seller_username = ?`, []any{seller}, limit, offset)
}

func (r *ProductRepo) page(where string, args []any, limit, offset int) ([]domain.Product, int, error) {
	var count int
	if err := r.db.Get(&count, `SELECT COUNT(*) FROM products p WHERE `+where, args...); err != nil {
		return nil, 0, err
	}
	out := []domain.Product{}
	err := r.db.Select(&out, productSelect+` WHERE `+where+` ORDER BY p.id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	return out, count, err
}

// Create inserts p and returns it with its assigned id and timestamps.
func (r *ProductRepo) Create(p domain.Product) (domain.Product, error) {
	now := domain.Timestamp(time.Now())
	res, err := r.db.Exec(`
		INSERT INTO products(seller_username,name,info,image,price,shipping_method,shipping_fee,stock,created_at,updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?)
	`, p.Seller.Username, p.Name, p.Info, p.Image, p.Price, p.ShippingMethod, p.ShippingFee, p.Stock, now, now)
	if err != nil {
		return domain.Product{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Product{}, err
	}
	return r.Get(int(id))
}

// Update writes the editable columns of p. id, seller and created_at are
// never touched.
func (r *ProductRepo) Update(p domain.Product) error {
	res, err := r.db.Exec(`
		UPDATE products
		SET name = ?, info = ?, image = ?, price = ?, shipping_method = ?, shipping_fee = ?, stock = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, p.Info, p.Image, p.Price, p.ShippingMethod, p.ShippingFee, p.Stock, domain.Timestamp(time.Now()), p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProductRepo) Delete(id int) error {
	res, err := r.db.Exec(`DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
