package repos

import (
	"errors"
	"log"

	"openmarket/internal/domain"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by every repo lookup that matches no row.
var ErrNotFound = errors.New("not found")

func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One connection: keeps :memory: databases alive across calls and makes
	// the store a single writer.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, err
	}
	if err := EnsureSchema(db); err != nil {
		return nil, err
	}
	return db, nil
}

func EnsureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Users
CREATE TABLE IF NOT EXISTS users(
  username TEXT PRIMARY KEY,
  password_hash TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  phone_number TEXT NOT NULL DEFAULT '',
  user_type TEXT NOT NULL CHECK (user_type IN ('BUYER','SELLER')),
  company_registration_number TEXT,
  store_name TEXT,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_regno ON users(company_registration_number)
  WHERE company_registration_number IS NOT NULL;

-- Products
CREATE TABLE IF NOT EXISTS products(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  seller_username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
  name TEXT NOT NULL,
  info TEXT NOT NULL DEFAULT '',
  image TEXT NOT NULL DEFAULT '',
  price INTEGER NOT NULL CHECK (price >= 0),
  shipping_method TEXT NOT NULL CHECK (shipping_method IN ('PARCEL','DELIVERY')),
  shipping_fee INTEGER NOT NULL DEFAULT 0 CHECK (shipping_fee >= 0),
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_seller ON products(seller_username);

-- Cart (product is a snapshot, so no FK to products)
CREATE TABLE IF NOT EXISTS cart_items(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
  product_id INTEGER NOT NULL,
  product_json TEXT NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity >= 1),
  added_at TEXT NOT NULL,
  updated_at TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_cart_user_product ON cart_items(username, product_id);

-- Orders (AUTOINCREMENT: ids are never reused after a cancellation)
CREATE TABLE IF NOT EXISTS orders(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL,
  order_number TEXT NOT NULL UNIQUE,
  payment_method TEXT NOT NULL,
  order_status TEXT NOT NULL,
  order_type TEXT NOT NULL CHECK (order_type IN ('direct_order','cart_order')),
  total_price INTEGER NOT NULL,
  receiver TEXT NOT NULL,
  receiver_phone_number TEXT NOT NULL,
  address TEXT NOT NULL DEFAULT '',
  delivery_message TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(username);

CREATE TABLE IF NOT EXISTS order_items(
  order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  product_json TEXT NOT NULL,
  ordered_quantity INTEGER NOT NULL,
  ordered_unit_price INTEGER NOT NULL,
  ordered_shipping_fee INTEGER NOT NULL,
  item_total_price INTEGER NOT NULL,
  PRIMARY KEY (order_id, position)
);
`
	_, err := db.Exec(schema)
	return err
}

// Seed inserts demo users and products when the catalog is empty.
// Safe to run on every startup.
func Seed(db *sqlx.DB) error {
	if err := seedUsers(db); err != nil {
		return err
	}
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM products`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	log.Println("[seed] inserting demo products")

	prods := NewProductRepo(db)
	seller := domain.Seller{Username: "hodu_seller"}
	for _, p := range []domain.Product{
		{Name: "Hack Your Life monthly planner", Info: "Undated planner, 12 months", Image: "https://picsum.photos/seed/planner/600",
			Price: 17500, ShippingMethod: domain.ShippingParcel, ShippingFee: 3000, Stock: 30},
		{Name: "Developer keyboard", Info: "Tenkeyless mechanical keyboard", Image: "https://picsum.photos/seed/keyboard/600",
			Price: 89000, ShippingMethod: domain.ShippingDelivery, ShippingFee: 0, Stock: 8},
		{Name: "Sticker pack", Info: "Ten vinyl stickers", Image: "https://picsum.photos/seed/stickers/600",
			Price: 4500, ShippingMethod: domain.ShippingParcel, ShippingFee: 2500, Stock: 100},
		{Name: "Ceramic mug", Info: "350ml mug", Image: "https://picsum.photos/seed/mug/600",
			Price: 12000, ShippingMethod: domain.ShippingParcel, ShippingFee: 3000, Stock: 0},
	} {
		p.Seller = seller
		if _, err := prods.Create(p); err != nil {
			return err
		}
	}
	return nil
}

// seedUsers ensures a demo buyer and seller exist.
func seedUsers(db *sqlx.DB) error {
	type u struct {
		Username, Name, Phone, Type, RegNo, Store, Hash string
	}
	mk := func(username, name, phone, typ, regNo, store, raw string) u {
		h, _ := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
		return u{Username: username, Name: name, Phone: phone, Type: typ, RegNo: regNo, Store: store, Hash: string(h)}
	}

	users := []u{
		mk("buyer1", "Buyer One", "01012345678", "BUYER", "", "", "Passw0rd!"),
		mk("hodu_seller", "Hodu", "01087654321", "SELLER", "1234567890", "Hodu Store", "Passw0rd!"),
	}

	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()

	for _, x := range users {
		if _, err := tx.Exec(`
			INSERT INTO users(username,password_hash,name,phone_number,user_type,company_registration_number,store_name)
			VALUES(?,?,?,?,?,NULLIF(?,''),NULLIF(?,''))
			ON CONFLICT(username) DO NOTHING
		`, x.Username, x.Hash, x.Name, x.Phone, x.Type, x.RegNo, x.Store); err != nil {
			return err
		}
	}
	return tx.Commit()
}
