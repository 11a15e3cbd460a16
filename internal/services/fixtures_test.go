package services_test

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"openmarket/internal/domain"
	"openmarket/internal/repos"
)

// memdb opens a fresh in-memory store with two buyers and one seller.
func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
	INSERT INTO users(username,password_hash,name,phone_number,user_type,company_registration_number,store_name) VALUES
	  ('alice','x','Alice','01011112222','BUYER',NULL,NULL),
	  ('bob','x','Bob','01033334444','BUYER',NULL,NULL),
	  ('seller','x','Seller','01055556666','SELLER','1234567890','Seller Store')`)
	require.NoError(t, err)
	return db
}

func addProduct(t *testing.T, db *sqlx.DB, name string, price, fee, stock int) domain.Product {
	t.Helper()
	p, err := repos.NewProductRepo(db).Create(domain.Product{
		Seller:         domain.Seller{Username: "seller"},
		Name:           name,
		Info:           name + " info",
		Price:          price,
		ShippingMethod: domain.ShippingParcel,
		ShippingFee:    fee,
		Stock:          stock,
	})
	require.NoError(t, err)
	return p
}

func stockOf(t *testing.T, db *sqlx.DB, id int) int {
	t.Helper()
	p, err := repos.NewProductRepo(db).Get(id)
	require.NoError(t, err)
	return p.Stock
}

func countOrders(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM orders`))
	return n
}

func ptr[T any](v T) *T { return &v }
