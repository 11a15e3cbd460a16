package handlers

import (
	"openmarket/internal/auth"
	"openmarket/internal/repos"
	"openmarket/internal/services"

	"github.com/jmoiron/sqlx"
)

type Deps struct {
	Tokens         *auth.Tokens
	AuthHandler    *AuthHandler
	ProductHandler *ProductHandler
	CartHandler    *CartHandler
	OrderHandler   *OrderHandler
}

// NewDeps wires repositories and services. Catalog edits, cart edits and
// order placement share one set of stock locks.
func NewDeps(db *sqlx.DB, tokens *auth.Tokens) *Deps {
	userRepo := repos.NewUserRepo(db)
	prodRepo := repos.NewProductRepo(db)
	cartRepo := repos.NewCartRepo(db)
	orderRepo := repos.NewOrderRepo(db)

	locks := services.NewStockLocks()
	authSvc := services.NewAuthService(userRepo, tokens)
	catalogSvc := services.NewCatalogService(prodRepo, locks)
	cartSvc := services.NewCartService(cartRepo, prodRepo, locks)
	orderSvc := services.NewOrderService(prodRepo, cartRepo, orderRepo, locks)

	return &Deps{
		Tokens:         tokens,
		AuthHandler:    &AuthHandler{Auth: authSvc},
		ProductHandler: &ProductHandler{Catalog: catalogSvc},
		CartHandler:    &CartHandler{Cart: cartSvc},
		OrderHandler:   &OrderHandler{Order: orderSvc},
	}
}
