package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	applog "openmarket/internal/log"
)

// SigninLimit caps signin attempts per client IP.
var SigninLimit = limiter.Config{Max: 5, Expiration: 10 * time.Minute}

// ErrorHandler logs unexpected errors and answers with a generic body.
// Fiber's own 4xx errors pass through with their message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	applog.Error(c, "server.error", err, nil)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Something went wrong. Please try again."})
}

// NewApp builds the Fiber app with middlewares and every /api route.
func NewApp(d *Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:     1 << 20, // 1 MiB
		StrictRouting: false,
		ErrorHandler:  ErrorHandler,
	})

	// ---------- Middlewares ----------
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())

	api := app.Group("/api")
	authed := RequireAuth(d.Tokens)

	// Accounts (signin throttled)
	signinLimit := SigninLimit
	signinLimit.LimitReached = func(c *fiber.Ctx) error {
		applog.Security(c, "rate.signin.hit", nil)
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many attempts. Please try again later."})
	}
	api.Post("/accounts/buyer/signup", d.AuthHandler.SignupBuyer)
	api.Post("/accounts/seller/signup", d.AuthHandler.SignupSeller)
	api.Post("/accounts/validate-username", d.AuthHandler.ValidateUsername)
	api.Post("/accounts/seller/validate-registration-number", d.AuthHandler.ValidateRegistrationNumber)
	api.Post("/accounts/signin", limiter.New(signinLimit), d.AuthHandler.Signin)
	api.Post("/accounts/token/refresh", d.AuthHandler.Refresh)

	// Products
	api.Get("/products", d.ProductHandler.List)
	api.Get("/products/:product_id", d.ProductHandler.Detail)
	api.Put("/products/:product_id", authed, d.ProductHandler.Update)
	api.Delete("/products/:product_id", authed, d.ProductHandler.Delete)

	// Cart
	api.Get("/cart", authed, d.CartHandler.List)
	api.Post("/cart", authed, d.CartHandler.Add)
	api.Delete("/cart", authed, d.CartHandler.Clear)
	api.Get("/cart/:cart_item_id", authed, d.CartHandler.Detail)
	api.Put("/cart/:cart_item_id", authed, d.CartHandler.Update)
	api.Delete("/cart/:cart_item_id", authed, d.CartHandler.Delete)

	// Orders
	api.Post("/order", authed, d.OrderHandler.Place)
	api.Get("/order", authed, d.OrderHandler.History)
	api.Get("/order/:order_pk", authed, d.OrderHandler.View)
	api.Delete("/order/:order_pk", authed, d.OrderHandler.Cancel)

	// Registered last so fixed paths above win.
	api.Get("/:seller_name/products", d.ProductHandler.BySeller)

	// Health & 404
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": "Not found."})
	})
	return app
}
