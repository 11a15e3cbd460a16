package handlers

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	applog "openmarket/internal/log"
	"openmarket/internal/services"
)

type ProductHandler struct {
	Catalog *services.CatalogService
}

// List serves the catalog, optionally filtered by ?search=.
func (h *ProductHandler) List(c *fiber.Ctx) error {
	page := pageFromQuery(c)
	search := strings.TrimSpace(c.Query("search"))
	products, count, err := h.Catalog.List(search, page)
	if err != nil {
		return err
	}
	extra := url.Values{}
	if search != "" {
		extra.Set("search", search)
	}
	return c.JSON(paginated(c, page, count, products, extra))
}

func (h *ProductHandler) BySeller(c *fiber.Ctx) error {
	page := pageFromQuery(c)
	products, count, err := h.Catalog.ListBySeller(c.Params("seller_name"), page)
	if err != nil {
		return err
	}
	return c.JSON(paginated(c, page, count, products, nil))
}

func (h *ProductHandler) Detail(c *fiber.Ctx) error {
	id, err := pathID(c, "product_id", "product")
	if err != nil {
		return fail(c, "product", err)
	}
	p, err := h.Catalog.Get(id)
	if err != nil {
		return fail(c, "product", err)
	}
	return c.JSON(p)
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	id, err := pathID(c, "product_id", "product")
	if err != nil {
		return fail(c, "product", err)
	}
	var patch services.ProductPatch
	if err := parseBody(c, &patch); err != nil {
		return fail(c, "product", err)
	}
	p, err := h.Catalog.Update(currentUser(c), id, patch)
	if err != nil {
		return fail(c, "product", err)
	}
	applog.Audit(c, "product.update", map[string]any{"product_id": id, "stock": p.Stock, "price": p.Price})
	return c.JSON(p)
}

func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id, err := pathID(c, "product_id", "product")
	if err != nil {
		return fail(c, "product", err)
	}
	if err := h.Catalog.Delete(currentUser(c), id); err != nil {
		return fail(c, "product", err)
	}
	applog.Audit(c, "product.delete", map[string]any{"product_id": id})
	return c.JSON(fiber.Map{"detail": "The product was deleted."})
}
