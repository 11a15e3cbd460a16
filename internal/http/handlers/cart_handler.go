package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	applog "openmarket/internal/log"
	"openmarket/internal/services"
)

type CartHandler struct {
	Cart *services.CartService
}

func (h *CartHandler) List(c *fiber.Ctx) error {
	page := pageFromQuery(c)
	entries, count, err := h.Cart.List(currentUser(c), page)
	if err != nil {
		return err
	}
	return c.JSON(paginated(c, page, count, entries, nil))
}

func (h *CartHandler) Add(c *fiber.Ctx) error {
	var req struct {
		ProductID *int `json:"product_id"`
		Quantity  *int `json:"quantity"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, "cart", err)
	}
	missing := &services.ValidationError{Fields: map[string][]string{}}
	if req.ProductID == nil {
		missing.Fields["product_id"] = []string{"This field is required."}
	}
	if req.Quantity == nil {
		missing.Fields["quantity"] = []string{"This field is required."}
	}
	if len(missing.Fields) > 0 {
		return fail(c, "cart", missing)
	}
	e, err := h.Cart.Add(currentUser(c), *req.ProductID, *req.Quantity)
	if err != nil {
		return fail(c, "cart", err)
	}
	applog.Audit(c, "cart.add", map[string]any{"cart_item_id": e.ID, "product_id": *req.ProductID, "quantity": e.Quantity})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"detail": "The product was added to your cart."})
}

func (h *CartHandler) Clear(c *fiber.Ctx) error {
	n, err := h.Cart.Clear(currentUser(c))
	if err != nil {
		return err
	}
	applog.Audit(c, "cart.clear", map[string]any{"deleted": n})
	return c.JSON(fiber.Map{"detail": fmt.Sprintf("%d items were removed from your cart.", n)})
}

func (h *CartHandler) Detail(c *fiber.Ctx) error {
	id, err := pathID(c, "cart_item_id", "cart item")
	if err != nil {
		return fail(c, "cart", err)
	}
	e, err := h.Cart.Get(currentUser(c), id)
	if err != nil {
		return fail(c, "cart", err)
	}
	return c.JSON(e)
}

func (h *CartHandler) Update(c *fiber.Ctx) error {
	id, err := pathID(c, "cart_item_id", "cart item")
	if err != nil {
		return fail(c, "cart", err)
	}
	var req struct {
		Quantity *int `json:"quantity"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, "cart", err)
	}
	if req.Quantity == nil {
		return fail(c, "cart", &services.ValidationError{Fields: map[string][]string{"quantity": {"This field is required."}}})
	}
	e, err := h.Cart.UpdateQuantity(currentUser(c), id, *req.Quantity)
	if err != nil {
		return fail(c, "cart", err)
	}
	applog.Audit(c, "cart.update", map[string]any{"cart_item_id": id, "quantity": e.Quantity})
	return c.JSON(e)
}

func (h *CartHandler) Delete(c *fiber.Ctx) error {
	id, err := pathID(c, "cart_item_id", "cart item")
	if err != nil {
		return fail(c, "cart", err)
	}
	if err := h.Cart.Delete(currentUser(c), id); err != nil {
		return fail(c, "cart", err)
	}
	applog.Audit(c, "cart.delete", map[string]any{"cart_item_id": id})
	return c.JSON(fiber.Map{"detail": "The item was removed from your cart."})
}
