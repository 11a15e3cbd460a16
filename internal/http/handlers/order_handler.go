package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "openmarket/internal/log"
	"openmarket/internal/services"
)

type OrderHandler struct {
	Order *services.OrderService
}

func (h *OrderHandler) Place(c *fiber.Ctx) error {
	var req services.PlaceOrderRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, "order.place", err)
	}
	o, err := h.Order.Place(req, currentUser(c))
	if err != nil {
		return fail(c, "order.place", err)
	}
	applog.Audit(c, "order.place", map[string]any{
		"order_id":     o.ID,
		"order_number": o.OrderNumber,
		"order_type":   o.Type,
		"total_price":  o.TotalPrice,
	})
	return c.Status(fiber.StatusCreated).JSON(o)
}

// History lists the caller's orders in id order.
func (h *OrderHandler) History(c *fiber.Ctx) error {
	page := pageFromQuery(c)
	orders, count, err := h.Order.List(currentUser(c), page)
	if err != nil {
		applog.Error(c, "orders.history.fail", err, nil)
		return err
	}
	return c.JSON(paginated(c, page, count, orders, nil))
}

func (h *OrderHandler) View(c *fiber.Ctx) error {
	id, err := pathID(c, "order_pk", "order")
	if err != nil {
		return fail(c, "order", err)
	}
	o, err := h.Order.Get(currentUser(c), id)
	if err != nil {
		return fail(c, "order", err)
	}
	return c.JSON(o)
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	id, err := pathID(c, "order_pk", "order")
	if err != nil {
		return fail(c, "order", err)
	}
	if err := h.Order.Cancel(currentUser(c), id); err != nil {
		return fail(c, "order", err)
	}
	applog.Audit(c, "order.cancel", map[string]any{"order_id": id})
	return c.JSON(fiber.Map{"detail": "The order was cancelled."})
}
