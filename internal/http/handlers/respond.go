package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/gofiber/fiber/v2"

	applog "openmarket/internal/log"
	"openmarket/internal/services"
	"openmarket/internal/validate"
)

// fail maps a service error onto the HTTP response. Unknown errors go to
// the app ErrorHandler.
func fail(c *fiber.Ctx, action string, err error) error {
	var ve *services.ValidationError
	var nf *services.NotFoundError
	var stock *services.InsufficientStockError
	var price *services.PriceMismatchError
	switch {
	case errors.As(err, &ve):
		applog.Security(c, "validation.fail", map[string]any{"action": action, "fields": fieldNames(ve.Fields)})
		return c.Status(fiber.StatusBadRequest).JSON(ve.Fields)
	case errors.As(err, &nf):
		status := fiber.StatusNotFound
		if nf.FromCart {
			applog.Security(c, action+".fail", map[string]any{"kind": "stale_cart_item", "product_id": nf.ID})
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{"detail": nf.Detail()})
	case errors.As(err, &stock):
		applog.Security(c, action+".fail", map[string]any{"kind": "insufficient_stock", "product_id": stock.ProductID})
		return nonField(c, fmt.Sprintf("Not enough stock to order %s(%d).", stock.ProductName, stock.ProductID))
	case errors.As(err, &price):
		applog.Security(c, action+".fail", map[string]any{"kind": "price_mismatch", "expected": price.Expected, "got": price.Got})
		return nonField(c, fmt.Sprintf("total_price does not match. The calculated amount is %d.", price.Expected))
	case errors.Is(err, services.ErrForbidden):
		applog.Security(c, "access.denied."+action, nil)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"detail": message(services.ErrForbidden)})
	}
	return err
}

func nonField(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{services.NonFieldErrors: []string{msg}})
}

func fieldNames(fields map[string][]string) []string {
	out := make([]string, 0, len(fields))
	for k := range fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// parseBody decodes the JSON body into out. A malformed body becomes a
// validation error naming the offending field when it can.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return &services.ValidationError{Fields: map[string][]string{
				typeErr.Field: {fmt.Sprintf("Expected a value of type %s.", typeErr.Type)},
			}}
		}
		return &services.ValidationError{Fields: map[string][]string{
			services.NonFieldErrors: {"Invalid request body."},
		}}
	}
	return nil
}

// pathID reads a positive integer route param; anything else is a 404.
func pathID(c *fiber.Ctx, name, resource string) (int, error) {
	raw := c.Params(name)
	id, ok := validate.PositiveInt(raw)
	if !ok {
		return 0, &services.NotFoundError{Resource: resource, ID: raw, FromPath: true}
	}
	return id, nil
}

// Paginated is the list envelope every collection endpoint returns.
type Paginated[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

func pageFromQuery(c *fiber.Ctx) services.Page {
	return services.NewPage(
		validate.IntOr(c.Query("page"), 1),
		validate.IntOr(c.Query("page_size"), services.DefaultPageSize),
	)
}

// paginated builds next/previous links from the request URL, carrying any
// extra query params such as search.
func paginated[T any](c *fiber.Ctx, page services.Page, count int, results []T, extra url.Values) Paginated[T] {
	base := c.Protocol() + "://" + c.Hostname() + c.Path()
	link := func(n int) *string {
		q := url.Values{}
		for k, vs := range extra {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		q.Set("page", strconv.Itoa(n))
		q.Set("page_size", strconv.Itoa(page.Size))
		s := base + "?" + q.Encode()
		return &s
	}
	out := Paginated[T]{Count: count, Results: results}
	if out.Results == nil {
		out.Results = []T{}
	}
	if page.HasNext(count) {
		out.Next = link(page.Number + 1)
	}
	if page.HasPrevious() {
		out.Previous = link(page.Number - 1)
	}
	return out
}
