package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"openmarket/internal/auth"
	applog "openmarket/internal/log"
)

// RequireAuth enforces a valid Bearer access token and stores the caller's
// username under applog.UserKey.
func RequireAuth(tokens *auth.Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication token is required and must be Bearer type.",
			})
		}
		claims, err := tokens.Parse(strings.TrimSpace(raw), auth.AccessToken)
		if err != nil {
			applog.Security(c, "auth.token.invalid", map[string]any{"reason": err.Error()})
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token."})
		}
		c.Locals(applog.UserKey, claims.UserID)
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) string {
	u, _ := c.Locals(applog.UserKey).(string)
	return u
}
