package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"openmarket/internal/domain"
	applog "openmarket/internal/log"
	"openmarket/internal/services"
)

type AuthHandler struct {
	Auth *services.AuthService
}

func (h *AuthHandler) SignupBuyer(c *fiber.Ctx) error {
	return h.signup(c, h.Auth.SignupBuyer)
}

func (h *AuthHandler) SignupSeller(c *fiber.Ctx) error {
	return h.signup(c, h.Auth.SignupSeller)
}

func (h *AuthHandler) signup(c *fiber.Ctx, create func(services.SignupRequest) (*domain.User, error)) error {
	var req services.SignupRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, "auth.signup", err)
	}
	u, err := create(req)
	if err != nil {
		if taken(err) {
			applog.Security(c, "auth.signup.fail", map[string]any{"username": req.Username, "reason": err.Error()})
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message(err)})
		}
		return fail(c, "auth.signup", err)
	}
	applog.Audit(c, "auth.signup", map[string]any{"username": u.Username, "user_type": u.UserType})
	return c.Status(fiber.StatusCreated).JSON(u)
}

func (h *AuthHandler) ValidateUsername(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, "auth.validate_username", err)
	}
	if err := h.Auth.ValidateUsername(req.Username); err != nil {
		if taken(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message(err)})
		}
		return fail(c, "auth.validate_username", err)
	}
	return c.JSON(fiber.Map{"message": "This username is available."})
}

func (h *AuthHandler) ValidateRegistrationNumber(c *fiber.Ctx) error {
	var req struct {
		Number string `json:"company_registration_number"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, "auth.validate_registration", err)
	}
	if err := h.Auth.ValidateRegistrationNumber(req.Number); err != nil {
		if taken(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message(err)})
		}
		return fail(c, "auth.validate_registration", err)
	}
	return c.JSON(fiber.Map{"message": "This company registration number is available."})
}

func (h *AuthHandler) Signin(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, "auth.signin", err)
	}
	res, err := h.Auth.Signin(req.Username, req.Password)
	if errors.Is(err, services.ErrBadCreds) {
		applog.Security(c, "auth.signin.fail", map[string]any{"username": req.Username})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message(err)})
	}
	if err != nil {
		return err
	}
	c.Locals(applog.UserKey, res.User.Username)
	applog.Audit(c, "auth.signin.success", map[string]any{"user_type": res.User.UserType})
	return c.JSON(res)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, "auth.refresh", err)
	}
	if req.Refresh == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Refresh token is required."})
	}
	access, err := h.Auth.Refresh(req.Refresh)
	if err != nil {
		applog.Security(c, "auth.token.invalid", map[string]any{"kind": "refresh", "reason": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired refresh token."})
	}
	return c.JSON(fiber.Map{"access": access})
}

func taken(err error) bool {
	return errors.Is(err, services.ErrUsernameTaken) || errors.Is(err, services.ErrRegistrationTaken)
}

// message turns a sentinel's text into a client sentence.
func message(err error) string {
	s := err.Error()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:] + "."
}
