package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/peer-review-service/internal/api/dto"
	"github.com/spec-kit/peer-review-service/internal/service"
)

// AuthHandler exposes registration, login and credential endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	identity, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Faculty:         req.Faculty,
		Department:      req.Department,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"identity":              identityResponse(identity),
			"verification_required": !identity.EmailVerified,
		},
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"identity": identityResponse(result.Identity),
			"auth":     dto.AuthResponse{Token: result.AccessToken, ExpiresAt: result.Token.ExpiresAt},
		},
	})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.auth.Logout(c.UserContext(), principal(c)); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// VerifyEmail handles GET /auth/verify-email/:token.
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	identity, err := h.auth.VerifyEmail(c.UserContext(), c.Params("token"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": identityResponse(identity)})
}

// ResendVerification handles POST /auth/resend-verification.
func (h *AuthHandler) ResendVerification(c *fiber.Ctx) error {
	if err := h.auth.ResendVerification(c.UserContext(), principal(c)); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"status": "sent"}})
}

// ChangePassword handles POST /profile/password.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	var req dto.ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.auth.ChangePassword(c.UserContext(), principal(c), req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
