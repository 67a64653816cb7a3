package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/service"
)

// AuthHandler exposes registration, login and password reset endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// RegisterClient handles POST /auth/clients/register.
func (h *AuthHandler) RegisterClient(c *fiber.Ctx) error {
	var req dto.RegisterClientRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	client, err := h.auth.RegisterClient(c.UserContext(), service.RegisterClientInput{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		CompanyID: req.CompanyID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{"client": dto.NewClientResponse(client)},
	})
}

// LoginClient handles POST /auth/clients/login.
func (h *AuthHandler) LoginClient(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	client, token, exp, err := h.auth.LoginClient(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"client": dto.NewClientResponse(client),
			"auth":   dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// LoginSuperAdmin handles POST /auth/admins/login.
func (h *AuthHandler) LoginSuperAdmin(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	admin, token, exp, err := h.auth.LoginSuperAdmin(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"admin": dto.NewSuperAdminResponse(admin),
			"auth":  dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// ForgotPassword handles POST /auth/password/forgot. The response is the
// same whether or not the email belongs to an account.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"data": fiber.Map{"message": "if the account exists, a reset code has been sent"},
	})
}

// ResetPassword handles POST /auth/password/reset.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ResetPassword(c.UserContext(), req.Email, req.OTP, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "password updated"}})
}
