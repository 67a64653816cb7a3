package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// RegisterClientRequest payload for client sign-up.
type RegisterClientRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	CompanyID string `json:"companyId" validate:"required,uuid"`
}

// LoginRequest payload for client and admin login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest starts an OTP reset.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest completes an OTP reset.
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=128"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ClientResponse is the public view of a client account.
type ClientResponse struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Email     string              `json:"email"`
	CompanyID string              `json:"companyId"`
	Status    domain.ClientStatus `json:"status"`
	CreatedAt time.Time           `json:"createdAt"`
}

// SuperAdminResponse is the public view of an operator account.
type SuperAdminResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewClientResponse maps a client.
func NewClientResponse(c *domain.Client) ClientResponse {
	return ClientResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		CompanyID: c.CompanyID,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
	}
}

// NewSuperAdminResponse maps an operator.
func NewSuperAdminResponse(a *domain.SuperAdmin) SuperAdminResponse {
	return SuperAdminResponse{ID: a.ID, Name: a.Name, Email: a.Email}
}
