package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CompanyRequest creates or replaces a company.
type CompanyRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Email       string `json:"email" validate:"omitempty,email"`
	Description string `json:"description" validate:"max=5000"`
	IsActive    *bool  `json:"isActive"`
}

// CompanyResponse company view.
type CompanyResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewCompanyResponse maps a company.
func NewCompanyResponse(c *domain.Company) CompanyResponse {
	return CompanyResponse{
		ID:          c.ID,
		Name:        c.Name,
		Email:       c.Email,
		Description: c.Description,
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// PageMeta describes a paginated listing.
type PageMeta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
