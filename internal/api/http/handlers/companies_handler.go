package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/service"
)

// CompaniesHandler manages tenant companies.
type CompaniesHandler struct {
	companies *service.CompanyService
}

// NewCompaniesHandler constructs handler.
func NewCompaniesHandler(companies *service.CompanyService) *CompaniesHandler {
	return &CompaniesHandler{companies: companies}
}

// Create POST /admin/companies.
func (h *CompaniesHandler) Create(c *fiber.Ctx) error {
	var req dto.CompanyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	company, err := h.companies.CreateCompany(c.UserContext(), companyInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCompanyResponse(company)})
}

// Update PUT /admin/companies/:id.
func (h *CompaniesHandler) Update(c *fiber.Ctx) error {
	var req dto.CompanyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	id, err := idParam(c, "company")
	if err != nil {
		return err
	}
	company, err := h.companies.UpdateCompany(c.UserContext(), id, companyInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCompanyResponse(company)})
}

// Get GET /admin/companies/:id.
func (h *CompaniesHandler) Get(c *fiber.Ctx) error {
	id, err := idParam(c, "company")
	if err != nil {
		return err
	}
	company, err := h.companies.GetCompany(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCompanyResponse(company)})
}

// List GET /admin/companies.
func (h *CompaniesHandler) List(c *fiber.Ctx) error {
	limit, offset := pageParams(c)
	companies, total, err := h.companies.ListCompanies(c.UserContext(), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.CompanyResponse, 0, len(companies))
	for i := range companies {
		items = append(items, dto.NewCompanyResponse(&companies[i]))
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": dto.PageMeta{Total: total, Limit: limit, Offset: offset},
	})
}

func companyInput(req dto.CompanyRequest) service.CompanyInput {
	return service.CompanyInput{
		Name:        req.Name,
		Email:       req.Email,
		Description: req.Description,
		IsActive:    req.IsActive,
	}
}
