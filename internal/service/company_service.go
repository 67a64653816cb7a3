package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/microcosm-cc/bluemonday"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// CompanyService manages tenant companies.
type CompanyService struct {
	companies repository.CompanyRepository
	policy    *bluemonday.Policy
}

// CompanyInput carries writable company fields.
type CompanyInput struct {
	Name        string
	Email       string
	Description string
	IsActive    *bool
}

// NewCompanyService constructs the service.
func NewCompanyService(companies repository.CompanyRepository) *CompanyService {
	return &CompanyService{
		companies: companies,
		policy:    bluemonday.UGCPolicy(),
	}
}

// CreateCompany registers a company with a unique name.
func (s *CompanyService) CreateCompany(ctx context.Context, input CompanyInput) (*domain.Company, error) {
	name := strings.TrimSpace(input.Name)
	if err := s.ensureNameFree(ctx, name, ""); err != nil {
		return nil, err
	}
	company := &domain.Company{
		Name:        name,
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		Description: s.policy.Sanitize(strings.TrimSpace(input.Description)),
		IsActive:    true,
	}
	if input.IsActive != nil {
		company.IsActive = *input.IsActive
	}
	if err := s.companies.Create(ctx, company); err != nil {
		return nil, err
	}
	return company, nil
}

// UpdateCompany applies non-empty fields to an existing company.
func (s *CompanyService) UpdateCompany(ctx context.Context, id string, input CompanyInput) (*domain.Company, error) {
	company, err := s.GetCompany(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(input.Name); name != "" && !strings.EqualFold(name, company.Name) {
		if err := s.ensureNameFree(ctx, name, company.ID); err != nil {
			return nil, err
		}
		company.Name = name
	}
	if email := strings.TrimSpace(input.Email); email != "" {
		company.Email = strings.ToLower(email)
	}
	if input.Description != "" {
		company.Description = s.policy.Sanitize(strings.TrimSpace(input.Description))
	}
	if input.IsActive != nil {
		company.IsActive = *input.IsActive
	}
	if err := s.companies.Update(ctx, company); err != nil {
		return nil, err
	}
	return company, nil
}

// GetCompany fetches a company by id.
func (s *CompanyService) GetCompany(ctx context.Context, id string) (*domain.Company, error) {
	company, err := s.companies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("company", map[string]any{"companyId": id})
		}
		return nil, err
	}
	return company, nil
}

// ListCompanies returns a page of companies ordered by name.
func (s *CompanyService) ListCompanies(ctx context.Context, limit, offset int) ([]domain.Company, int, error) {
	return s.companies.List(ctx, limit, offset)
}

func (s *CompanyService) ensureNameFree(ctx context.Context, name, selfID string) error {
	existing, err := s.companies.GetByName(ctx, name)
	if err == nil && existing.ID != selfID {
		return apperrors.NewConflict("company name already taken", map[string]any{"name": name})
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	return nil
}
