package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CompanyRepository manages company records.
type CompanyRepository interface {
	Create(ctx context.Context, company *domain.Company) error
	Update(ctx context.Context, company *domain.Company) error
	GetByID(ctx context.Context, id string) (*domain.Company, error)
	GetByName(ctx context.Context, name string) (*domain.Company, error)
	List(ctx context.Context, limit, offset int) ([]domain.Company, int, error)
}

type companyRepository struct {
	pool *pgxpool.Pool
}

// NewCompanyRepository constructs repository.
func NewCompanyRepository(pool *pgxpool.Pool) CompanyRepository {
	return &companyRepository{pool: pool}
}

const companyColumns = `id, name, email, description, is_active, created_at, updated_at`

func (r *companyRepository) Create(ctx context.Context, company *domain.Company) error {
	const query = `
        INSERT INTO companies (name, email, description, is_active)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query, company.Name, company.Email, company.Description, company.IsActive).
		Scan(&company.ID, &company.CreatedAt, &company.UpdatedAt)
}

func (r *companyRepository) Update(ctx context.Context, company *domain.Company) error {
	const query = `
        UPDATE companies SET name=$1, email=$2, description=$3, is_active=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query, company.Name, company.Email, company.Description, company.IsActive, company.ID).
		Scan(&company.UpdatedAt)
}

func (r *companyRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	return r.fetchSingle(ctx, `SELECT `+companyColumns+` FROM companies WHERE id=$1`, id)
}

func (r *companyRepository) GetByName(ctx context.Context, name string) (*domain.Company, error) {
	return r.fetchSingle(ctx, `SELECT `+companyColumns+` FROM companies WHERE LOWER(name)=LOWER($1)`, name)
}

func (r *companyRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Company, error) {
	var company domain.Company
	if err := scanCompany(r.pool.QueryRow(ctx, query, arg), &company); err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *companyRepository) List(ctx context.Context, limit, offset int) ([]domain.Company, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM companies`).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset = normalizePage(limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM companies ORDER BY name ASC LIMIT %d OFFSET %d`, companyColumns, limit, offset)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.Company
	for rows.Next() {
		var company domain.Company
		if err := scanCompany(rows, &company); err != nil {
			return nil, 0, err
		}
		result = append(result, company)
	}
	return result, total, rows.Err()
}

func scanCompany(row pgx.Row, company *domain.Company) error {
	return row.Scan(
		&company.ID,
		&company.Name,
		&company.Email,
		&company.Description,
		&company.IsActive,
		&company.CreatedAt,
		&company.UpdatedAt,
	)
}
