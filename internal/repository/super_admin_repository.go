package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// SuperAdminRepository handles persistence for operator accounts.
type SuperAdminRepository interface {
	Update(ctx context.Context, admin *domain.SuperAdmin) error
	GetByID(ctx context.Context, id string) (*domain.SuperAdmin, error)
	GetByEmail(ctx context.Context, email string) (*domain.SuperAdmin, error)
}

type superAdminRepository struct {
	pool *pgxpool.Pool
}

// NewSuperAdminRepository instantiates the repository.
func NewSuperAdminRepository(pool *pgxpool.Pool) SuperAdminRepository {
	return &superAdminRepository{pool: pool}
}

func (r *superAdminRepository) Update(ctx context.Context, admin *domain.SuperAdmin) error {
	const query = `
        UPDATE super_admins SET name=$1, email=$2, password_hash=$3, updated_at=NOW()
        WHERE id=$4
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query, admin.Name, admin.Email, admin.PasswordHash, admin.ID).Scan(&admin.UpdatedAt)
}

func (r *superAdminRepository) GetByID(ctx context.Context, id string) (*domain.SuperAdmin, error) {
	const query = `
        SELECT id, name, email, password_hash, created_at, updated_at
        FROM super_admins WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *superAdminRepository) GetByEmail(ctx context.Context, email string) (*domain.SuperAdmin, error) {
	const query = `
        SELECT id, name, email, password_hash, created_at, updated_at
        FROM super_admins WHERE LOWER(email)=LOWER($1)`
	return r.fetchSingle(ctx, query, email)
}

func (r *superAdminRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.SuperAdmin, error) {
	var admin domain.SuperAdmin
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&admin.ID,
		&admin.Name,
		&admin.Email,
		&admin.PasswordHash,
		&admin.CreatedAt,
		&admin.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &admin, nil
}
