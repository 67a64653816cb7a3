package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// ClientFilter narrows client listings.
type ClientFilter struct {
	Status    *domain.ClientStatus
	CompanyID *string
	Limit     int
	Offset    int
}

// ClientRepository defines persistence access for client accounts.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	Update(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id string) (*domain.Client, error)
	GetByEmail(ctx context.Context, email string) (*domain.Client, error)
	List(ctx context.Context, filter ClientFilter) ([]domain.Client, int, error)
}

type clientRepository struct {
	pool *pgxpool.Pool
}

// NewClientRepository returns a Postgres-backed implementation.
func NewClientRepository(pool *pgxpool.Pool) ClientRepository {
	return &clientRepository{pool: pool}
}

const clientColumns = `id, name, email, password_hash, company_id, status, created_at, updated_at`

func (r *clientRepository) Create(ctx context.Context, client *domain.Client) error {
	const query = `
        INSERT INTO clients (name, email, password_hash, company_id, status)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		client.Name,
		client.Email,
		client.PasswordHash,
		client.CompanyID,
		client.Status,
	).Scan(&client.ID, &client.CreatedAt, &client.UpdatedAt)
}

func (r *clientRepository) Update(ctx context.Context, client *domain.Client) error {
	const query = `
        UPDATE clients SET name=$1, email=$2, password_hash=$3, company_id=$4, status=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`

	return r.pool.QueryRow(ctx, query,
		client.Name,
		client.Email,
		client.PasswordHash,
		client.CompanyID,
		client.Status,
		client.ID,
	).Scan(&client.UpdatedAt)
}

func (r *clientRepository) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	return r.fetchSingle(ctx, `SELECT `+clientColumns+` FROM clients WHERE id=$1`, id)
}

func (r *clientRepository) GetByEmail(ctx context.Context, email string) (*domain.Client, error) {
	return r.fetchSingle(ctx, `SELECT `+clientColumns+` FROM clients WHERE LOWER(email)=LOWER($1)`, email)
}

func (r *clientRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Client, error) {
	var client domain.Client
	if err := scanClient(r.pool.QueryRow(ctx, query, arg), &client); err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) List(ctx context.Context, filter ClientFilter) ([]domain.Client, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.CompanyID != nil {
		args = append(args, *filter.CompanyID)
		clauses = append(clauses, fmt.Sprintf("company_id=$%d", len(args)))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM clients WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		clientColumns, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.Client
	for rows.Next() {
		var client domain.Client
		if err := scanClient(rows, &client); err != nil {
			return nil, 0, err
		}
		result = append(result, client)
	}
	return result, total, rows.Err()
}

func scanClient(row pgx.Row, client *domain.Client) error {
	return row.Scan(
		&client.ID,
		&client.Name,
		&client.Email,
		&client.PasswordHash,
		&client.CompanyID,
		&client.Status,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
