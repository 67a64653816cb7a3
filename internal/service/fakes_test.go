package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type fakeClientRepo struct {
	mu    sync.Mutex
	items map[string]*domain.Client
}

func newFakeClientRepo(clients ...*domain.Client) *fakeClientRepo {
	r := &fakeClientRepo{items: map[string]*domain.Client{}}
	for _, c := range clients {
		r.items[c.ID] = c
	}
	return r
}

func (r *fakeClientRepo) Create(_ context.Context, c *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *fakeClientRepo) Update(_ context.Context, c *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[c.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *fakeClientRepo) GetByID(_ context.Context, id string) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.items[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeClientRepo) GetByEmail(_ context.Context, email string) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.items {
		if strings.EqualFold(c.Email, email) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeClientRepo) List(_ context.Context, filter repository.ClientFilter) ([]domain.Client, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Client
	for _, c := range r.items {
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

type fakeAdminRepo struct {
	items map[string]*domain.SuperAdmin
}

func newFakeAdminRepo(admins ...*domain.SuperAdmin) *fakeAdminRepo {
	r := &fakeAdminRepo{items: map[string]*domain.SuperAdmin{}}
	for _, a := range admins {
		r.items[a.ID] = a
	}
	return r
}

func (r *fakeAdminRepo) Update(_ context.Context, a *domain.SuperAdmin) error {
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *fakeAdminRepo) GetByID(_ context.Context, id string) (*domain.SuperAdmin, error) {
	if a, ok := r.items[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeAdminRepo) GetByEmail(_ context.Context, email string) (*domain.SuperAdmin, error) {
	for _, a := range r.items {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeCompanyRepo struct {
	items map[string]*domain.Company
}

func newFakeCompanyRepo(companies ...*domain.Company) *fakeCompanyRepo {
	r := &fakeCompanyRepo{items: map[string]*domain.Company{}}
	for _, c := range companies {
		r.items[c.ID] = c
	}
	return r
}

func (r *fakeCompanyRepo) Create(_ context.Context, c *domain.Company) error {
	c.ID = uuid.NewString()
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *fakeCompanyRepo) Update(_ context.Context, c *domain.Company) error {
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *fakeCompanyRepo) GetByID(_ context.Context, id string) (*domain.Company, error) {
	if c, ok := r.items[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeCompanyRepo) GetByName(_ context.Context, name string) (*domain.Company, error) {
	for _, c := range r.items {
		if strings.EqualFold(c.Name, name) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeCompanyRepo) List(_ context.Context, _, _ int) ([]domain.Company, int, error) {
	var out []domain.Company
	for _, c := range r.items {
		out = append(out, *c)
	}
	return out, len(out), nil
}

type fakeTicketRepo struct {
	items map[string]*domain.Ticket
}

func newFakeTicketRepo(tickets ...*domain.Ticket) *fakeTicketRepo {
	r := &fakeTicketRepo{items: map[string]*domain.Ticket{}}
	for _, t := range tickets {
		r.items[t.ID] = t
	}
	return r
}

func (r *fakeTicketRepo) Create(_ context.Context, t *domain.Ticket) error {
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	r.items[t.ID] = &cp
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, t *domain.Ticket) error {
	if _, ok := r.items[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *t
	r.items[t.ID] = &cp
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	if t, ok := r.items[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	var out []domain.Ticket
	for _, t := range r.items {
		if filter.ClientID != nil && t.ClientID != *filter.ClientID {
			continue
		}
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (r *fakeTicketRepo) Analytics(_ context.Context, since time.Time) (*repository.TicketAnalytics, error) {
	return &repository.TicketAnalytics{TotalTickets: len(r.items)}, nil
}
