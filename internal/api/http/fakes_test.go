package http

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// memDB backs every repository the REST surface needs.
type memDB struct {
	mu        sync.Mutex
	clients   map[string]domain.Client
	admins    map[string]domain.SuperAdmin
	companies map[string]domain.Company
	tickets   map[string]domain.Ticket
	messages  map[string][]domain.ChatMessage
}

func newMemDB() *memDB {
	return &memDB{
		clients:   map[string]domain.Client{},
		admins:    map[string]domain.SuperAdmin{},
		companies: map[string]domain.Company{},
		tickets:   map[string]domain.Ticket{},
		messages:  map[string][]domain.ChatMessage{},
	}
}

type memClients struct{ db *memDB }

func (r memClients) Create(_ context.Context, c *domain.Client) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	r.db.clients[c.ID] = *c
	return nil
}

func (r memClients) Update(_ context.Context, c *domain.Client) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.clients[c.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.db.clients[c.ID] = *c
	return nil
}

func (r memClients) GetByID(_ context.Context, id string) (*domain.Client, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if c, ok := r.db.clients[id]; ok {
		return &c, nil
	}
	return nil, pgx.ErrNoRows
}

func (r memClients) GetByEmail(_ context.Context, email string) (*domain.Client, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.clients {
		if strings.EqualFold(c.Email, email) {
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memClients) List(_ context.Context, filter repository.ClientFilter) ([]domain.Client, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []domain.Client{}
	for _, c := range r.db.clients {
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.CompanyID != nil && c.CompanyID != *filter.CompanyID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, len(out), nil
}

type memAdmins struct{ db *memDB }

func (r memAdmins) Update(_ context.Context, a *domain.SuperAdmin) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.admins[a.ID] = *a
	return nil
}

func (r memAdmins) GetByID(_ context.Context, id string) (*domain.SuperAdmin, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if a, ok := r.db.admins[id]; ok {
		return &a, nil
	}
	return nil, pgx.ErrNoRows
}

func (r memAdmins) GetByEmail(_ context.Context, email string) (*domain.SuperAdmin, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.admins {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memCompanies struct{ db *memDB }

func (r memCompanies) Create(_ context.Context, c *domain.Company) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	r.db.companies[c.ID] = *c
	return nil
}

func (r memCompanies) Update(_ context.Context, c *domain.Company) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.companies[c.ID] = *c
	return nil
}

func (r memCompanies) GetByID(_ context.Context, id string) (*domain.Company, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if c, ok := r.db.companies[id]; ok {
		return &c, nil
	}
	return nil, pgx.ErrNoRows
}

func (r memCompanies) GetByName(_ context.Context, name string) (*domain.Company, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.companies {
		if strings.EqualFold(c.Name, name) {
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memCompanies) List(_ context.Context, _, _ int) ([]domain.Company, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []domain.Company{}
	for _, c := range r.db.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

type memTickets struct{ db *memDB }

func (r memTickets) Create(_ context.Context, t *domain.Ticket) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt
	r.db.tickets[t.ID] = *t
	return nil
}

func (r memTickets) Update(_ context.Context, t *domain.Ticket) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tickets[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.db.tickets[t.ID] = *t
	return nil
}

func (r memTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if t, ok := r.db.tickets[id]; ok {
		return &t, nil
	}
	return nil, pgx.ErrNoRows
}

func (r memTickets) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []domain.Ticket{}
	for _, t := range r.db.tickets {
		if filter.ClientID != nil && t.ClientID != *filter.ClientID {
			continue
		}
		if filter.CompanyID != nil && t.CompanyID != *filter.CompanyID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		out = append(out, t)
	}
	return out, len(out), nil
}

func (r memTickets) Analytics(_ context.Context, _ time.Time) (*repository.TicketAnalytics, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return &repository.TicketAnalytics{
		TotalTickets:   len(r.db.tickets),
		TotalCompanies: len(r.db.companies),
	}, nil
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

type memHistory struct {
	db  *memDB
	err error
}

func (h memHistory) History(_ context.Context, ticketID string) ([]domain.ChatMessage, error) {
	if h.err != nil {
		return nil, h.err
	}
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	return append([]domain.ChatMessage(nil), h.db.messages[ticketID]...), nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

var errDown = errors.New("connection refused")
