package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	now        func() time.Time
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
}

// TicketListFilter describes listing filters shared by clients and operators.
type TicketListFilter struct {
	CompanyID   *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		now:        time.Now,
	}
}

// CreateTicket opens a ticket for the client and announces it.
func (s *TicketService) CreateTicket(ctx context.Context, client *domain.Client, input TicketCreateInput) (*domain.Ticket, error) {
	if client == nil {
		return nil, apperrors.NewNotAuthenticated()
	}
	ticket := &domain.Ticket{
		ClientID:    client.ID,
		CompanyID:   client.CompanyID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if !ticket.Priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"field": "priority"})
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	// The ticket exists at this point; a failing listener must not undo that.
	_ = publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    clientActor(client.ID),
		Payload: events.TicketCreatedPayload{
			ClientID:    ticket.ClientID,
			CompanyID:   ticket.CompanyID,
			Title:       ticket.Title,
			Description: ticket.Description,
			Status:      ticket.Status,
			Priority:    ticket.Priority,
			CreatedAt:   ticket.CreatedAt,
		},
	})
	return ticket, nil
}

// ListClientTickets returns paginated tickets owned by the client.
func (s *TicketService) ListClientTickets(ctx context.Context, clientID string, filter TicketListFilter) ([]domain.Ticket, int, error) {
	repoFilter := toRepoFilter(filter)
	repoFilter.ClientID = &clientID
	repoFilter.CompanyID = nil
	return s.tickets.ListWithFilter(ctx, repoFilter)
}

// GetTicketForClient fetches a ticket ensuring ownership.
func (s *TicketService) GetTicketForClient(ctx context.Context, clientID, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.ClientID != clientID {
		return nil, apperrors.NewForbidden("access denied to this ticket")
	}
	return ticket, nil
}

// ListAllTickets returns tickets across every company for operators.
func (s *TicketService) ListAllTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, int, error) {
	return s.tickets.ListWithFilter(ctx, toRepoFilter(filter))
}

// GetTicket fetches any ticket for operators.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.getTicket(ctx, ticketID)
}

// UpdateStatus moves a ticket through its lifecycle.
func (s *TicketService) UpdateStatus(ctx context.Context, admin *domain.SuperAdmin, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	if admin == nil {
		return nil, apperrors.NewForbidden("super admin required")
	}
	if !newStatus.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"field": "status"})
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !isValidTransition(ticket.Status, newStatus) {
		return nil, apperrors.NewValidationError("invalid status transition", map[string]any{
			"from": ticket.Status,
			"to":   newStatus,
		})
	}

	oldStatus := ticket.Status
	if newStatus == domain.TicketStatusClosed {
		now := s.now()
		ticket.ClosedAt = &now
	} else {
		ticket.ClosedAt = nil
	}
	ticket.Status = newStatus
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	_ = publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    adminActor(admin.ID),
		Payload: events.TicketStatusChangedPayload{
			ClientID:  ticket.ClientID,
			OldStatus: oldStatus,
			NewStatus: newStatus,
		},
	})
	return ticket, nil
}

func (s *TicketService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticketId": ticketID})
		}
		return nil, err
	}
	return ticket, nil
}

func toRepoFilter(filter TicketListFilter) repository.TicketFilter {
	return repository.TicketFilter{
		CompanyID:   filter.CompanyID,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusInProgress: {domain.TicketStatusOpen, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusResolved:   {domain.TicketStatusInProgress, domain.TicketStatusClosed, domain.TicketStatusOpen},
	domain.TicketStatusClosed:     {domain.TicketStatusOpen},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
