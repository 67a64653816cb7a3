package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// ClientService lets operators review client accounts.
type ClientService struct {
	clients    repository.ClientRepository
	dispatcher events.Dispatcher
}

// NewClientService constructs the service.
func NewClientService(clients repository.ClientRepository, dispatcher events.Dispatcher) *ClientService {
	return &ClientService{clients: clients, dispatcher: dispatcher}
}

// ListClients returns clients, optionally filtered by status or company.
func (s *ClientService) ListClients(ctx context.Context, filter repository.ClientFilter) ([]domain.Client, int, error) {
	if filter.Status != nil && !validClientStatus(*filter.Status) {
		return nil, 0, apperrors.NewValidationError("invalid status", map[string]any{"field": "status"})
	}
	return s.clients.List(ctx, filter)
}

// Approve allows the client to sign in.
func (s *ClientService) Approve(ctx context.Context, admin *domain.SuperAdmin, clientID string) (*domain.Client, error) {
	return s.setStatus(ctx, admin, clientID, domain.ClientStatusApproved)
}

// Reject blocks the client from signing in.
func (s *ClientService) Reject(ctx context.Context, admin *domain.SuperAdmin, clientID string) (*domain.Client, error) {
	return s.setStatus(ctx, admin, clientID, domain.ClientStatusRejected)
}

func (s *ClientService) setStatus(ctx context.Context, admin *domain.SuperAdmin, clientID string, status domain.ClientStatus) (*domain.Client, error) {
	if admin == nil {
		return nil, apperrors.NewForbidden("super admin required")
	}
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("client", map[string]any{"clientId": clientID})
		}
		return nil, err
	}
	if client.Status == status {
		return client, nil
	}
	client.Status = status
	if err := s.clients.Update(ctx, client); err != nil {
		return nil, err
	}
	_ = publishEvent(ctx, s.dispatcher, events.Event{
		Type:  events.EventClientStatusChanged,
		Actor: adminActor(admin.ID),
		Payload: events.ClientStatusChangedPayload{
			ClientID: client.ID,
			Email:    client.Email,
			Status:   client.Status,
		},
	})
	return client, nil
}

func validClientStatus(status domain.ClientStatus) bool {
	switch status {
	case domain.ClientStatusPending, domain.ClientStatusApproved, domain.ClientStatusRejected:
		return true
	}
	return false
}
