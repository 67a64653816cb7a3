package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TicketLookup loads tickets for access checks.
type TicketLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
}

// Authorizer decides whether an identity may use a ticket's chat. Results
// are never cached.
type Authorizer struct {
	tickets TicketLookup
}

// NewAuthorizer constructs the authorizer.
func NewAuthorizer(tickets TicketLookup) *Authorizer {
	return &Authorizer{tickets: tickets}
}

// Authorize returns the ticket when the identity is a super admin or the
// ticket's owning client.
func (a *Authorizer) Authorize(ctx context.Context, ticketID string, identity domain.Identity) (*domain.Ticket, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, apperrors.NewValidationError("ticketId is required", map[string]any{"field": "ticketId"})
	}
	parsed, err := uuid.Parse(ticketID)
	if err != nil {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticketId": ticketID})
	}
	ticketID = parsed.String()

	ticket, err := a.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticketId": ticketID})
		}
		return nil, apperrors.NewInternalError(err)
	}

	if identity.IsSuperAdmin() {
		return ticket, nil
	}
	if identity.Role == domain.SubjectTypeClient && ticket.ClientID == identity.UserID {
		return ticket, nil
	}
	return nil, apperrors.NewForbidden("access denied to this ticket")
}

// CanonicalTicketID maps every accepted uuid spelling (upper case, braces,
// urn prefix) onto the lower-case form used as the room key. Other input is
// only trimmed.
func CanonicalTicketID(id string) string {
	id = strings.TrimSpace(id)
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return id
}
