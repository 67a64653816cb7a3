package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title" validate:"required,max=200"`
	Description string                `json:"description" validate:"required,max=10000"`
	Priority    domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
}

// UpdateTicketStatusRequest payload for operators.
type UpdateTicketStatusRequest struct {
	Status domain.TicketStatus `json:"status" validate:"required,oneof=open in_progress resolved closed"`
}

// TicketResponse ticket view.
type TicketResponse struct {
	ID          string                `json:"id"`
	ClientID    string                `json:"clientId"`
	CompanyID   string                `json:"companyId"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
	ClosedAt    *time.Time            `json:"closedAt,omitempty"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		ClientID:    t.ClientID,
		CompanyID:   t.CompanyID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		ClosedAt:    t.ClosedAt,
	}
}

// NewTicketResponses maps a slice of tickets.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// TicketTranscriptResponse is a ticket with its full chat history.
type TicketTranscriptResponse struct {
	Ticket   TicketResponse       `json:"ticket"`
	Messages []domain.ChatMessage `json:"messages"`
}
