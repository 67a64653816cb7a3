package events

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated          EventType = "ticket_created"
	EventTicketStatusChanged    EventType = "ticket_status_changed"
	EventChatMessageAdded       EventType = "chat_message_added"
	EventClientStatusChanged    EventType = "client_status_changed"
	EventPasswordResetRequested EventType = "password_reset_requested"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type   domain.SubjectType `json:"type"`
	UserID string             `json:"userId,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticketId,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload carries everything the realtime push needs.
type TicketCreatedPayload struct {
	ClientID    string                `json:"clientId"`
	CompanyID   string                `json:"companyId"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	CreatedAt   time.Time             `json:"createdAt"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	ClientID  string              `json:"clientId"`
	OldStatus domain.TicketStatus `json:"oldStatus"`
	NewStatus domain.TicketStatus `json:"newStatus"`
}

// ChatMessageAddedPayload payload.
type ChatMessageAddedPayload struct {
	MessageID       string             `json:"messageId"`
	SenderRole      domain.SubjectType `json:"senderRole"`
	SenderID        string             `json:"senderId"`
	BodyPreview     string             `json:"bodyPreview"`
	AttachmentCount int                `json:"attachmentCount"`
}

// ClientStatusChangedPayload payload.
type ClientStatusChangedPayload struct {
	ClientID string              `json:"clientId"`
	Email    string              `json:"email"`
	Status   domain.ClientStatus `json:"status"`
}

// PasswordResetRequestedPayload payload. Code is the plaintext OTP handed to
// the mailer and must never be logged.
type PasswordResetRequestedPayload struct {
	Email string        `json:"email"`
	Code  string        `json:"-"`
	TTL   time.Duration `json:"ttl"`
}
