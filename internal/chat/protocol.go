package chat

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// Client to server events.
const (
	EventAuthenticate   = "authenticate"
	EventJoinTicket     = "join_ticket"
	EventLeaveTicket    = "leave_ticket"
	EventGetMessages    = "get_messages"
	EventSendMessage    = "send_message"
	EventTypingStart    = "typing_start"
	EventTypingStop     = "typing_stop"
	EventGetOnlineUsers = "get_online_users"
	EventPing           = "ping"
)

// Server to client events.
const (
	EventAuthenticated       = "authenticated"
	EventAuthenticationError = "authentication_error"
	EventJoinedTicket        = "joined_ticket"
	EventJoinTicketError     = "join_ticket_error"
	EventLeftTicket          = "left_ticket"
	EventLeaveTicketError    = "leave_ticket_error"
	EventMessagesLoaded      = "messages_loaded"
	EventMessagesError       = "messages_error"
	EventNewMessage          = "new_message"
	EventSendMessageError    = "send_message_error"
	EventUserTyping          = "user_typing"
	EventUserStoppedTyping   = "user_stopped_typing"
	EventOnlineUsers         = "online_users"
	EventOnlineUsersError    = "online_users_error"
	EventUserJoinedTicket    = "user_joined_ticket"
	EventUserLeftTicket      = "user_left_ticket"
	EventTicketCreated       = "ticket_created"
	EventTicketStatusChanged = "ticket_status_changed"
	EventPong                = "pong"
	EventError               = "error"
)

// errorEventFor names the error event answering a request event.
var errorEventFor = map[string]string{
	EventAuthenticate:   EventAuthenticationError,
	EventJoinTicket:     EventJoinTicketError,
	EventLeaveTicket:    EventLeaveTicketError,
	EventGetMessages:    EventMessagesError,
	EventSendMessage:    EventSendMessageError,
	EventGetOnlineUsers: EventOnlineUsersError,
}

// Envelope is the frame shape in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is an event about to be written to a connection.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type authenticateRequest struct {
	Token string `json:"token"`
}

type ticketRequest struct {
	TicketID string `json:"ticketId"`
}

type getMessagesRequest struct {
	TicketID string `json:"ticketId"`
	Limit    *int   `json:"limit"`
	Offset   *int   `json:"offset"`
}

// sendMessageRequest keeps message and attachments raw so the validator can
// reject wrongly typed values instead of the decoder silently coercing them.
type sendMessageRequest struct {
	TicketID    string          `json:"ticketId"`
	Message     json.RawMessage `json:"message"`
	Attachments json.RawMessage `json:"attachments"`
}

// ErrorData is the payload of every *_error event.
type ErrorData struct {
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// AuthenticatedData answers a successful authenticate.
type AuthenticatedData struct {
	User domain.Identity `json:"user"`
}

// TicketSummary is the minimal ticket view sent on join.
type TicketSummary struct {
	ID        string                `json:"id"`
	Title     string                `json:"title"`
	Status    domain.TicketStatus   `json:"status"`
	Priority  domain.TicketPriority `json:"priority"`
	ClientID  string                `json:"clientId"`
	CompanyID string                `json:"companyId"`
	CreatedAt time.Time             `json:"createdAt"`
}

func summarize(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:        t.ID,
		Title:     t.Title,
		Status:    t.Status,
		Priority:  t.Priority,
		ClientID:  t.ClientID,
		CompanyID: t.CompanyID,
		CreatedAt: t.CreatedAt,
	}
}

// JoinedTicketData confirms a join.
type JoinedTicketData struct {
	Ticket TicketSummary `json:"ticket"`
}

// LeftTicketData confirms a leave.
type LeftTicketData struct {
	TicketID string `json:"ticketId"`
}

// PresenceUser is one entry of a room's presence list.
type PresenceUser struct {
	UserID      string             `json:"userId"`
	DisplayName string             `json:"displayName"`
	Role        domain.SubjectType `json:"role"`
}

// OnlineUsersData lists who is currently in a ticket room.
type OnlineUsersData struct {
	TicketID string         `json:"ticketId"`
	Users    []PresenceUser `json:"users"`
}

// RoomActivityData announces joins, leaves and typing state.
type RoomActivityData struct {
	UserID   string             `json:"userId"`
	UserName string             `json:"userName"`
	Role     domain.SubjectType `json:"role"`
	TicketID string             `json:"ticketId"`
}

// MessagesLoadedData is one page of a ticket's history.
type MessagesLoadedData struct {
	TicketID string               `json:"ticketId"`
	Messages []domain.ChatMessage `json:"messages"`
	Total    int                  `json:"total"`
	Limit    int                  `json:"limit"`
	Offset   int                  `json:"offset"`
	HasMore  bool                 `json:"hasMore"`
}

// TicketCreatedData is pushed to the owner and to operators.
type TicketCreatedData struct {
	TicketID    string                `json:"ticketId"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	ClientID    string                `json:"clientId"`
	CompanyID   string                `json:"companyId"`
	CreatedAt   time.Time             `json:"createdAt"`
}

// TicketStatusChangedData is broadcast to a ticket room.
type TicketStatusChangedData struct {
	TicketID  string              `json:"ticketId"`
	OldStatus domain.TicketStatus `json:"oldStatus"`
	NewStatus domain.TicketStatus `json:"newStatus"`
}

// PongData answers a ping.
type PongData struct {
	Timestamp time.Time `json:"timestamp"`
}
