package chat

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// HubDependencies bundles collaborators for the hub.
type HubDependencies struct {
	Authenticator *Authenticator
	Authorizer    *Authorizer
	Validator     *MessageValidator
	Attachments   *AttachmentStore
	Messages      *MessageStore
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	Clock         clockwork.Clock
}

// Hub owns every chat connection and routes socket events.
type Hub struct {
	registry    *Registry
	limiter     *RateLimiter
	typing      *TypingTracker
	authn       *Authenticator
	authz       *Authorizer
	validator   *MessageValidator
	attachments *AttachmentStore
	messages    *MessageStore
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	clock       clockwork.Clock

	idleTimeout   time.Duration
	sweepInterval time.Duration

	locksMu     sync.Mutex
	ticketLocks map[string]*ticketLock
}

type ticketLock struct {
	mu   sync.Mutex
	refs int
}

// NewHub constructs the hub.
func NewHub(cfg config.ChatConfig, deps HubDependencies) *Hub {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		registry:      NewRegistry(),
		limiter:       NewRateLimiter(clock, cfg.RateWindow, cfg.RateMax),
		typing:        NewTypingTracker(clock, cfg.TypingExpiry),
		authn:         deps.Authenticator,
		authz:         deps.Authorizer,
		validator:     deps.Validator,
		attachments:   deps.Attachments,
		messages:      deps.Messages,
		dispatcher:    deps.Dispatcher,
		metrics:       deps.Metrics,
		logger:        logger,
		clock:         clock,
		idleTimeout:   cfg.IdleTimeout,
		sweepInterval: cfg.SweepInterval,
		ticketLocks:   make(map[string]*ticketLock),
	}
}

// RegisterHandlers subscribes the hub to domain events it pushes to sockets.
func (h *Hub) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, h.handleTicketCreated)
	dispatcher.Subscribe(events.EventTicketStatusChanged, h.handleTicketStatusChanged)
}

// Connect registers a new, unauthenticated connection.
func (h *Hub) Connect(peer Peer) {
	h.registry.Add(peer, h.clock.Now())
	h.metrics.ConnectionOpened()
	h.logger.Debug("chat connection opened", zap.String("conn_id", peer.ID()))
}

// Disconnect tears down all state for the connection. It is safe to call
// more than once.
func (h *Hub) Disconnect(connID string) {
	h.typing.ClearConnection(connID)
	h.limiter.Forget(connID)

	tickets, identity, ok := h.registry.Remove(connID)
	if !ok {
		return
	}
	h.metrics.ConnectionClosed()
	if identity != nil {
		for _, ticketID := range tickets {
			h.announceLeave(ticketID, "", *identity)
		}
	}
	h.logger.Debug("chat connection closed", zap.String("conn_id", connID), zap.Int("rooms_left", len(tickets)))
}

// Handle decodes one inbound frame and dispatches it. Frames from the same
// connection must be handled sequentially.
func (h *Hub) Handle(ctx context.Context, connID string, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil || strings.TrimSpace(env.Event) == "" {
		h.sendTo(connID, EventError, ErrorData{Message: "malformed frame", Code: apperrors.CodeValidation})
		return
	}
	h.HandleEvent(ctx, connID, env.Event, env.Data)
}

// HandleEvent runs the handler for a decoded event.
func (h *Hub) HandleEvent(ctx context.Context, connID, event string, data json.RawMessage) {
	if !h.registry.Exists(connID) {
		return
	}
	h.registry.Touch(connID, h.clock.Now())

	var err error
	switch event {
	case EventPing:
		h.sendTo(connID, EventPong, PongData{Timestamp: h.clock.Now().UTC()})
	case EventAuthenticate:
		err = h.limited(connID, func() error { return h.authenticate(ctx, connID, data) })
	case EventJoinTicket:
		err = h.limited(connID, func() error { return h.joinTicket(ctx, connID, data) })
	case EventLeaveTicket:
		err = h.leaveTicket(connID, data)
	case EventGetMessages:
		err = h.limited(connID, func() error { return h.getMessages(ctx, connID, data) })
	case EventSendMessage:
		err = h.limited(connID, func() error { return h.sendMessage(ctx, connID, data) })
	case EventTypingStart:
		h.typingStart(connID, data)
	case EventTypingStop:
		h.typingStop(connID, data)
	case EventGetOnlineUsers:
		err = h.onlineUsers(connID, data)
	default:
		h.sendTo(connID, EventError, ErrorData{
			Message: "unknown event: " + event,
			Code:    apperrors.CodeValidation,
		})
		h.metrics.RecordEvent("unknown", "error")
		return
	}

	if err != nil {
		h.fail(connID, event, err)
		return
	}
	h.metrics.RecordEvent(event, "ok")
}

func (h *Hub) limited(connID string, fn func() error) error {
	if err := h.limiter.Allow(connID); err != nil {
		h.metrics.RecordRateLimited()
		return err
	}
	return fn()
}

func (h *Hub) authenticate(ctx context.Context, connID string, data json.RawMessage) error {
	if identity, ok := h.registry.Identity(connID); ok {
		h.sendTo(connID, EventAuthenticated, AuthenticatedData{User: identity})
		return nil
	}

	var req authenticateRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	identity, err := h.authn.Authenticate(ctx, req.Token)
	if err != nil {
		return err
	}
	bound, ok := h.registry.Authenticate(connID, identity)
	if !ok {
		return nil
	}
	h.sendTo(connID, EventAuthenticated, AuthenticatedData{User: bound})
	h.logger.Info("chat connection authenticated",
		zap.String("conn_id", connID),
		zap.String("user_id", bound.UserID),
		zap.String("role", string(bound.Role)))
	return nil
}

func (h *Hub) joinTicket(ctx context.Context, connID string, data json.RawMessage) error {
	identity, err := h.requireIdentity(connID)
	if err != nil {
		return err
	}
	var req ticketRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	ticket, err := h.authz.Authorize(ctx, req.TicketID, identity)
	if err != nil {
		return err
	}

	present := h.registry.UserInRoom(ticket.ID, identity.UserID)
	added, ok := h.registry.Join(connID, ticket.ID)
	if !ok {
		return nil
	}
	if added && !present {
		h.broadcast(ticket.ID, connID, EventUserJoinedTicket, activity(identity, ticket.ID))
	}
	h.sendTo(connID, EventJoinedTicket, JoinedTicketData{Ticket: summarize(ticket)})
	h.sendTo(connID, EventOnlineUsers, OnlineUsersData{TicketID: ticket.ID, Users: h.registry.Presence(ticket.ID)})
	return nil
}

func (h *Hub) leaveTicket(connID string, data json.RawMessage) error {
	var req ticketRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	ticketID := CanonicalTicketID(req.TicketID)
	if ticketID == "" {
		return apperrors.NewValidationError("ticketId is required", map[string]any{"field": "ticketId"})
	}

	if h.registry.Leave(connID, ticketID) {
		h.typing.Stop(connID, ticketID)
		if identity, ok := h.registry.Identity(connID); ok {
			h.announceLeave(ticketID, connID, identity)
		}
	}
	h.sendTo(connID, EventLeftTicket, LeftTicketData{TicketID: ticketID})
	return nil
}

// announceLeave tells the room a user left, unless another of the user's
// connections is still joined.
func (h *Hub) announceLeave(ticketID, except string, identity domain.Identity) {
	if h.registry.UserInRoom(ticketID, identity.UserID) {
		return
	}
	h.broadcast(ticketID, except, EventUserLeftTicket, activity(identity, ticketID))
}

func (h *Hub) getMessages(ctx context.Context, connID string, data json.RawMessage) error {
	identity, err := h.requireIdentity(connID)
	if err != nil {
		return err
	}
	var req getMessagesRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	limit, offset, err := pageBounds(req.Limit, req.Offset)
	if err != nil {
		return err
	}
	ticket, err := h.authz.Authorize(ctx, req.TicketID, identity)
	if err != nil {
		return err
	}

	messages, total, err := h.messages.Page(ctx, ticket.ID, limit, offset)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	h.sendTo(connID, EventMessagesLoaded, MessagesLoadedData{
		TicketID: ticket.ID,
		Messages: messages,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
		HasMore:  offset+len(messages) < total,
	})
	return nil
}

func (h *Hub) sendMessage(ctx context.Context, connID string, data json.RawMessage) error {
	identity, err := h.requireIdentity(connID)
	if err != nil {
		return err
	}
	var req sendMessageRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	validated, err := h.validator.Validate(req.Message, req.Attachments)
	if err != nil {
		return err
	}
	ticket, err := h.authz.Authorize(ctx, req.TicketID, identity)
	if err != nil {
		return err
	}
	text := EscapeHTML(validated.Text)

	unlock := h.lockTicket(ticket.ID)
	msg, err := h.persist(ctx, ticket.ID, identity, text, validated.Attachments)
	if err != nil {
		unlock()
		return err
	}

	if h.typing.Stop(connID, ticket.ID) {
		h.broadcast(ticket.ID, connID, EventUserStoppedTyping, activity(identity, ticket.ID))
	}
	h.broadcast(ticket.ID, "", EventNewMessage, msg)
	if !h.registry.IsJoined(connID, ticket.ID) {
		h.sendTo(connID, EventNewMessage, msg)
	}
	unlock()

	h.metrics.RecordChatMessage()
	if h.dispatcher != nil {
		_ = h.dispatcher.Publish(ctx, events.Event{
			ID:        msg.ID,
			Type:      events.EventChatMessageAdded,
			TicketID:  ticket.ID,
			Actor:     events.Actor{Type: identity.Role, UserID: identity.UserID},
			Timestamp: msg.CreatedAt,
			Payload: events.ChatMessageAddedPayload{
				MessageID:       msg.ID,
				SenderRole:      identity.Role,
				SenderID:        identity.UserID,
				BodyPreview:     preview(validated.Text, 120),
				AttachmentCount: len(msg.Attachments),
			},
		})
	}
	return nil
}

// persist writes every attachment before the message row. Files already
// written are removed if a later step fails.
func (h *Hub) persist(ctx context.Context, ticketID string, identity domain.Identity, text string, incoming []IncomingAttachment) (*domain.ChatMessage, error) {
	saved := make([]domain.Attachment, 0, len(incoming))
	rollback := func() {
		for _, a := range saved {
			h.attachments.Remove(a)
		}
	}

	for _, in := range incoming {
		att, err := h.attachments.Save(ctx, ticketID, in)
		if err != nil {
			rollback()
			h.logger.Error("attachment write failed", zap.String("ticket_id", ticketID), zap.Error(err))
			return nil, err
		}
		saved = append(saved, att)
	}

	msg, err := h.messages.Append(ctx, ticketID, identity, text, saved)
	if err != nil {
		rollback()
		h.logger.Error("chat message append failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	return msg, nil
}

func (h *Hub) typingStart(connID string, data json.RawMessage) {
	identity, ticketID, ok := h.joinedTarget(connID, data)
	if !ok {
		return
	}
	h.broadcast(ticketID, connID, EventUserTyping, activity(identity, ticketID))
	h.typing.Start(connID, ticketID, func() {
		if h.registry.IsJoined(connID, ticketID) {
			h.broadcast(ticketID, connID, EventUserStoppedTyping, activity(identity, ticketID))
		}
	})
}

func (h *Hub) typingStop(connID string, data json.RawMessage) {
	identity, ticketID, ok := h.joinedTarget(connID, data)
	if !ok {
		return
	}
	h.typing.Stop(connID, ticketID)
	h.broadcast(ticketID, connID, EventUserStoppedTyping, activity(identity, ticketID))
}

// joinedTarget resolves the ticket of a typing event, ignoring connections
// that are not in the room.
func (h *Hub) joinedTarget(connID string, data json.RawMessage) (domain.Identity, string, bool) {
	identity, ok := h.registry.Identity(connID)
	if !ok {
		return domain.Identity{}, "", false
	}
	var req ticketRequest
	if err := decode(data, &req); err != nil {
		return domain.Identity{}, "", false
	}
	ticketID := CanonicalTicketID(req.TicketID)
	if ticketID == "" || !h.registry.IsJoined(connID, ticketID) {
		return domain.Identity{}, "", false
	}
	return identity, ticketID, true
}

func (h *Hub) onlineUsers(connID string, data json.RawMessage) error {
	if _, err := h.requireIdentity(connID); err != nil {
		return err
	}
	var req ticketRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	ticketID := CanonicalTicketID(req.TicketID)
	if !h.registry.IsJoined(connID, ticketID) {
		return apperrors.NewForbidden("join the ticket before requesting its online users")
	}
	h.sendTo(connID, EventOnlineUsers, OnlineUsersData{TicketID: ticketID, Users: h.registry.Presence(ticketID)})
	return nil
}

func (h *Hub) handleTicketCreated(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	h.NotifyTicketCreated(TicketCreatedData{
		TicketID:    event.TicketID,
		Title:       payload.Title,
		Description: payload.Description,
		Status:      payload.Status,
		Priority:    payload.Priority,
		ClientID:    payload.ClientID,
		CompanyID:   payload.CompanyID,
		CreatedAt:   payload.CreatedAt,
	})
	return nil
}

// NotifyTicketCreated pushes a new ticket to its owner's connections and to
// every operator connection.
func (h *Hub) NotifyTicketCreated(data TicketCreatedData) {
	frame, err := json.Marshal(Outbound{Event: EventTicketCreated, Data: data})
	if err != nil {
		h.logger.Error("failed to encode ticket_created", zap.Error(err))
		return
	}
	seen := make(map[string]struct{})
	targets := append(h.registry.UserPeers(data.ClientID), h.registry.SuperAdminPeers()...)
	for _, peer := range targets {
		if _, dup := seen[peer.ID()]; dup {
			continue
		}
		seen[peer.ID()] = struct{}{}
		h.deliver(peer, frame)
	}
}

func (h *Hub) handleTicketStatusChanged(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return nil
	}
	h.broadcast(event.TicketID, "", EventTicketStatusChanged, TicketStatusChangedData{
		TicketID:  event.TicketID,
		OldStatus: payload.OldStatus,
		NewStatus: payload.NewStatus,
	})
	return nil
}

// SweepIdle closes connections idle longer than the idle timeout and
// returns how many were closed.
func (h *Hub) SweepIdle() int {
	if h.idleTimeout <= 0 {
		return 0
	}
	idle := h.registry.IdleSince(h.clock.Now().Add(-h.idleTimeout))
	for _, peer := range idle {
		h.logger.Info("closing idle chat connection", zap.String("conn_id", peer.ID()))
		peer.Close()
		h.Disconnect(peer.ID())
	}
	return len(idle)
}

// Run performs periodic rate-limiter and idle sweeps until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	interval := h.sweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := h.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			evicted := h.limiter.Sweep()
			closed := h.SweepIdle()
			conns, rooms := h.registry.Stats()
			h.logger.Debug("chat sweep",
				zap.Int("limiter_evicted", evicted),
				zap.Int("idle_closed", closed),
				zap.Int("connections", conns),
				zap.Int("rooms", rooms))
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown closes every connection.
func (h *Hub) Shutdown() {
	for _, peer := range h.registry.AllPeers() {
		peer.Close()
		h.Disconnect(peer.ID())
	}
}

func (h *Hub) requireIdentity(connID string) (domain.Identity, error) {
	identity, ok := h.registry.Identity(connID)
	if !ok {
		return domain.Identity{}, apperrors.NewNotAuthenticated()
	}
	return identity, nil
}

func (h *Hub) lockTicket(ticketID string) func() {
	h.locksMu.Lock()
	lock, ok := h.ticketLocks[ticketID]
	if !ok {
		lock = &ticketLock{}
		h.ticketLocks[ticketID] = lock
	}
	lock.refs++
	h.locksMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		h.locksMu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(h.ticketLocks, ticketID)
		}
		h.locksMu.Unlock()
	}
}

func (h *Hub) fail(connID, event string, err error) {
	de := apperrors.ToDomainError(err)
	if de.Code == apperrors.CodeInternal {
		h.logger.Error("chat event failed", zap.String("event", event), zap.String("conn_id", connID), zap.Error(err))
	}
	name, ok := errorEventFor[event]
	if !ok {
		name = EventError
	}
	h.sendTo(connID, name, ErrorData{Message: de.Message, Code: de.Code, Details: de.Details})
	h.metrics.RecordEvent(event, de.Code)
}

func (h *Hub) sendTo(connID, event string, data any) {
	frame, err := json.Marshal(Outbound{Event: event, Data: data})
	if err != nil {
		h.logger.Error("failed to encode chat event", zap.String("event", event), zap.Error(err))
		return
	}
	if peer, ok := h.registry.Peer(connID); ok {
		h.deliver(peer, frame)
	}
}

func (h *Hub) broadcast(ticketID, except, event string, data any) {
	peers := h.registry.RoomPeers(ticketID, except)
	if len(peers) == 0 {
		return
	}
	frame, err := json.Marshal(Outbound{Event: event, Data: data})
	if err != nil {
		h.logger.Error("failed to encode chat event", zap.String("event", event), zap.Error(err))
		return
	}
	for _, peer := range peers {
		h.deliver(peer, frame)
	}
}

// deliver drops connections whose send buffer is full.
func (h *Hub) deliver(peer Peer, frame []byte) {
	if peer.Send(frame) {
		return
	}
	h.logger.Warn("chat send buffer full, closing connection", zap.String("conn_id", peer.ID()))
	peer.Close()
}

func activity(identity domain.Identity, ticketID string) RoomActivityData {
	return RoomActivityData{
		UserID:   identity.UserID,
		UserName: identity.DisplayName,
		Role:     identity.Role,
		TicketID: ticketID,
	}
}

func decode(data json.RawMessage, target any) error {
	if !present(data) {
		return apperrors.NewValidationError("payload is required", nil)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return apperrors.NewValidationError("malformed payload", map[string]any{"reason": err.Error()})
	}
	return nil
}

func pageBounds(limit, offset *int) (int, int, error) {
	l, o := defaultPageSize, 0
	if limit != nil {
		l = *limit
	}
	if offset != nil {
		o = *offset
	}
	if l < 1 || l > maxPageSize {
		return 0, 0, apperrors.NewValidationError("limit must be between 1 and 200", map[string]any{"field": "limit"})
	}
	if o < 0 {
		return 0, 0, apperrors.NewValidationError("offset must not be negative", map[string]any{"field": "offset"})
	}
	return l, o, nil
}

func preview(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-3]) + "..."
}
