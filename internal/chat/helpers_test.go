package chat

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
)

type fakePeer struct {
	id     string
	mu     sync.Mutex
	frames []Envelope
	closed bool
	full   bool
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{id: id}
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(frame []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.full || p.closed {
		return false
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		panic(err)
	}
	p.frames = append(p.frames, env)
	return true
}

func (p *fakePeer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// events returns received event names in order.
func (p *fakePeer) events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, len(p.frames))
	for i, f := range p.frames {
		names[i] = f.Event
	}
	return names
}

// count returns how many times an event was received.
func (p *fakePeer) count(event string) int {
	n := 0
	for _, e := range p.events() {
		if e == event {
			n++
		}
	}
	return n
}

// last decodes the most recent frame of the given event into target.
func (p *fakePeer) last(t *testing.T, event string, target any) bool {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.frames) - 1; i >= 0; i-- {
		if p.frames[i].Event == event {
			require.NoError(t, json.Unmarshal(p.frames[i].Data, target))
			return true
		}
	}
	return false
}

func (p *fakePeer) reset() {
	p.mu.Lock()
	p.frames = nil
	p.mu.Unlock()
}

type memClients map[string]*domain.Client

func (m memClients) GetByID(_ context.Context, id string) (*domain.Client, error) {
	if c, ok := m[id]; ok {
		return c, nil
	}
	return nil, pgx.ErrNoRows
}

type memAdmins map[string]*domain.SuperAdmin

func (m memAdmins) GetByID(_ context.Context, id string) (*domain.SuperAdmin, error) {
	if a, ok := m[id]; ok {
		return a, nil
	}
	return nil, pgx.ErrNoRows
}

type memTickets map[string]*domain.Ticket

func (m memTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	if t, ok := m[id]; ok {
		return t, nil
	}
	return nil, pgx.ErrNoRows
}

// memMessages is an in-memory chat message repository.
type memMessages struct {
	mu    sync.Mutex
	clock clockwork.Clock
	rows  []domain.ChatMessage
	err   error
}

func (m *memMessages) Append(_ context.Context, msg *domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	msg.ID = uuid.NewString()
	msg.CreatedAt = m.clock.Now().Add(time.Duration(len(m.rows)) * time.Microsecond)
	stored := *msg
	stored.Attachments = make([]domain.Attachment, len(msg.Attachments))
	for i, a := range msg.Attachments {
		a.URL = ""
		stored.Attachments[i] = a
	}
	m.rows = append(m.rows, stored)
	return nil
}

func (m *memMessages) History(_ context.Context, ticketID string) ([]domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ChatMessage
	for _, row := range m.rows {
		if row.TicketID == ticketID {
			cp := row
			cp.Attachments = append([]domain.Attachment{}, row.Attachments...)
			out = append(out, cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memMessages) Page(ctx context.Context, ticketID string, limit, offset int) ([]domain.ChatMessage, int, error) {
	all, _ := m.History(ctx, ticketID)
	total := len(all)
	if offset >= total {
		return []domain.ChatMessage{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

const (
	ticketA = "11111111-1111-1111-1111-111111111111"
	ticketB = "22222222-2222-2222-2222-222222222222"
	ticketC = "aaaaaaaa-bbbb-4ccc-8ddd-eeeeeeeeeeee"
)

type hubFixture struct {
	hub        *Hub
	clock      *clockwork.FakeClock
	tokens     *auth.TokenManager
	messages   *memMessages
	dispatcher events.Dispatcher
	uploadRoot string
	cfg        config.ChatConfig
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	companyID := "company-1"

	clients := memClients{
		"client-a":       {ID: "client-a", Name: "Alice", Email: "alice@example.com", CompanyID: companyID, Status: domain.ClientStatusApproved},
		"client-b":       {ID: "client-b", Name: "Bob", Email: "bob@example.com", CompanyID: companyID, Status: domain.ClientStatusApproved},
		"client-pending": {ID: "client-pending", Name: "Pat", Email: "pat@example.com", CompanyID: companyID, Status: domain.ClientStatusPending},
	}
	admins := memAdmins{
		"admin-1": {ID: "admin-1", Name: "Root", Email: "root@example.com"},
	}
	tickets := memTickets{
		ticketA: {ID: ticketA, ClientID: "client-a", CompanyID: companyID, Title: "Broken login", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityHigh},
		ticketB: {ID: ticketB, ClientID: "client-b", CompanyID: companyID, Title: "Billing", Status: domain.TicketStatusClosed, Priority: domain.TicketPriorityLow},
		ticketC: {ID: ticketC, ClientID: "client-a", CompanyID: companyID, Title: "Export", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityMedium},
	}

	cfg := config.ChatConfig{
		RateWindow:         time.Minute,
		RateMax:            100,
		SweepInterval:      5 * time.Minute,
		IdleTimeout:        24 * time.Hour,
		TypingExpiry:       3 * time.Second,
		MaxAttachmentBytes: 1 << 10,
	}

	tokens := auth.NewTokenManager("chat-test-secret", 60)
	messages := &memMessages{clock: clock}
	uploadRoot := t.TempDir()
	store := NewAttachmentStore(uploadRoot, "https://files.example.com/", clock, zap.NewNop())
	dispatcher := events.NewInMemoryDispatcher()

	hub := NewHub(cfg, HubDependencies{
		Authenticator: NewAuthenticator(tokens, clients, admins),
		Authorizer:    NewAuthorizer(tickets),
		Validator:     NewMessageValidator(cfg.MaxAttachmentBytes, nil),
		Attachments:   store,
		Messages:      NewMessageStore(messages, store),
		Dispatcher:    dispatcher,
		Logger:        zap.NewNop(),
		Clock:         clock,
	})
	hub.RegisterHandlers(dispatcher)

	return &hubFixture{
		hub:        hub,
		clock:      clock,
		tokens:     tokens,
		messages:   messages,
		dispatcher: dispatcher,
		uploadRoot: uploadRoot,
		cfg:        cfg,
	}
}

func (f *hubFixture) token(t *testing.T, subjectID string, role domain.SubjectType) string {
	t.Helper()
	token, _, err := f.tokens.GenerateToken(subjectID, role)
	require.NoError(t, err)
	return token
}

// connect opens a peer and optionally authenticates it.
func (f *hubFixture) connect(t *testing.T, connID, subjectID string, role domain.SubjectType) *fakePeer {
	t.Helper()
	peer := newFakePeer(connID)
	f.hub.Connect(peer)
	if subjectID != "" {
		f.send(peer, EventAuthenticate, map[string]any{"token": f.token(t, subjectID, role)})
		require.Equal(t, 1, peer.count(EventAuthenticated), "authentication failed: %v", peer.events())
	}
	return peer
}

func (f *hubFixture) send(peer *fakePeer, event string, data any) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			panic(err)
		}
		raw = b
	}
	f.hub.HandleEvent(context.Background(), peer.ID(), event, raw)
}
