package handlers

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/chat"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
)

const socketClientID = "client-ws"

type socketClients map[string]*domain.Client

func (s socketClients) GetByID(_ context.Context, id string) (*domain.Client, error) {
	if c, ok := s[id]; ok {
		return c, nil
	}
	return nil, pgx.ErrNoRows
}

type socketAdmins struct{}

func (socketAdmins) GetByID(context.Context, string) (*domain.SuperAdmin, error) {
	return nil, pgx.ErrNoRows
}

// recordingHub hands out the server side of each connection and reports
// teardown.
type recordingHub struct {
	*chat.Hub
	peers chan chat.Peer
	gone  chan string
}

func (h *recordingHub) Connect(peer chat.Peer) {
	h.Hub.Connect(peer)
	h.peers <- peer
}

func (h *recordingHub) Disconnect(connID string) {
	h.Hub.Disconnect(connID)
	h.gone <- connID
}

type socketFixture struct {
	addr   string
	hub    *recordingHub
	tokens *auth.TokenManager
}

func newSocketFixture(t *testing.T) *socketFixture {
	t.Helper()

	tokens := auth.NewTokenManager("socket-secret", 60)
	clients := socketClients{socketClientID: {
		ID:        socketClientID,
		Name:      "Socket Client",
		Email:     "socket@example.com",
		CompanyID: "00000000-0000-0000-0000-00000000c001",
		Status:    domain.ClientStatusApproved,
	}}
	hub := &recordingHub{
		Hub: chat.NewHub(config.ChatConfig{
			RateWindow:   time.Minute,
			RateMax:      100,
			TypingExpiry: 3 * time.Second,
		}, chat.HubDependencies{
			Authenticator: chat.NewAuthenticator(tokens, clients, socketAdmins{}),
			Logger:        zap.NewNop(),
		}),
		peers: make(chan chat.Peer, 4),
		gone:  make(chan string, 4),
	}

	ctx, cancel := context.WithCancel(context.Background())
	ws := NewWebSocketHandler(ctx, hub, zap.NewNop(), 8)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", ws.Upgrade, ws.Handler())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() {
		cancel()
		_ = app.Shutdown()
	})

	return &socketFixture{addr: ln.Addr().String(), hub: hub, tokens: tokens}
}

func (f *socketFixture) dial(t *testing.T) (*fastws.Conn, chat.Peer) {
	t.Helper()
	conn, _, err := fastws.DefaultDialer.Dial("ws://"+f.addr+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	select {
	case peer := <-f.hub.peers:
		return conn, peer
	case <-time.After(5 * time.Second):
		t.Fatal("server never registered the connection")
		return nil, nil
	}
}

func writeEvent(t *testing.T, conn *fastws.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	frame, err := json.Marshal(chat.Envelope{Event: event, Data: raw})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(fastws.TextMessage, frame))
}

func readEvent(t *testing.T, conn *fastws.Conn) chat.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	msgType, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, fastws.TextMessage, msgType)
	var env chat.Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	return env
}

func TestWebSocketAuthenticateRoundTrip(t *testing.T) {
	f := newSocketFixture(t)
	conn, _ := f.dial(t)

	token, _, err := f.tokens.GenerateToken(socketClientID, domain.SubjectTypeClient)
	require.NoError(t, err)

	// non-text frames are ignored
	require.NoError(t, conn.WriteMessage(fastws.BinaryMessage, []byte{0x01, 0x02}))

	writeEvent(t, conn, chat.EventAuthenticate, map[string]string{"token": token})
	env := readEvent(t, conn)
	require.Equal(t, chat.EventAuthenticated, env.Event)

	var data chat.AuthenticatedData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, socketClientID, data.User.UserID)
	assert.Equal(t, domain.SubjectTypeClient, data.User.Role)

	writeEvent(t, conn, chat.EventPing, struct{}{})
	assert.Equal(t, chat.EventPong, readEvent(t, conn).Event)
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	f := newSocketFixture(t)
	conn, _ := f.dial(t)

	writeEvent(t, conn, chat.EventAuthenticate, map[string]string{"token": "not-a-jwt"})
	assert.Equal(t, chat.EventAuthenticationError, readEvent(t, conn).Event)
}

func TestWebSocketServerCloseSendsCloseFrame(t *testing.T) {
	f := newSocketFixture(t)
	conn, peer := f.dial(t)

	peer.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, fastws.IsCloseError(err, fastws.CloseNormalClosure), "got %v", err)

	// Disconnect runs only after both pumps have returned
	select {
	case id := <-f.hub.gone:
		assert.Equal(t, peer.ID(), id)
	case <-time.After(5 * time.Second):
		t.Fatal("pumps did not stop after Close")
	}
	assert.False(t, peer.Send([]byte(`{"event":"pong"}`)))
}

func TestWebSocketClientCloseDisconnects(t *testing.T) {
	f := newSocketFixture(t)
	conn, peer := f.dial(t)

	msg := fastws.FormatCloseMessage(fastws.CloseGoingAway, "bye")
	require.NoError(t, conn.WriteControl(fastws.CloseMessage, msg, time.Now().Add(time.Second)))

	select {
	case id := <-f.hub.gone:
		assert.Equal(t, peer.ID(), id)
	case <-time.After(5 * time.Second):
		t.Fatal("server kept the connection after the client closed")
	}
}

func TestWebSocketUpgradeRequired(t *testing.T) {
	ws := NewWebSocketHandler(context.Background(), nil, zap.NewNop(), 0)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", ws.Upgrade, ws.Handler())

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestSocketPeerSendIsNonBlocking(t *testing.T) {
	peer := &socketPeer{
		id:     "conn-1",
		send:   make(chan []byte, 1),
		done:   make(chan struct{}),
		logger: zap.NewNop(),
	}

	assert.True(t, peer.Send([]byte("first")))
	assert.False(t, peer.Send([]byte("second")), "full buffer must not block")

	<-peer.send
	peer.Close()
	peer.Close()
	assert.False(t, peer.Send([]byte("third")), "closed peer must refuse frames")
}
