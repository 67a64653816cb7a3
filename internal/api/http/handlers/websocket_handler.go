package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxFrameBytes  = 64 << 20
	defaultSendBuf = 256
)

// ChatHub is the part of the hub the socket transport drives.
type ChatHub interface {
	Connect(peer chat.Peer)
	Handle(ctx context.Context, connID string, frame []byte)
	Disconnect(connID string)
}

// WebSocketHandler upgrades /ws requests and pumps frames to the hub.
type WebSocketHandler struct {
	hub        ChatHub
	logger     *zap.Logger
	sendBuffer int
	ctx        context.Context
}

// NewWebSocketHandler constructs handler. ctx bounds every connection's
// handler context and is cancelled at shutdown.
func NewWebSocketHandler(ctx context.Context, hub ChatHub, logger *zap.Logger, sendBuffer int) *WebSocketHandler {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuf
	}
	return &WebSocketHandler{hub: hub, logger: logger, sendBuffer: sendBuffer, ctx: ctx}
}

// Upgrade rejects plain HTTP requests to the socket route.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler returns the fiber handler serving upgraded connections.
func (h *WebSocketHandler) Handler() fiber.Handler {
	return websocket.New(h.serve, websocket.Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		RecoverHandler: func(conn *websocket.Conn) {
			if r := recover(); r != nil {
				h.logger.Error("websocket handler panic", zap.Any("panic", r))
			}
		},
	})
}

func (h *WebSocketHandler) serve(conn *websocket.Conn) {
	peer := &socketPeer{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, h.sendBuffer),
		done:   make(chan struct{}),
		logger: h.logger,
	}

	h.hub.Connect(peer)
	defer h.hub.Disconnect(peer.id)
	h.logger.Debug("websocket connected", zap.String("conn_id", peer.id), zap.String("ip", conn.IP()))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		peer.writePump()
	}()

	peer.readPump(h.ctx, h.hub)
	peer.Close()
	wg.Wait()
}

// socketPeer adapts a websocket connection to chat.Peer. The connection is
// read only by readPump and written only by writePump.
type socketPeer struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func (p *socketPeer) ID() string { return p.id }

// Send queues a frame. It reports false when the buffer is full or the
// peer is closing.
func (p *socketPeer) Send(frame []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which closes the underlying connection.
func (p *socketPeer) Close() {
	p.once.Do(func() { close(p.done) })
}

func (p *socketPeer) readPump(ctx context.Context, hub ChatHub) {
	p.conn.SetReadLimit(maxFrameBytes)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, frame, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				p.logger.Warn("websocket read error", zap.String("conn_id", p.id), zap.Error(err))
			}
			return
		}
		select {
		case <-p.done:
			return
		default:
		}
		// any inbound frame proves the peer is alive
		_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
		if msgType != websocket.TextMessage {
			continue
		}
		hub.Handle(ctx, p.id, frame)
	}
}

func (p *socketPeer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()

	for {
		select {
		case frame := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				p.logger.Debug("websocket write failed", zap.String("conn_id", p.id), zap.Error(err))
				p.Close()
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.Close()
				return
			}
		case <-p.done:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
