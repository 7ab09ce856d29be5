package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

// Stream message types.
const (
	MessageAssessment = "assessment"
	MessageAlert      = "alert"
)

const (
	defaultSendBuffer = 16
	writeWait         = 5 * time.Second
	recentFrames      = 4096
)

// Message is the envelope pushed to stream clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub fans scored frames and alerts out to WebSocket clients. A client whose
// send buffer is full is disconnected instead of blocking the pipeline.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	sendBuf  int

	mu      sync.Mutex
	clients map[*client]struct{}

	seenMu sync.Mutex
	seen   *domain.RecentKeys
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		sendBuf: defaultSendBuffer,
		clients: make(map[*client]struct{}),
		seen:    domain.NewRecentKeys(recentFrames),
	}
}

func (h *Hub) Name() string { return "stream" }

// WriteBatch pushes one assessment message per frame. Frames already pushed
// are skipped.
func (h *Hub) WriteBatch(_ context.Context, frames []*domain.ScoredFrame) error {
	for _, f := range frames {
		if f == nil || h.pushed(f) {
			continue
		}
		h.Broadcast(MessageAssessment, f)
	}
	return nil
}

func (h *Hub) pushed(f *domain.ScoredFrame) bool {
	h.seenMu.Lock()
	defer h.seenMu.Unlock()
	return h.seen.Seen(f.Key())
}

// PublishAlert pushes an alert message. It matches the alert engine's
// subscriber signature.
func (h *Hub) PublishAlert(a domain.Alert) {
	h.Broadcast(MessageAlert, a)
}

func (h *Hub) Broadcast(msgType string, data any) {
	payload, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		h.logger.Error("stream marshal failed", "type", msgType, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			delete(h.clients, c)
			c.close()
			h.logger.Warn("stream client too slow, disconnecting", "remote", c.conn.RemoteAddr().String())
		}
	}
}

// Clients returns the number of connected stream clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

// ServeWS upgrades the request and streams messages until the client goes
// away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.sendBuf)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards inbound messages; it only exists to notice disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.unregister(c)
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

var _ ports.Sink = (*Hub)(nil)
