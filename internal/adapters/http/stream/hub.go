// Package stream pushes views to websocket clients.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/pkg/logger"
	"github.com/okian/liveboard/pkg/metrics"
)

// SinkName identifies the hub in metrics and logs.
const SinkName = "stream"

// Default hub configuration constants.
const (
	defaultPingInterval = 30 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultSendBuffer   = 64
)

// Hub fans views out to connected websocket clients. A client whose send
// buffer is full is disconnected rather than slowing the others down.
type Hub struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeTimeout time.Duration
	sendBuffer   int
	initial      func() []model.View
	logger       logger.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// NewHub creates a hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pingInterval: defaultPingInterval,
		writeTimeout: defaultWriteTimeout,
		sendBuffer:   defaultSendBuffer,
		initial:      func() []model.View { return nil },
		logger:       logger.Nop(),
		clients:      make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements worker.Sink.
func (h *Hub) Name() string { return SinkName }

// Deliver implements worker.Sink by broadcasting v to every client.
func (h *Hub) Deliver(_ context.Context, v model.View) error { //nolint:gocritic // hugeParam: matches worker.Sink
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode view %s: %w", v.EntityID, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.dropLocked(c)
			h.logger.Warn(context.Background(), "dropping slow stream client",
				logger.String("remote", c.conn.RemoteAddr().String()))
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams views until the client leaves.
// The current views are sent first. The client is registered before they are
// read, so a view delivered meanwhile is not lost; it may arrive ahead of an
// older current view, and clients keep the highest version per entity.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.sendBuffer), done: make(chan struct{})}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	metrics.UpdateStreamClients(len(h.clients))
	h.mu.Unlock()

	for _, v := range h.initial() {
		payload, err := json.Marshal(v)
		if err != nil {
			continue
		}
		select {
		case c.send <- payload:
		default:
		}
	}

	go h.readLoop(c)
	h.writeLoop(c)
}

// readLoop discards client messages and notices disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		h.remove(c)
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		c.stop()
		return
	}
	delete(h.clients, c)
	c.stop()
	metrics.UpdateStreamClients(len(h.clients))
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}
