// Package ws owns the live websocket connections. The Hub is a
// connection table keyed by connection ID with serialized writes per
// connection; everything above it addresses peers by ID and never
// touches a socket directly.
package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/techlink-io/techlink/internal/domain"
)

// Hub tracks live connections and delivers envelopes to them.
type Hub struct {
	mu           sync.RWMutex
	conns        map[string]*client
	writeTimeout time.Duration
}

// client pairs a socket with a write mutex. gorilla/websocket allows at
// most one concurrent writer per connection.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewHub creates an empty hub. writeTimeout bounds every outbound frame.
func NewHub(writeTimeout time.Duration) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = time.Second
	}
	return &Hub{
		conns:        make(map[string]*client),
		writeTimeout: writeTimeout,
	}
}

// Add registers a connection under connID.
func (h *Hub) Add(connID string, conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[connID] = &client{conn: conn}
	h.mu.Unlock()
}

// Remove drops the connection from the table. The caller closes the
// socket; the hub only stops routing to it.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()
}

// Send delivers one envelope to connID. Best effort: an unknown ID or a
// write failure is returned to the caller, who decides whether it
// matters. A failed write never affects other connections.
func (h *Hub) Send(connID string, env domain.Envelope) error {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("send %s: connection %s gone", env.Event, connID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	return c.conn.WriteJSON(env)
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll sends a close frame to every connection and empties the
// table. Used on daemon shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	deadline := time.Now().Add(h.writeTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for id, c := range h.conns {
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = c.conn.Close()
		c.mu.Unlock()
		delete(h.conns, id)
	}
}
