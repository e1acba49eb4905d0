package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/techlink-io/techlink/internal/domain"
)

// handleWS upgrades the request and runs the connection's event loop.
// Each connection gets a server-assigned ID; peers address each other
// by user ID and the registry maps between the two.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Printf("[api] websocket upgrade failed: %v", err)
		return
	}

	connID := uuid.NewString()
	s.hub.Add(connID, conn)
	s.relay.HandleConnect(connID)

	done := make(chan struct{})
	go s.pingLoop(conn, done)

	conn.SetReadLimit(s.maxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[api] read error on %s: %v", connID, err)
			}
			break
		}

		var env domain.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			// A frame that is not an envelope is dropped, not fatal.
			log.Printf("[api] malformed frame on %s: %v", connID, err)
			continue
		}
		s.relay.Dispatch(connID, env)
	}

	close(done)
	s.hub.Remove(connID)
	s.relay.HandleDisconnect(connID)
	_ = conn.Close()
}

// pingLoop keeps the connection alive until done closes. A peer that
// stops answering pings trips the read deadline in the event loop.
func (s *Server) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.pingInterval / 2)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// checkOrigin applies the configured CORS origin list to the websocket
// handshake. No configured origins means any origin may connect.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.corsOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.corsOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
