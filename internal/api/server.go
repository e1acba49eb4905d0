// Package api provides the HTTP server for TechLink.
// It exposes the websocket relay endpoint and a small operational API.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/techlink-io/techlink/internal/app/relay"
	"github.com/techlink-io/techlink/internal/health"
	"github.com/techlink-io/techlink/internal/infra/journal"
	"github.com/techlink-io/techlink/internal/infra/registry"
	"github.com/techlink-io/techlink/internal/infra/ws"
)

// Server is the TechLink HTTP API server.
type Server struct {
	hub     *ws.Hub
	relay   *relay.Relay
	reg     *registry.Registry
	journal *journal.Journal
	checker *health.Checker

	version        string
	startedAt      time.Time
	metricsEnabled bool
	corsOrigins    []string
	nodeID         string
	region         string

	pingInterval    time.Duration
	pongWait        time.Duration
	maxMessageBytes int64
}

// NewServer creates a new API server.
func NewServer(hub *ws.Hub, rly *relay.Relay, reg *registry.Registry, jrnl *journal.Journal, checker *health.Checker, version string) *Server {
	return &Server{
		hub:             hub,
		relay:           rly,
		reg:             reg,
		journal:         jrnl,
		checker:         checker,
		version:         version,
		startedAt:       time.Now(),
		pingInterval:    30 * time.Second,
		pongWait:        60 * time.Second,
		maxMessageBytes: 64 * 1024,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetNodeInfo records the node identity reported by /api/status.
func (s *Server) SetNodeInfo(nodeID, region string) {
	s.nodeID = nodeID
	s.region = region
}

// SetCORSOrigins restricts browser origins allowed to connect.
// An empty list or a "*" entry allows any origin.
func (s *Server) SetCORSOrigins(origins []string) { s.corsOrigins = origins }

// SetKeepalive tunes the websocket ping cadence and pong deadline.
func (s *Server) SetKeepalive(pingInterval, pongWait time.Duration) {
	if pingInterval > 0 {
		s.pingInterval = pingInterval
	}
	if pongWait > 0 {
		s.pongWait = pongWait
	}
}

// SetMaxMessageBytes bounds the size of a single inbound frame.
func (s *Server) SetMaxMessageBytes(n int64) {
	if n > 0 {
		s.maxMessageBytes = n
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	// The websocket endpoint lives outside the timeout middleware:
	// relay connections are long-lived by design.
	r.Get("/ws", s.handleWS)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/status", s.handleStatus)
		r.Get("/version", s.handleVersion)
		r.Get("/events", s.handleEvents)
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses := s.checker.Statuses()
	status := http.StatusOK
	if !s.checker.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"healthy": s.checker.IsHealthy(),
		"checks":  statuses,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	customers, technicians, available := s.reg.Counts()
	body := map[string]interface{}{
		"status":                "TechLink is running",
		"node_id":               s.nodeID,
		"region":                s.region,
		"uptime_seconds":        int64(time.Since(s.startedAt).Seconds()),
		"connections":           s.hub.Count(),
		"customers":             customers,
		"technicians":           technicians,
		"technicians_available": available,
	}

	// Job transition counters over the last day, from the journal.
	if s.journal != nil {
		counts, err := s.journal.Counts(time.Now().Add(-24 * time.Hour))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		body["jobs_24h"] = map[string]int{
			"requested": counts["job_requested"],
			"accepted":  counts["job_accepted"],
			"rejected":  counts["job_rejected"],
			"cancelled": counts["job_cancelled"],
			"completed": counts["job_completed"],
		}
	}

	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": s.version,
	})
}

// handleEvents returns the most recent journal entries, newest first.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "event journaling is disabled")
		return
	}

	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	events, err := s.journal.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for browser clients.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(s.corsOrigins) > 0 && s.corsOrigins[0] != "*" {
			origin = s.corsOrigins[0]
			for _, o := range s.corsOrigins {
				if o == r.Header.Get("Origin") {
					origin = o
					break
				}
			}
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
