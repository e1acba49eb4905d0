package daemon

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/techlink-io/techlink/internal/api"
	"github.com/techlink-io/techlink/internal/app/dispatch"
	"github.com/techlink-io/techlink/internal/app/presence"
	"github.com/techlink-io/techlink/internal/app/relay"
	"github.com/techlink-io/techlink/internal/app/signaling"
	"github.com/techlink-io/techlink/internal/health"
	"github.com/techlink-io/techlink/internal/infra/journal"
	_ "github.com/techlink-io/techlink/internal/infra/metrics" // Register Prometheus metrics
	"github.com/techlink-io/techlink/internal/infra/registry"
	"github.com/techlink-io/techlink/internal/infra/ws"
)

// Daemon is the core TechLink runtime. It wires together all services.
type Daemon struct {
	Config   Config
	Registry *registry.Registry
	Hub      *ws.Hub
	Relay    *relay.Relay
	Journal  *journal.Journal
	Health   *health.Checker
	Server   *api.Server
	cancel   context.CancelFunc

	version string
}

// New creates and initializes a Daemon with all services wired.
func New(version string) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg, version)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config, version string) (*Daemon, error) {
	// Event journal, optional
	var jrnl *journal.Journal
	if cfg.Journal.Enabled {
		dir := cfg.Journal.Dir
		if dir == "" {
			dir = techlinkHome()
		}
		j, err := journal.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		jrnl = j
	}

	// Peer registry and connection hub
	reg := registry.New()
	hub := ws.NewHub(parseDuration(cfg.Relay.WriteTimeout, 5*time.Second))

	// Relay pipeline
	pb := presence.New(reg, hub)
	rt := signaling.New(reg, hub)
	wf := dispatch.New(reg, hub, pb, jrnl)
	rly := relay.New(reg, pb, rt, wf, jrnl)

	// Health checker
	checker := health.NewChecker(reg, jrnl)

	// API server
	srv := api.NewServer(hub, rly, reg, jrnl, checker, version)
	nodeID := cfg.Node.ID
	if nodeID == "" {
		nodeID = "node-local"
	}
	srv.SetNodeInfo(nodeID, cfg.Node.Region)
	srv.SetCORSOrigins(cfg.API.CORSOrigins)
	srv.SetKeepalive(
		parseDuration(cfg.Relay.PingInterval, 30*time.Second),
		parseDuration(cfg.Relay.PongWait, 60*time.Second),
	)
	srv.SetMaxMessageBytes(cfg.Relay.MaxMessageBytes)

	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:   cfg,
		Registry: reg,
		Hub:      hub,
		Relay:    rly,
		Journal:  jrnl,
		Health:   checker,
		Server:   srv,
		version:  version,
	}, nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	if err := setupLogging(d.Config.Logging); err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Health checker (always runs)
	go d.Health.Run(ctx)

	// Journal retention sweep
	if d.Journal != nil {
		go d.pruneLoop(ctx)
	}

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     d.Server.Handler(),
		ReadTimeout: 0, // Websocket connections are long-lived
		IdleTimeout: 2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		d.Hub.CloseAll()
		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.Journal.Close()
	}()

	fmt.Printf("TechLink relay serving on http://%s\n", addr)
	fmt.Printf("  Websocket: ws://%s/ws\n", addr)
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// pruneLoop trims journal entries past the retention window once an hour.
func (d *Daemon) pruneLoop(ctx context.Context) {
	retention := parseDuration(d.Config.Journal.Retention, 168*time.Hour)
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := d.Journal.Prune(retention); err != nil {
				log.Printf("[daemon] journal prune: %v", err)
			} else if n > 0 {
				log.Printf("[daemon] journal pruned %d entries", n)
			}
		}
	}
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Hub != nil {
		d.Hub.CloseAll()
	}
	_ = d.Journal.Close()
}

// setupLogging applies the [logging] config: an optional log file in
// addition to stderr, and source locations at debug level.
func setupLogging(cfg LoggingConfig) error {
	if cfg.Level == "debug" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
	if cfg.File == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
