package daemon

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "0.0.0.0")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8080)
	}
	if cfg.Relay.PingInterval != "30s" {
		t.Errorf("Relay.PingInterval = %q, want %q", cfg.Relay.PingInterval, "30s")
	}
	if !cfg.Journal.Enabled {
		t.Error("Journal.Enabled should default to true")
	}
	if !cfg.Telemetry.Prometheus {
		t.Error("Telemetry.Prometheus should default to true")
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		fallback time.Duration
		want     time.Duration
	}{
		{"30s", time.Second, 30 * time.Second},
		{"2m", time.Second, 2 * time.Minute},
		{"", 10 * time.Second, 10 * time.Second},       // Empty uses fallback
		{"garbage", 10 * time.Second, 10 * time.Second}, // Unparsable uses fallback
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseDuration(tt.input, tt.fallback)
			if got != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestConfigRoundTrip(t *testing.T) {
	t.Setenv("TECHLINK_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.API.Port = 9090
	cfg.Journal.Enabled = false
	cfg.API.CORSOrigins = []string{"https://app.example.com"}

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", loaded.API.Port)
	}
	if loaded.Journal.Enabled {
		t.Error("Journal.Enabled should round-trip as false")
	}
	if len(loaded.API.CORSOrigins) != 1 || loaded.API.CORSOrigins[0] != "https://app.example.com" {
		t.Errorf("CORSOrigins = %v", loaded.API.CORSOrigins)
	}
}

func TestLoadConfigNoFile(t *testing.T) {
	t.Setenv("TECHLINK_HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != DefaultConfig().API.Port {
		t.Error("missing config file should fall back to defaults")
	}
}
