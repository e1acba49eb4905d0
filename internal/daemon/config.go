// Package daemon manages the TechLink daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	Node      NodeConfig      `toml:"node"`
	API       APIConfig       `toml:"api"`
	Relay     RelayConfig     `toml:"relay"`
	Journal   JournalConfig   `toml:"journal"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Logging   LoggingConfig   `toml:"logging"`
}

// NodeConfig identifies this node.
type NodeConfig struct {
	ID     string `toml:"id"`
	Region string `toml:"region"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// RelayConfig controls the websocket relay.
type RelayConfig struct {
	PingInterval    string `toml:"ping_interval"`
	PongWait        string `toml:"pong_wait"`
	WriteTimeout    string `toml:"write_timeout"`
	MaxMessageBytes int64  `toml:"max_message_bytes"`
}

// JournalConfig controls the dropped-event journal.
type JournalConfig struct {
	Enabled   bool   `toml:"enabled"`
	Dir       string `toml:"dir"`
	Retention string `toml:"retention"`
}

// TelemetryConfig controls metrics exposure.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := techlinkHome()
	return Config{
		Node: NodeConfig{
			Region: "auto",
		},
		API: APIConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			CORSOrigins: []string{"*"},
		},
		Relay: RelayConfig{
			PingInterval:    "30s",
			PongWait:        "60s",
			WriteTimeout:    "5s",
			MaxMessageBytes: 64 * 1024,
		},
		Journal: JournalConfig{
			Enabled:   true,
			Dir:       homeDir,
			Retention: "168h",
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(homeDir, "techlink.log"),
		},
	}
}

// LoadConfig reads config from ~/.techlink/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(techlinkHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet, use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.techlink/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(techlinkHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// techlinkHome returns the TechLink data directory.
func techlinkHome() string {
	if env := os.Getenv("TECHLINK_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".techlink")
}

// TechlinkHome is exported for use by other packages.
func TechlinkHome() string {
	return techlinkHome()
}
