// Package config defines Fieldline's configuration file schema and its
// viper binding. Configuration is read from fieldline.yaml and FIELDLINE_*
// environment variables; flags override both.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Gateway   GatewayConfig   `yaml:"gateway" mapstructure:"gateway"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host            string   `yaml:"host" mapstructure:"host"`
	Port            int      `yaml:"port" mapstructure:"port"`
	ShutdownTimeout string   `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// DatabaseConfig selects the backing store. Driver is "sqlite" or
// "postgres"; for sqlite an empty DSN falls back to <data_dir>/fieldline.db.
type DatabaseConfig struct {
	Driver  string `yaml:"driver" mapstructure:"driver"`
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
}

// AuthConfig controls admin sessions.
type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	SessionTTL string `yaml:"session_ttl" mapstructure:"session_ttl"`
}

// GatewayConfig controls the /mcp tool gateway.
type GatewayConfig struct {
	// AllowedOrigins is the CORS allow-list for browser-based agent
	// clients. The first entry is the fallback for non-allow-listed
	// origins.
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// RateLimitConfig sets the default fixed-window policy for keys without
// per-key overrides.
type RateLimitConfig struct {
	WindowSeconds int `yaml:"window_seconds" mapstructure:"window_seconds"`
	MaxRequests   int `yaml:"max_requests" mapstructure:"max_requests"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: "30s",
			CORSOrigins:     []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
		},
		Auth: AuthConfig{
			SessionTTL: "12h",
		},
		Gateway: GatewayConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		RateLimit: RateLimitConfig{
			WindowSeconds: 60,
			MaxRequests:   120,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load merges viper's state (config file, env, bound flags) over the
// defaults.
func Load() (Config, error) {
	cfg := Default()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse configuration: %w", err)
	}
	return cfg, nil
}

// WriteExample writes a commented starter configuration file.
func WriteExample(path string) error {
	b, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal example config: %w", err)
	}
	header := []byte("# Fieldline configuration. Values may also be set via FIELDLINE_* env vars.\n")
	return os.WriteFile(path, append(header, b...), 0o644)
}

// ShutdownTimeoutDuration parses the shutdown timeout, defaulting to 30s.
func (c ServerConfig) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// WindowDuration returns the default rate-limit window, at least 1s.
func (c RateLimitConfig) WindowDuration() time.Duration {
	if c.WindowSeconds < 1 {
		return time.Minute
	}
	return time.Duration(c.WindowSeconds) * time.Second
}

// SessionTTLDuration parses the session TTL, defaulting to 12h.
func (c AuthConfig) SessionTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 12 * time.Hour
	}
	return d
}
