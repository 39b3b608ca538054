package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.RateLimit.WindowSeconds != 60 || cfg.RateLimit.MaxRequests != 120 {
		t.Errorf("rate limit = %d/%ds", cfg.RateLimit.MaxRequests, cfg.RateLimit.WindowSeconds)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()

	if got := cfg.Server.ShutdownTimeoutDuration(); got != 30*time.Second {
		t.Errorf("shutdown timeout = %v, want 30s", got)
	}
	if got := cfg.Auth.SessionTTLDuration(); got != 12*time.Hour {
		t.Errorf("session ttl = %v, want 12h", got)
	}
	if got := cfg.RateLimit.WindowDuration(); got != time.Minute {
		t.Errorf("window = %v, want 1m", got)
	}

	// Unparseable or non-positive values fall back, never zero out.
	bad := ServerConfig{ShutdownTimeout: "soon"}
	if got := bad.ShutdownTimeoutDuration(); got != 30*time.Second {
		t.Errorf("fallback shutdown timeout = %v, want 30s", got)
	}
	zeroWindow := RateLimitConfig{WindowSeconds: 0}
	if got := zeroWindow.WindowDuration(); got != time.Minute {
		t.Errorf("fallback window = %v, want 1m", got)
	}
}

func TestWriteExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldline.yaml")
	if err := WriteExample(path); err != nil {
		t.Fatalf("WriteExample: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read example: %v", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		t.Fatalf("example config is not valid yaml: %v", err)
	}
	if cfg.Server.Port != Default().Server.Port {
		t.Errorf("example port = %d, want default %d", cfg.Server.Port, Default().Server.Port)
	}
}
