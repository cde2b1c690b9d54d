package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration invalid: %v", err)
	}
}

func TestLoadNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load without file: %v", err)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("default logging level = %q, want INFO", cfg.Logging.Level)
	}
	if !cfg.Monitor.Enabled {
		t.Error("monitor should default enabled")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ospfd.yaml")
	body := `
logging:
  level: DEBUG
engine:
  router_id: 1.1.1.1
  as_external_limit: 2
monitor:
  listen: 127.0.0.1:9999
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("logging level = %q, want DEBUG", cfg.Logging.Level)
	}
	if cfg.Engine.RouterID != "1.1.1.1" {
		t.Errorf("router id = %q", cfg.Engine.RouterID)
	}
	if cfg.Engine.ASExternalLimit != 2 {
		t.Errorf("as_external_limit = %d, want 2", cfg.Engine.ASExternalLimit)
	}
	if cfg.Monitor.Listen != "127.0.0.1:9999" {
		t.Errorf("monitor listen = %q", cfg.Monitor.Listen)
	}
	// Untouched sections keep defaults.
	if cfg.Metrics.Listen != "127.0.0.1:9323" {
		t.Errorf("metrics listen default lost: %q", cfg.Metrics.Listen)
	}
}

func TestValidateRejectsBadLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation failure for bad logging level")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("OSPFD_LOGGING_LEVEL", "ERROR")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("env override not applied: level = %q", cfg.Logging.Level)
	}
}
