package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Default() config failed validation: %v", err)
	}

	if cfg.Server.Addr != ":8000" {
		t.Errorf("Expected default addr :8000, got %s", cfg.Server.Addr)
	}
	if cfg.Predictor.Name != "CpG Predictor" {
		t.Errorf("Expected default predictor name, got %s", cfg.Predictor.Name)
	}
	if len(cfg.Formats.Request) != 2 || len(cfg.Formats.Response) != 2 {
		t.Errorf("Expected both wire formats by default, got %v / %v", cfg.Formats.Request, cfg.Formats.Response)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("CPGD_ADDR", ":9999")
	t.Setenv("CPGD_PREDICTOR_NAME", "Test Predictor")
	t.Setenv("CPGD_AUTH_SECRET", "s3cret")
	t.Setenv("CPGD_READ_TIMEOUT_SEC", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Addr != ":9999" {
		t.Errorf("Expected addr :9999, got %s", cfg.Server.Addr)
	}
	if cfg.Predictor.Name != "Test Predictor" {
		t.Errorf("Expected overridden predictor name, got %s", cfg.Predictor.Name)
	}
	if cfg.Auth.Secret != "s3cret" {
		t.Errorf("Expected auth secret override, got %q", cfg.Auth.Secret)
	}
	if cfg.Server.ReadTimeoutSec != 5 {
		t.Errorf("Expected read timeout 5, got %d", cfg.Server.ReadTimeoutSec)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  addr: ":7070"
predictor:
  name: "File Predictor"
formats:
  response:
    - "Application/MsgPack"
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("CPGD_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Addr != ":7070" {
		t.Errorf("Expected addr :7070, got %s", cfg.Server.Addr)
	}
	if cfg.Predictor.Name != "File Predictor" {
		t.Errorf("Expected file predictor name, got %s", cfg.Predictor.Name)
	}
	// JSON must be re-added and the list lowercased.
	if len(cfg.Formats.Response) != 2 || cfg.Formats.Response[0] != "application/json" || cfg.Formats.Response[1] != "application/msgpack" {
		t.Errorf("Expected normalized response formats with JSON guaranteed, got %v", cfg.Formats.Response)
	}
}

func TestLoadMissingExplicitConfigFile(t *testing.T) {
	t.Setenv("CPGD_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for missing explicit config file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"zero read timeout", func(c *Config) { c.Server.ReadTimeoutSec = 0 }},
		{"empty predictor name", func(c *Config) { c.Predictor.Name = "" }},
		{"zero audit size", func(c *Config) { c.Audit.MaxSizeMB = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Errorf("Expected validation error for %s", tt.name)
			}
		})
	}
}
