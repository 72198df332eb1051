// Package config implements the predictor's configuration store.
//
// Configuration merges three layers: built-in defaults, an optional YAML file
// (CPGD_CONFIG or ./config.yaml), and CPGD_* environment overrides. The merged
// result is validated once at startup; there is no hot reload.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// Config is the complete predictor configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Predictor PredictorConfig `yaml:"predictor"`
	Formats   FormatsConfig   `yaml:"formats"`
	Auth      AuthConfig      `yaml:"auth"`
	Audit     AuditConfig     `yaml:"audit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeoutSec  int    `yaml:"readTimeoutSec"`
	WriteTimeoutSec int    `yaml:"writeTimeoutSec"`
	IdleTimeoutSec  int    `yaml:"idleTimeoutSec"`
}

// PredictorConfig identifies the predictor and its metadata document.
type PredictorConfig struct {
	Name     string `yaml:"name"`
	HelpFile string `yaml:"helpFile"`
}

// FormatsConfig declares the wire formats the predictor supports. JSON is
// always supported and is re-added during validation if a file drops it.
type FormatsConfig struct {
	Request  []string `yaml:"request"`
	Response []string `yaml:"response"`
}

// AuthConfig holds optional bearer-token settings. An empty secret disables
// authentication entirely.
type AuthConfig struct {
	Secret string `yaml:"secret"`
}

// AuditConfig holds audit log settings.
type AuditConfig struct {
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// Load merges defaults, the optional YAML file and environment overrides,
// then validates the result.
func Load() (*Config, error) {
	cfg := Default()

	path := os.Getenv("CPGD_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	} else if os.Getenv("CPGD_CONFIG") != "" {
		return nil, fmt.Errorf("config file %s not found", path)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeoutSec:  30,
			WriteTimeoutSec: 30,
			IdleTimeoutSec:  120,
		},
		Predictor: PredictorConfig{
			Name:     "CpG Predictor",
			HelpFile: "predictor_help_message.json",
		},
		Formats: FormatsConfig{
			Request:  []string{"application/json", "application/msgpack"},
			Response: []string{"application/json", "application/msgpack"},
		},
		Audit: AuditConfig{
			Dir:        "logs",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Validate checks the merged configuration for values the service cannot run
// with. Media type lists are normalized to lowercase and JSON is guaranteed to
// be present in both.
func Validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if cfg.Server.ReadTimeoutSec <= 0 || cfg.Server.WriteTimeoutSec <= 0 || cfg.Server.IdleTimeoutSec <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	if cfg.Predictor.Name == "" {
		return fmt.Errorf("predictor.name must not be empty")
	}
	if cfg.Audit.Dir != "" && (cfg.Audit.MaxSizeMB <= 0 || cfg.Audit.MaxBackups < 0 || cfg.Audit.MaxAgeDays < 0) {
		return fmt.Errorf("audit rotation settings must be positive")
	}

	cfg.Formats.Request = normalizeFormats(cfg.Formats.Request)
	cfg.Formats.Response = normalizeFormats(cfg.Formats.Response)
	return nil
}

// normalizeFormats lowercases the list and makes sure JSON is present.
func normalizeFormats(formats []string) []string {
	out := make([]string, 0, len(formats)+1)
	hasJSON := false
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if f == "application/json" {
			hasJSON = true
		}
		out = append(out, f)
	}
	if !hasJSON {
		out = append([]string{"application/json"}, out...)
	}
	return out
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies CPGD_* environment variables to the config.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("CPGD_ADDR"); val != "" {
		cfg.Server.Addr = val
	}
	if val := os.Getenv("CPGD_PREDICTOR_NAME"); val != "" {
		cfg.Predictor.Name = val
	}
	if val := os.Getenv("CPGD_HELP_FILE"); val != "" {
		cfg.Predictor.HelpFile = val
	}
	if val := os.Getenv("CPGD_AUTH_SECRET"); val != "" {
		cfg.Auth.Secret = val
	}
	if val := os.Getenv("CPGD_AUDIT_DIR"); val != "" {
		cfg.Audit.Dir = val
	}
	if val := os.Getenv("CPGD_READ_TIMEOUT_SEC"); val != "" {
		if sec, err := strconv.Atoi(val); err == nil {
			cfg.Server.ReadTimeoutSec = sec
		}
	}
	if val := os.Getenv("CPGD_WRITE_TIMEOUT_SEC"); val != "" {
		if sec, err := strconv.Atoi(val); err == nil {
			cfg.Server.WriteTimeoutSec = sec
		}
	}
	if val := os.Getenv("CPGD_IDLE_TIMEOUT_SEC"); val != "" {
		if sec, err := strconv.Atoi(val); err == nil {
			cfg.Server.IdleTimeoutSec = sec
		}
	}
}
