package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("expected missing file to be tolerated, got %v", err)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("expected default listen address %q, got %q", DefaultListenAddress, cfg.Server.ListenAddress)
	}
	if cfg.Backend.Endpoint != DefaultBackendEndpoint {
		t.Errorf("expected default backend endpoint %q, got %q", DefaultBackendEndpoint, cfg.Backend.Endpoint)
	}
	if cfg.Credentials.RotationCount != DefaultRotationCount {
		t.Errorf("expected default rotation count %d, got %d", DefaultRotationCount, cfg.Credentials.RotationCount)
	}
	if len(cfg.Models) != len(DefaultModels) {
		t.Errorf("expected %d default models, got %d", len(DefaultModels), len(cfg.Models))
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  listen_address: "0.0.0.0:9000"
  password: "secret"
backend:
  endpoint: "https://backend.example.com"
credentials:
  dir: "/var/lib/relay/creds"
  rotation_count: 3
models:
  - claude-4.0
  - gpt-5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("expected listen address 0.0.0.0:9000, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.Password != "secret" {
		t.Errorf("expected password to be loaded, got %q", cfg.Server.Password)
	}
	if cfg.Backend.Endpoint != "https://backend.example.com" {
		t.Errorf("unexpected backend endpoint %q", cfg.Backend.Endpoint)
	}
	if cfg.Credentials.RotationCount != 3 {
		t.Errorf("expected rotation count 3, got %d", cfg.Credentials.RotationCount)
	}
	if len(cfg.Models) != 2 {
		t.Errorf("expected 2 models, got %d", len(cfg.Models))
	}

	// Defaults still fill unset fields.
	if cfg.Server.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("expected default write timeout, got %v", cfg.Server.WriteTimeout)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error for invalid YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RELAY_SERVER_LISTEN_ADDRESS", "0.0.0.0:8080")
	t.Setenv("RELAY_BACKEND_ENDPOINT", "https://override.example.com")
	t.Setenv("RELAY_CREDENTIALS_ROTATION_COUNT", "5")
	t.Setenv("RELAY_AUTH_POLL_INTERVAL", "2s")
	t.Setenv("RELAY_MODELS", "claude-4.0, gpt-5 ,")
	t.Setenv("RELAY_LOG_LEVEL", "debug")

	cfg, err := LoadConfigWithEnvOverrides(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:8080" {
		t.Errorf("env override not applied to listen address: %q", cfg.Server.ListenAddress)
	}
	if cfg.Backend.Endpoint != "https://override.example.com" {
		t.Errorf("env override not applied to backend endpoint: %q", cfg.Backend.Endpoint)
	}
	if cfg.Credentials.RotationCount != 5 {
		t.Errorf("env override not applied to rotation count: %d", cfg.Credentials.RotationCount)
	}
	if cfg.Auth.PollInterval != 2*time.Second {
		t.Errorf("env override not applied to poll interval: %v", cfg.Auth.PollInterval)
	}
	if len(cfg.Models) != 2 || cfg.Models[1] != "gpt-5" {
		t.Errorf("env override not applied to models: %v", cfg.Models)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("env override not applied to log level: %q", cfg.Telemetry.Logging.Level)
	}
}

func TestApplyDefaultsKeepsEnabledWithExplicitSiblings(t *testing.T) {
	cfg := &Config{}
	cfg.Usage.SQLitePath = "custom/usage.db"
	cfg.Telemetry.Metrics.Namespace = "custom"
	ApplyDefaults(cfg)

	if !cfg.Usage.IsEnabled() {
		t.Error("setting a custom sqlite path must not disable usage recording")
	}
	if cfg.Usage.SQLitePath != "custom/usage.db" {
		t.Errorf("custom sqlite path overwritten: %q", cfg.Usage.SQLitePath)
	}
	if !cfg.Telemetry.Metrics.IsEnabled() {
		t.Error("setting a custom namespace must not disable metrics")
	}
}

func TestApplyDefaultsRespectsExplicitDisable(t *testing.T) {
	disabled := false
	cfg := &Config{}
	cfg.Usage.Enabled = &disabled
	cfg.Telemetry.Metrics.Enabled = &disabled
	ApplyDefaults(cfg)

	if cfg.Usage.IsEnabled() {
		t.Error("explicit usage disable overridden by defaults")
	}
	if cfg.Telemetry.Metrics.IsEnabled() {
		t.Error("explicit metrics disable overridden by defaults")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Server.ListenAddress = "no-port"
	cfg.Backend.Endpoint = "not a url"
	cfg.Credentials.RotationCount = 0
	cfg.Telemetry.Logging.Level = "loud"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation to fail")
	}

	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 4 {
		t.Errorf("expected 4 validation errors, got %d: %v", len(verrs), verrs)
	}
	if !strings.Contains(verrs.Error(), "rotation count") {
		t.Errorf("expected rotation count error in %q", verrs.Error())
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		t.Fatalf("default configuration should validate, got %v", err)
	}
}
