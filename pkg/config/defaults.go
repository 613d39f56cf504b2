package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8001"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 300 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// CORS defaults
	DefaultCORSEnabled = true
	DefaultCORSMaxAge  = 3600 // 1 hour

	// Backend defaults
	DefaultBackendEndpoint       = "https://copilot.tencent.com"
	DefaultBackendTimeout        = 300 * time.Second
	DefaultBackendConnectTimeout = 30 * time.Second
	DefaultBackendMaxIdleConns   = 100
	DefaultBackendMaxIdlePerHost = 20

	// Credential defaults
	DefaultCredentialsDir = ".codebuddy_creds"
	DefaultRotationCount  = 1

	// Auth flow defaults
	DefaultAuthPollInterval = 5 * time.Second
	DefaultAuthMaxPolls     = 360
	DefaultAuthSessionTTL   = 30 * time.Minute
	DefaultAuthGCSchedule   = "@every 1m"

	// Usage defaults
	DefaultUsageSQLitePath = "data/usage.db"

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsNamespace = "relay"
)

// DefaultModels is the default list of advertised model identifiers.
// The backend accepts these names; the relay performs no model validation
// beyond requiring a non-empty identifier.
var DefaultModels = []string{
	"claude-4.0",
	"claude-3.7",
	"gpt-5",
	"gpt-5-mini",
	"gpt-5-nano",
	"o4-mini",
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"auto-chat",
}

// ApplyDefaults fills in default values for any unset configuration fields.
// It is called automatically by LoadConfig before validation.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// CORS defaults
	if cfg.Server.CORS.AllowedOrigins == nil {
		cfg.Server.CORS.Enabled = DefaultCORSEnabled
		cfg.Server.CORS.AllowedOrigins = []string{"*"}
	}
	if cfg.Server.CORS.AllowedMethods == nil {
		cfg.Server.CORS.AllowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if cfg.Server.CORS.AllowedHeaders == nil {
		cfg.Server.CORS.AllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = DefaultCORSMaxAge
	}

	// Backend defaults
	if cfg.Backend.Endpoint == "" {
		cfg.Backend.Endpoint = DefaultBackendEndpoint
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = DefaultBackendTimeout
	}
	if cfg.Backend.ConnectTimeout == 0 {
		cfg.Backend.ConnectTimeout = DefaultBackendConnectTimeout
	}
	if cfg.Backend.MaxIdleConns == 0 {
		cfg.Backend.MaxIdleConns = DefaultBackendMaxIdleConns
	}
	if cfg.Backend.MaxIdleConnsPerHost == 0 {
		cfg.Backend.MaxIdleConnsPerHost = DefaultBackendMaxIdlePerHost
	}

	// Credential defaults
	if cfg.Credentials.Dir == "" {
		cfg.Credentials.Dir = DefaultCredentialsDir
		cfg.Credentials.Watch = true
	}
	if cfg.Credentials.RotationCount == 0 {
		cfg.Credentials.RotationCount = DefaultRotationCount
	}

	// Auth flow defaults
	if cfg.Auth.PollInterval == 0 {
		cfg.Auth.PollInterval = DefaultAuthPollInterval
	}
	if cfg.Auth.MaxPolls == 0 {
		cfg.Auth.MaxPolls = DefaultAuthMaxPolls
	}
	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = DefaultAuthSessionTTL
	}
	if cfg.Auth.GCSchedule == "" {
		cfg.Auth.GCSchedule = DefaultAuthGCSchedule
	}

	// Models default
	if len(cfg.Models) == 0 {
		cfg.Models = append([]string(nil), DefaultModels...)
	}

	// Usage defaults. Enabled is defaulted independently of the path so
	// that configuring a custom path does not switch recording off.
	if cfg.Usage.Enabled == nil {
		enabled := true
		cfg.Usage.Enabled = &enabled
	}
	if cfg.Usage.SQLitePath == "" {
		cfg.Usage.SQLitePath = DefaultUsageSQLitePath
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Enabled == nil {
		enabled := true
		cfg.Telemetry.Metrics.Enabled = &enabled
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
}
