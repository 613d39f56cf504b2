package config

import "time"

// Config is the root configuration structure for CodeBuddy Relay.
// It contains all configuration sections for the HTTP server, the upstream
// backend, credential management, the authorization flow, usage tracking,
// and telemetry settings.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, the service password, and CORS settings.
	Server ServerConfig `yaml:"server"`

	// Backend contains configuration for the upstream CodeBuddy API.
	Backend BackendConfig `yaml:"backend"`

	// Credentials contains configuration for the credential store and
	// rotation policy.
	Credentials CredentialsConfig `yaml:"credentials"`

	// Auth contains configuration for the asynchronous login flow.
	Auth AuthConfig `yaml:"auth"`

	// Models is the statically advertised list of model identifiers
	// returned by the models listing endpoint. No backend call is made
	// to produce it.
	Models []string `yaml:"models"`

	// Usage contains configuration for the SQLite usage statistics store.
	Usage UsageConfig `yaml:"usage"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the client-facing HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8001", "0.0.0.0:8001").
	// Default: "127.0.0.1:8001"
	ListenAddress string `yaml:"listen_address"`

	// Password is the service-level password. Every endpoint except the
	// health and metrics endpoints requires a bearer credential matching
	// this value. An empty password causes all authenticated routes to be
	// refused rather than left open.
	Password string `yaml:"password"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. It must be generous enough to cover a full streamed
	// completion, which can take minutes on long generations.
	// Default: 300s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next
	// request when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins for CORS requests.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods for CORS requests.
	// Default: ["GET", "POST", "DELETE", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed HTTP headers for CORS requests.
	// Default: ["Authorization", "Content-Type", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the maximum age (in seconds) for preflight request cache.
	// Default: 3600
	MaxAge int `yaml:"max_age"`
}

// BackendConfig contains configuration for the upstream CodeBuddy API.
type BackendConfig struct {
	// Endpoint is the base URL of the backend.
	// Default: "https://copilot.tencent.com"
	Endpoint string `yaml:"endpoint"`

	// Timeout is the end-to-end timeout for a single backend call,
	// including the full duration of a stream read.
	// Default: 300s
	Timeout time.Duration `yaml:"timeout"`

	// ConnectTimeout bounds TCP/TLS connection establishment.
	// Default: 30s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// InsecureSkipVerify disables TLS certificate verification for the
	// backend connection. Intended for development only.
	// Default: false
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// MaxIdleConns is the connection pool size for backend calls.
	// Default: 100
	MaxIdleConns int `yaml:"max_idle_conns"`

	// MaxIdleConnsPerHost limits idle connections per backend host.
	// Default: 20
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`
}

// CredentialsConfig contains configuration for credential storage and rotation.
type CredentialsConfig struct {
	// Dir is the directory holding one JSON file per credential record.
	// Default: ".codebuddy_creds"
	Dir string `yaml:"dir"`

	// RotationCount is the number of successfully counted requests served
	// by a credential before rotation advances to the next pool slot.
	// Default: 1
	RotationCount int `yaml:"rotation_count"`

	// Watch enables an fsnotify watcher on Dir that rebuilds the in-memory
	// pool whenever credential files are added, changed, or removed.
	// Default: true
	Watch bool `yaml:"watch"`
}

// AuthConfig contains configuration for the asynchronous login flow.
type AuthConfig struct {
	// PollInterval is the fixed interval between backend status polls for
	// a pending authorization session.
	// Default: 5s
	PollInterval time.Duration `yaml:"poll_interval"`

	// MaxPolls is the number of polls before a session is marked expired.
	// Default: 360 (30 minutes at the default interval)
	MaxPolls int `yaml:"max_polls"`

	// SessionTTL is how long a terminal or unobserved session is retained
	// before garbage collection removes it.
	// Default: 30m
	SessionTTL time.Duration `yaml:"session_ttl"`

	// GCSchedule is the cron expression for the session garbage collector.
	// Default: "@every 1m"
	GCSchedule string `yaml:"gc_schedule"`
}

// UsageConfig contains configuration for the usage statistics store.
type UsageConfig struct {
	// Enabled controls whether per-model usage is recorded. A pointer
	// distinguishes an explicit "false" from an unset field.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// SQLitePath is the path to the usage database file.
	// Default: "data/usage.db"
	SQLitePath string `yaml:"sqlite_path"`
}

// IsEnabled reports whether usage recording is on. An unset field counts
// as enabled.
func (c UsageConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json" or "text").
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the /metrics endpoint is registered. A
	// pointer distinguishes an explicit "false" from an unset field.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Namespace is the Prometheus metric namespace.
	// Default: "relay"
	Namespace string `yaml:"namespace"`
}

// IsEnabled reports whether metric recording is on. An unset field counts
// as enabled.
func (c MetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}
