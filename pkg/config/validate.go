package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a single configuration validation failure.
type ValidationError struct {
	// Field is the dotted path of the invalid field (e.g., "server.listen_address").
	Field string

	// Message describes what is invalid about the field.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates multiple validation failures so that all
// problems are reported in one pass rather than one at a time.
type ValidationErrors []*ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}

	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = "  - " + err.Error()
	}
	return fmt.Sprintf("configuration validation failed with %d errors:\n%s",
		len(e), strings.Join(msgs, "\n"))
}

// Validate checks the configuration for invalid or inconsistent values.
// It returns a ValidationErrors value listing every problem found, or nil
// if the configuration is valid.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	// Server validation
	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddress); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: must be host:port", cfg.Server.ListenAddress),
		})
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, &ValidationError{
			Field:   "server.read_timeout",
			Message: "must not be negative",
		})
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, &ValidationError{
			Field:   "server.write_timeout",
			Message: "must not be negative",
		})
	}

	// Backend validation
	if u, err := url.Parse(cfg.Backend.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, &ValidationError{
			Field:   "backend.endpoint",
			Message: fmt.Sprintf("invalid backend endpoint %q: must be an absolute URL", cfg.Backend.Endpoint),
		})
	}

	// Credential validation
	if cfg.Credentials.Dir == "" {
		errs = append(errs, &ValidationError{
			Field:   "credentials.dir",
			Message: "credential directory is required",
		})
	}
	if cfg.Credentials.RotationCount < 1 {
		errs = append(errs, &ValidationError{
			Field:   "credentials.rotation_count",
			Message: "rotation count must be at least 1",
		})
	}

	// Auth flow validation
	if cfg.Auth.PollInterval <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "auth.poll_interval",
			Message: "poll interval must be positive",
		})
	}
	if cfg.Auth.MaxPolls < 1 {
		errs = append(errs, &ValidationError{
			Field:   "auth.max_polls",
			Message: "max polls must be at least 1",
		})
	}

	// Telemetry validation
	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, &ValidationError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q: must be debug, info, warn, or error", cfg.Telemetry.Logging.Level),
		})
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, &ValidationError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q: must be json or text", cfg.Telemetry.Logging.Format),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
