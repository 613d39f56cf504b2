// Package config provides configuration loading, validation, and access for
// the relay. Configuration is read from a YAML file, filled in with defaults,
// and overridden by RELAY_* environment variables.
package config
