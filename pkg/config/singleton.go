package config

import (
	"fmt"
	"sync"
)

var (
	instance *Config
	mu       sync.RWMutex
)

// Initialize loads the configuration from the given path (with environment
// overrides) and installs it as the process-wide configuration. It must be
// called once at startup before GetConfig.
func Initialize(path string) (*Config, error) {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize configuration: %w", err)
	}

	mu.Lock()
	instance = cfg
	mu.Unlock()

	return cfg, nil
}

// GetConfig returns the process-wide configuration. It panics if Initialize
// has not been called, since running without configuration is a programming
// error rather than a runtime condition.
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()

	if instance == nil {
		panic("config.GetConfig called before config.Initialize")
	}
	return instance
}

// SetConfig replaces the process-wide configuration. Intended for tests.
func SetConfig(cfg *Config) {
	mu.Lock()
	instance = cfg
	mu.Unlock()
}
