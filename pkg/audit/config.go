package audit

import (
	"os"
	"strconv"
)

// Config controls audit behavior.
type Config struct {
	RetentionDays int  // Default 180, matching a school year plus slack
	LogDenied     bool // Whether to log denied (401/403) attempts
	Enabled       bool // Whether the audit middleware is active
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 180,
		LogDenied:     true,
		Enabled:       true,
	}
}

// ConfigFromEnv loads config from environment variables.
// ASSETD_AUDIT_RETENTION_DAYS, ASSETD_AUDIT_LOG_DENIED, ASSETD_AUDIT_ENABLED
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("ASSETD_AUDIT_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.RetentionDays = days
		}
	}

	if v := os.Getenv("ASSETD_AUDIT_LOG_DENIED"); v != "" {
		cfg.LogDenied, _ = strconv.ParseBool(v)
	}

	if v := os.Getenv("ASSETD_AUDIT_ENABLED"); v != "" {
		cfg.Enabled, _ = strconv.ParseBool(v)
	}

	return cfg
}
