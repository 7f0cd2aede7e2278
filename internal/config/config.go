// Package config provides environment-variable configuration loading shared
// across the weather packages, in the style of EVE's EnvConfig helper: a thin
// prefixed accessor layer rather than a full configuration framework.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig reads configuration values from environment variables, optionally
// scoped under a prefix (e.g. prefix "WEATHER" turns key "DATA_DIR" into the
// environment variable "WEATHER_DATA_DIR").
type EnvConfig struct {
	prefix string
}

// NewEnvConfig creates an environment configuration loader.
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

// GetString retrieves a string value, falling back to defaultValue.
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		return v
	}
	return defaultValue
}

// GetInt retrieves an integer value, falling back to defaultValue on absence
// or parse failure.
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// GetBool retrieves a boolean value, falling back to defaultValue on absence
// or parse failure.
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// GetDuration retrieves a duration value, falling back to defaultValue on
// absence or parse failure.
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetStringSlice retrieves a comma-separated list, trimming whitespace around
// each element and dropping empty elements.
func (ec *EnvConfig) GetStringSlice(key string, defaultValue []string) []string {
	v := os.Getenv(ec.buildKey(key))
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix == "" {
		return key
	}
	return ec.prefix + "_" + key
}
