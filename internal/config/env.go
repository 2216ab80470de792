// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/xg2g/internal/log"
)

// ParseString reads a string from an environment variable or returns defaultValue.
// It logs the source (environment or default) for observability.
func ParseString(key, defaultValue string) string {
	logger := log.WithComponent("config")
	if v, ok := os.LookupEnv(key); ok {
		if v == "" {
			logger.Debug().Str("key", key).Str("default", defaultValue).
				Str("source", "default").Msg("using default value (environment variable is empty)")
			return defaultValue
		}
		logger.Debug().Str("key", key).Str("value", v).
			Str("source", "environment").Msg("using environment variable")
		return v
	}
	logger.Debug().Str("key", key).Str("default", defaultValue).
		Str("source", "default").Msg("using default value")
	return defaultValue
}

// ParseInt reads an integer from an environment variable or returns defaultValue.
// It validates the input and falls back to default on parse errors.
func ParseInt(key string, defaultValue int) int {
	logger := log.WithComponent("config")
	if v, ok := os.LookupEnv(key); ok {
		if v == "" {
			logger.Debug().Str("key", key).Int("default", defaultValue).
				Str("source", "default").Msg("using default value (environment variable is empty)")
			return defaultValue
		}
		if i, err := strconv.Atoi(v); err == nil {
			logger.Debug().Str("key", key).Int("value", i).
				Str("source", "environment").Msg("using environment variable")
			return i
		}
		logger.Warn().Str("key", key).Str("value", v).Int("default", defaultValue).
			Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	logger.Debug().Str("key", key).Int("default", defaultValue).
		Str("source", "default").Msg("using default value")
	return defaultValue
}

// ParseDuration reads a time.Duration from an environment variable or returns defaultValue.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := log.WithComponent("config")
	if v, ok := os.LookupEnv(key); ok {
		if v == "" {
			logger.Debug().Str("key", key).Dur("default", defaultValue).
				Str("source", "default").Msg("using default value (environment variable is empty)")
			return defaultValue
		}
		if d, err := time.ParseDuration(v); err == nil {
			logger.Debug().Str("key", key).Dur("value", d).
				Str("source", "environment").Msg("using environment variable")
			return d
		}
		logger.Warn().Str("key", key).Str("value", v).Dur("default", defaultValue).
			Msg("invalid duration in environment variable, using default")
		return defaultValue
	}
	logger.Debug().Str("key", key).Dur("default", defaultValue).
		Str("source", "default").Msg("using default value")
	return defaultValue
}

// ParseFloat reads a float64 from an environment variable or returns defaultValue.
func ParseFloat(key string, defaultValue float64) float64 {
	logger := log.WithComponent("config")
	if v, ok := os.LookupEnv(key); ok {
		if v == "" {
			logger.Debug().Str("key", key).Float64("default", defaultValue).
				Str("source", "default").Msg("using default value (environment variable is empty)")
			return defaultValue
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			logger.Debug().Str("key", key).Float64("value", f).
				Str("source", "environment").Msg("using environment variable")
			return f
		}
		logger.Warn().Str("key", key).Str("value", v).Float64("default", defaultValue).
			Msg("invalid float in environment variable, using default")
		return defaultValue
	}
	logger.Debug().Str("key", key).Float64("default", defaultValue).
		Str("source", "default").Msg("using default value")
	return defaultValue
}

// ParseBool reads a boolean from an environment variable or returns defaultValue.
// It accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	logger := log.WithComponent("config")
	if v, ok := os.LookupEnv(key); ok {
		if v == "" {
			logger.Debug().Str("key", key).Bool("default", defaultValue).
				Str("source", "default").Msg("using default value (environment variable is empty)")
			return defaultValue
		}
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		default:
			logger.Warn().Str("key", key).Str("value", v).Bool("default", defaultValue).
				Msg("invalid boolean in environment variable, using default")
			return defaultValue
		}
	}
	logger.Debug().Str("key", key).Bool("default", defaultValue).
		Str("source", "default").Msg("using default value")
	return defaultValue
}
