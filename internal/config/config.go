// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the coordination daemon's runtime configuration from
// environment variables, with defaults matching the documented external
// interface.
package config

import "time"

// Config holds every tunable the daemon reads at startup. Fields are
// populated once by Load and treated as immutable afterwards; a changed
// environment requires a daemon restart.
type Config struct {
	SocketPath string
	CoordDir   string

	QueuePollInterval     time.Duration
	StaleTicketAge        time.Duration
	LockTimeout           time.Duration
	MemThresholdPercent   float64
	ResourceCheckInterval time.Duration
	IdleUnloadAfter       time.Duration

	LogLevel string

	// MetricsAddr is the listen address for the Prometheus exposition
	// endpoint. Empty disables it.
	MetricsAddr string

	// DefaultVoicePath is the voice-clone reference clip used when a
	// request names neither a path nor a catalog entry.
	DefaultVoicePath string

	// VoiceDir confines where a request-supplied voice_path may resolve
	// to, rejecting any path that escapes it.
	VoiceDir string

	// HFHubCache, HFHome, and LhotseToolsDir redirect the external model
	// loader's download/cache directories to a project-local path. The
	// core only sets these in its own environment before invoking the
	// loader; it never interprets their contents.
	HFHubCache     string
	HFHome         string
	LhotseToolsDir string
}

// Load reads Config from the process environment, falling back to the
// documented defaults for any variable that is unset or empty.
func Load() Config {
	return Config{
		SocketPath:            ParseString("LOCAL_TTS_SOCKET_PATH", "/tmp/local-tts-mcp/inference.sock"),
		CoordDir:              ParseString("LOCAL_TTS_COORD_DIR", "/tmp/local-tts-mcp"),
		QueuePollInterval:     ParseDuration("LOCAL_TTS_QUEUE_POLL_INTERVAL", 250*time.Millisecond),
		StaleTicketAge:        ParseDuration("LOCAL_TTS_STALE_TICKET_AGE", 5*time.Minute),
		LockTimeout:           ParseDuration("LOCAL_TTS_LOCK_TIMEOUT", 30*time.Second),
		MemThresholdPercent:   ParseFloat("LOCAL_TTS_MEM_THRESHOLD_PERCENT", 85),
		ResourceCheckInterval: ParseDuration("LOCAL_TTS_RESOURCE_CHECK_INTERVAL", 2*time.Second),
		IdleUnloadAfter:       ParseDuration("LOCAL_TTS_IDLE_UNLOAD_AFTER", 60*time.Second),
		LogLevel:              ParseString("LOCAL_TTS_LOG_LEVEL", "info"),
		MetricsAddr:           ParseString("LOCAL_TTS_METRICS_ADDR", "127.0.0.1:9400"),
		DefaultVoicePath:      ParseString("LOCAL_TTS_VOICE_PATH", ""),
		VoiceDir:              ParseString("LOCAL_TTS_VOICE_DIR", ParseString("HOME", "")),
		HFHubCache:            ParseString("HF_HUB_CACHE", ""),
		HFHome:                ParseString("HF_HOME", ""),
		LhotseToolsDir:        ParseString("LHOTSE_TOOLS_DIR", ""),
	}
}
