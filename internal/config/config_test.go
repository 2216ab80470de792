// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.SocketPath != "/tmp/local-tts-mcp/inference.sock" {
		t.Errorf("SocketPath = %v, want default", cfg.SocketPath)
	}
	if cfg.CoordDir != "/tmp/local-tts-mcp" {
		t.Errorf("CoordDir = %v, want default", cfg.CoordDir)
	}
	if cfg.QueuePollInterval != 250*time.Millisecond {
		t.Errorf("QueuePollInterval = %v, want 250ms", cfg.QueuePollInterval)
	}
	if cfg.StaleTicketAge != 5*time.Minute {
		t.Errorf("StaleTicketAge = %v, want 5m", cfg.StaleTicketAge)
	}
	if cfg.LockTimeout != 30*time.Second {
		t.Errorf("LockTimeout = %v, want 30s", cfg.LockTimeout)
	}
	if cfg.MemThresholdPercent != 85 {
		t.Errorf("MemThresholdPercent = %v, want 85", cfg.MemThresholdPercent)
	}
	if cfg.ResourceCheckInterval != 2*time.Second {
		t.Errorf("ResourceCheckInterval = %v, want 2s", cfg.ResourceCheckInterval)
	}
	if cfg.IdleUnloadAfter != 60*time.Second {
		t.Errorf("IdleUnloadAfter = %v, want 60s", cfg.IdleUnloadAfter)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
	if cfg.MetricsAddr != "127.0.0.1:9400" {
		t.Errorf("MetricsAddr = %v, want 127.0.0.1:9400", cfg.MetricsAddr)
	}
}

func TestLoadVoiceDirDefaultsToHome(t *testing.T) {
	t.Setenv("HOME", "/home/example")
	cfg := Load()
	if cfg.VoiceDir != "/home/example" {
		t.Errorf("VoiceDir = %v, want /home/example", cfg.VoiceDir)
	}
}

func TestLoadVoiceDirFromEnv(t *testing.T) {
	t.Setenv("LOCAL_TTS_VOICE_DIR", "/srv/voices")
	cfg := Load()
	if cfg.VoiceDir != "/srv/voices" {
		t.Errorf("VoiceDir = %v, want /srv/voices", cfg.VoiceDir)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOCAL_TTS_SOCKET_PATH", "/var/run/ttsd.sock")
	t.Setenv("LOCAL_TTS_MEM_THRESHOLD_PERCENT", "90")
	t.Setenv("LOCAL_TTS_LOG_LEVEL", "debug")

	cfg := Load()

	if cfg.SocketPath != "/var/run/ttsd.sock" {
		t.Errorf("SocketPath = %v, want /var/run/ttsd.sock", cfg.SocketPath)
	}
	if cfg.MemThresholdPercent != 90 {
		t.Errorf("MemThresholdPercent = %v, want 90", cfg.MemThresholdPercent)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
}
