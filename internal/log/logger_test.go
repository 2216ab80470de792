// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestConfigureSetsServiceAndLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "warn", Output: &buf, Service: "ttsd-test", Version: "0.0.1"})

	L().Info().Msg("should be dropped")
	L().Warn().Msg("should appear")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["service"] != "ttsd-test" {
		t.Errorf("service = %v, want ttsd-test", entry["service"])
	}
	if entry["level"] != "warn" {
		t.Errorf("level = %v, want warn", entry["level"])
	}

	Configure(Config{})
}

func TestSetLevelRejectsInvalid(t *testing.T) {
	Configure(Config{})
	if err := SetLevel("not-a-level"); err == nil {
		t.Fatal("expected error for invalid level")
	}
	if err := SetLevel("debug"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Configure(Config{})
}

func TestWithComponentAddsField(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})

	WithComponent("resource-monitor").Info().Msg("sampling")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry[FieldComponent] != "resource-monitor" {
		t.Errorf("component = %v, want resource-monitor", entry[FieldComponent])
	}

	Configure(Config{})
}

func TestDerive(t *testing.T) {
	logger1 := Derive(nil)
	if logger1.GetLevel() > zerolog.PanicLevel {
		t.Error("expected valid logger from Derive with nil builder")
	}

	logger2 := Derive(func(ctx *zerolog.Context) {
		ctx.Str("ticket", "7")
	})
	if logger2.GetLevel() > zerolog.PanicLevel {
		t.Error("expected valid logger from Derive with custom builder")
	}
}

func TestBase(t *testing.T) {
	baseLogger := Base()
	if baseLogger.GetLevel() > zerolog.PanicLevel {
		t.Error("expected valid base logger with reasonable log level")
	}
}
