package config

import (
	"testing"
	"time"
)

var configEnv = []string{
	"DECODE_STRICT", "REQUIRE_BOTH_MEMBERS", "ANCHOR_INTERVAL_MS", "RFC3339_TOLERANCE",
	"FIELD_POLICY", "OUTPUT_DIR", "DB_CONN_STR", "REDIS_ADDR", "NATS_URL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnv {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	config, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if config.Strict {
		t.Error("Expected Strict = false by default")
	}
	if config.RequireBoth {
		t.Error("Expected RequireBoth = false by default")
	}
	if config.AnchorInterval != time.Minute {
		t.Errorf("Expected AnchorInterval = 1m, got %s", config.AnchorInterval)
	}
	if config.Tolerance != time.Second {
		t.Errorf("Expected Tolerance = 1s, got %s", config.Tolerance)
	}
	if config.OutputDir != "./tracks" {
		t.Errorf("Expected default OutputDir = ./tracks, got %s", config.OutputDir)
	}
	if config.RedisAddr != "redis:6379" {
		t.Errorf("Expected default RedisAddr = redis:6379, got %s", config.RedisAddr)
	}
	if config.NATSURL != "nats://nats:4222" {
		t.Errorf("Expected default NATSURL = nats://nats:4222, got %s", config.NATSURL)
	}
}

func TestLoad_WithOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DECODE_STRICT", "true")
	t.Setenv("REQUIRE_BOTH_MEMBERS", "1")
	t.Setenv("ANCHOR_INTERVAL_MS", "30000")
	t.Setenv("RFC3339_TOLERANCE", "250ms")
	t.Setenv("FIELD_POLICY", "source-notes")
	t.Setenv("OUTPUT_DIR", "/test/output")

	config, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if !config.Strict || !config.RequireBoth {
		t.Errorf("Expected Strict and RequireBoth, got %+v", config)
	}
	if config.AnchorInterval != 30*time.Second {
		t.Errorf("Expected AnchorInterval = 30s, got %s", config.AnchorInterval)
	}
	if config.Tolerance != 250*time.Millisecond {
		t.Errorf("Expected Tolerance = 250ms, got %s", config.Tolerance)
	}
	if config.Policy != "source-notes" {
		t.Errorf("Expected Policy = source-notes, got %s", config.Policy)
	}
	if config.OutputDir != "/test/output" {
		t.Errorf("Expected OutputDir = /test/output, got %s", config.OutputDir)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"strict not a bool", "DECODE_STRICT", "sometimes"},
		{"require both not a bool", "REQUIRE_BOTH_MEMBERS", "yes please"},
		{"interval not a number", "ANCHOR_INTERVAL_MS", "a minute"},
		{"interval zero", "ANCHOR_INTERVAL_MS", "0"},
		{"tolerance not a duration", "RFC3339_TOLERANCE", "1 second"},
		{"tolerance negative", "RFC3339_TOLERANCE", "-1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			config, err := Load()
			if err == nil {
				t.Fatalf("Load() should have failed for %s=%q", tt.key, tt.value)
			}
			if config != nil {
				t.Error("Load() should have returned nil config")
			}
		})
	}
}
