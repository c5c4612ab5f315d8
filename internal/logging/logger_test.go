package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_LevelHierarchy(t *testing.T) {
	levels := []struct {
		level    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
	}

	for _, tc := range levels {
		t.Run(tc.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Config{Level: tc.level, Output: &buf})

			if logger.GetLevel() != tc.expected {
				t.Errorf("Expected level %v, got %v", tc.expected, logger.GetLevel())
			}
		})
	}
}

func TestNew_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "invalid", Output: &buf})

	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")

	output := buf.String()
	if strings.Contains(output, "debug message") {
		t.Error("Expected debug message to NOT be logged with invalid level")
	}
	if !strings.Contains(output, "info message") {
		t.Error("Expected info message to be logged with invalid level")
	}
}

func TestNewWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithComponent(Config{Level: "info", Output: &buf}, "mutation-engine")

	logger.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, "mutation-engine") {
		t.Error("Expected log to contain component name 'mutation-engine'")
	}
	if !strings.Contains(output, "test message") {
		t.Error("Expected log to contain message 'test message'")
	}
}

func TestNew_NilOutputDoesNotPanic(t *testing.T) {
	logger := New(Config{Level: "info"})
	logger.Info().Msg("test message")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("Expected default level 'info', got '%s'", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Expected default output to be structured, not pretty")
	}
}
