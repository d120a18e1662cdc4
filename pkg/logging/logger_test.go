package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log JSON %q: %v", buf.String(), err)
	}
	return entry
}

func TestNewLogger(t *testing.T) {
	t.Setenv(LevelEnvVar, "DEBUG")
	logger := NewLogger()
	if logger == nil || logger.Logger == nil {
		t.Fatal("NewLogger() returned an unusable logger")
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected DEBUG to be enabled from the environment")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{"debug", "DEBUG", slog.LevelDebug},
		{"info", "INFO", slog.LevelInfo},
		{"warn", "WARN", slog.LevelWarn},
		{"warning", "WARNING", slog.LevelWarn},
		{"error", "ERROR", slog.LevelError},
		{"lowercase", "debug", slog.LevelDebug},
		{"padded", "  error ", slog.LevelError},
		{"unknown", "VERBOSE", slog.LevelInfo},
		{"empty", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewLoggerWithWriter_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, slog.LevelWarn)
	ctx := context.Background()

	logger.Info(ctx, "dropped")
	if buf.Len() != 0 {
		t.Fatalf("info record written at WARN level: %s", buf.String())
	}

	logger.Warn(ctx, "substep budget exhausted", "dropped_time", 0.1)
	entry := decodeRecord(t, &buf)
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}
	if entry["dropped_time"] != 0.1 {
		t.Errorf("dropped_time = %v, want 0.1", entry["dropped_time"])
	}
}

func TestNewDiscardLogger(t *testing.T) {
	logger := NewDiscardLogger()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not enable any level")
	}
	// must not panic
	logger.Error(context.Background(), "ignored", errors.New("boom"))
}

func TestCorrelationID(t *testing.T) {
	t.Run("generated_ids_are_unique", func(t *testing.T) {
		id1 := GenerateCorrelationID()
		id2 := GenerateCorrelationID()
		if id1 == id2 {
			t.Error("GenerateCorrelationID() returned duplicate IDs")
		}
		if len(id1) != 16 {
			t.Errorf("correlation ID length = %d, want 16", len(id1))
		}
	})

	t.Run("round_trip_through_context", func(t *testing.T) {
		ctx := WithCorrelationID(context.Background(), "sim-42")
		if got := GetCorrelationID(ctx); got != "sim-42" {
			t.Errorf("GetCorrelationID() = %q, want %q", got, "sim-42")
		}
	})

	t.Run("missing_from_context", func(t *testing.T) {
		if got := GetCorrelationID(context.Background()); got != "" {
			t.Errorf("GetCorrelationID() = %q, want empty", got)
		}
	})

	t.Run("empty_id_is_generated", func(t *testing.T) {
		ctx := WithCorrelationID(context.Background(), "")
		if got := GetCorrelationID(ctx); len(got) != 16 {
			t.Errorf("auto-generated ID %q has wrong length", got)
		}
	})
}

func TestSanitizeAttributes(t *testing.T) {
	tests := []struct {
		name     string
		attr     slog.Attr
		expected string
	}{
		{"password", slog.String("password", "hunter2"), "[REDACTED]"},
		{"token", slog.String("auth_token", "bearer"), "[REDACTED]"},
		{"secret", slog.String("api_secret", "s"), "[REDACTED]"},
		{"uppercase", slog.String("PASSWORD", "x"), "[REDACTED]"},
		{"body_name", slog.String("body", "ground"), "ground"},
		{"stream_addr", slog.String("addr", ":8080"), ":8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sanitizeAttributes(nil, tt.attr)
			if result.Value.String() != tt.expected {
				t.Errorf("sanitizeAttributes() = %q, want %q", result.Value.String(), tt.expected)
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, slog.LevelDebug)
	ctx := WithCorrelationID(context.Background(), "test-id-123")

	tests := []struct {
		name  string
		log   func()
		level string
	}{
		{"debug", func() { logger.Debug(ctx, "msg") }, "DEBUG"},
		{"info", func() { logger.Info(ctx, "msg") }, "INFO"},
		{"warn", func() { logger.Warn(ctx, "msg") }, "WARN"},
		{"error", func() { logger.Error(ctx, "msg", errors.New("solver diverged")) }, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.log()
			entry := decodeRecord(t, &buf)
			if entry["level"] != tt.level {
				t.Errorf("level = %v, want %s", entry["level"], tt.level)
			}
			if entry["correlation_id"] != "test-id-123" {
				t.Errorf("correlation_id = %v", entry["correlation_id"])
			}
		})
	}

	buf.Reset()
	logger.Error(ctx, "step failed", errors.New("solver diverged"))
	if entry := decodeRecord(t, &buf); entry["error"] != "solver diverged" {
		t.Errorf("error = %v, want %q", entry["error"], "solver diverged")
	}
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, slog.LevelInfo).With("component", "physics")
	logger.Info(context.Background(), "world created")

	entry := decodeRecord(t, &buf)
	if entry["component"] != "physics" {
		t.Errorf("component = %v, want physics", entry["component"])
	}
	if strings.Contains(buf.String(), "correlation_id") {
		t.Error("record should not carry a correlation_id when none is in context")
	}
}

func TestWrapError(t *testing.T) {
	t.Run("nil_error", func(t *testing.T) {
		if WrapError(nil, "context") != nil {
			t.Error("WrapError(nil) should return nil")
		}
	})

	t.Run("formatted_context", func(t *testing.T) {
		original := errors.New("unknown shape")
		wrapped := WrapError(original, "body %q", "ball")
		if wrapped.Error() != `body "ball": unknown shape` {
			t.Errorf("WrapError() = %q", wrapped.Error())
		}
		if !errors.Is(wrapped, original) {
			t.Error("WrapError() should preserve the original error")
		}
	})
}
