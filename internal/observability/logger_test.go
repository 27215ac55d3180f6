package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/tickerql/tickerql/internal/config"
)

func TestNewLoggerAddsServiceAttributes(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{
		Profile:       config.ProfileTest,
		Service:       config.ServiceConfig{Name: "tickerql-api"},
		Observability: config.ObservabilityConfig{LogLevel: slog.LevelInfo, LogJSON: true},
	}

	NewLogger(cfg, &buf).Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if entry["service"] != "tickerql-api" || entry["profile"] != "test" {
		t.Fatalf("log entry = %#v", entry)
	}
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{
		Observability: config.ObservabilityConfig{LogLevel: slog.LevelWarn, LogJSON: false},
	}

	NewLogger(cfg, &buf).Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info log to be dropped, got %q", buf.String())
	}
}

func TestNewLoggerAddsTraceIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{
		Service:       config.ServiceConfig{Name: "tickerql-api"},
		Observability: config.ObservabilityConfig{LogLevel: slog.LevelInfo, LogJSON: true},
	}
	logger := NewLogger(cfg, &buf).With(slog.String("component", "resolver"))

	logger.InfoContext(ContextWithTraceID(context.Background(), "abc123"), "resolved")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if entry["trace_id"] != "abc123" || entry["component"] != "resolver" {
		t.Fatalf("log entry = %#v", entry)
	}
	if _, ok := entry["profile"]; ok {
		t.Fatalf("empty profile should be omitted: %#v", entry)
	}
}

func TestNewLoggerNilWriter(t *testing.T) {
	NewLogger(config.Config{}, nil).Error("discarded")
}
