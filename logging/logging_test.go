package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewHandler_ProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, "prod", slog.LevelInfo)).Info("cache hit", "source", "UC1")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if record["msg"] != "cache hit" || record["source"] != "UC1" {
		t.Errorf("unexpected record: %v", record)
	}
}

func TestNewHandler_DevWritesText(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "dev", slog.LevelWarn))
	logger.Info("hidden")
	logger.Warn("shown", "source", "UC1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record passed a warn handler: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "source=UC1") {
		t.Errorf("expected text record, got %q", out)
	}
}

func TestRedisLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rl := NewRedisLogger(zap.New(core))

	rl.Printf(context.Background(), "redis: discarding bad PubSub connection: %s", "EOF")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].LoggerName != "redis" {
		t.Errorf("expected logger name redis, got %q", entries[0].LoggerName)
	}
	if entries[0].Message != "redis: discarding bad PubSub connection: EOF" {
		t.Errorf("unexpected message %q", entries[0].Message)
	}
}
