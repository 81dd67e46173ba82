package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "JSON format to stdout",
			config: Config{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
			wantErr: false,
		},
		{
			name: "Console format to stderr",
			config: Config{
				Level:  "debug",
				Format: "console",
				Output: "stderr",
			},
			wantErr: false,
		},
		{
			name: "Invalid log level defaults to info",
			config: Config{
				Level:  "invalid",
				Format: "json",
				Output: "stdout",
			},
			wantErr: false,
		},
		{
			name: "Unwritable file path",
			config: Config{
				Level:  "info",
				Format: "json",
				Output: filepath.Join("/nonexistent-dir", "render.log"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("Expected non-nil logger")
			}
		})
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid json log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Level: "warn", Format: "json"})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0]["message"] != "warn message" {
		t.Errorf("Expected warn message first, got %v", entries[0]["message"])
	}
}

func TestLogRenderEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Level: "info", Format: "json"})

	logger.WithWorkerID("worker-1").LogRenderEvent("render-123", "started", "processing", map[string]interface{}{
		"title": "idk fr",
	})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry["render_id"] != "render-123" {
		t.Errorf("Expected render_id render-123, got %v", entry["render_id"])
	}
	if entry["worker_id"] != "worker-1" {
		t.Errorf("Expected worker_id worker-1, got %v", entry["worker_id"])
	}
	if entry["title"] != "idk fr" {
		t.Errorf("Expected title field, got %v", entry["title"])
	}
	if entry["message"] != "render_event" {
		t.Errorf("Expected render_event message, got %v", entry["message"])
	}
}

func TestLogStage(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Level: "info", Format: "json"})

	logger.LogStage("narrate", 1500*time.Millisecond, nil)
	logger.LogStage("overlay", time.Second, errors.New("ffmpeg exited 1"))

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0]["level"] != "info" || entries[0]["stage"] != "narrate" {
		t.Errorf("Unexpected first entry: %v", entries[0])
	}
	if entries[1]["level"] != "error" || entries[1]["error"] != "ffmpeg exited 1" {
		t.Errorf("Unexpected second entry: %v", entries[1])
	}
}

func TestLoggerWithFields(t *testing.T) {
	logger := Nop()

	if logger.WithField("key", "value") == nil {
		t.Error("Expected non-nil logger from WithField")
	}
	if logger.WithFields(map[string]interface{}{"key1": "value1", "key2": 123}) == nil {
		t.Error("Expected non-nil logger from WithFields")
	}
	if logger.WithRenderID("render-456") == nil {
		t.Error("Expected non-nil logger from WithRenderID")
	}
	if logger.WithError(errors.New("boom")) == nil {
		t.Error("Expected non-nil logger from WithError")
	}
}

func TestLogStorageOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Level: "info", Format: "json"})

	logger.LogStorageOperation("upload", "shortform", "renders/r1/final.mp4", 1048576, 2*time.Second, nil)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 || entries[0]["key"] != "renders/r1/final.mp4" {
		t.Errorf("Unexpected entries: %v", entries)
	}
}

func TestNewDefaultLogger(t *testing.T) {
	logger, err := NewDefaultLogger()
	if err != nil {
		t.Errorf("NewDefaultLogger() error = %v", err)
	}
	if logger == nil {
		t.Error("Expected non-nil logger from NewDefaultLogger")
	}
}

func TestNewConsoleLogger(t *testing.T) {
	logger, err := NewConsoleLogger()
	if err != nil {
		t.Errorf("NewConsoleLogger() error = %v", err)
	}
	if logger == nil {
		t.Error("Expected non-nil logger from NewConsoleLogger")
	}
}

func BenchmarkLogInfo(b *testing.B) {
	logger := New(&bytes.Buffer{}, Config{Level: "info", Format: "json"})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("benchmark message")
	}
}
