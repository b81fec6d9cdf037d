package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%q: expected %v, got %v (%v)", tt.in, tt.want, got, err)
		}
	}
}

func TestNewStderr(t *testing.T) {
	logger, c, err := New(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger == nil || c == nil {
		t.Fatal("expected logger and closer")
	}
	if err := c.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}

func TestNewRejectsBadFormat(t *testing.T) {
	if _, _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, _, err := New(Config{Level: "verbose"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewRotatedFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxtrend.log")
	logger, c, err := New(Config{File: path, Format: "json", Level: "debug"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Debug("sampling", "bed", "B1001")
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	line := strings.TrimSpace(string(data))
	var rec map[string]interface{}
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", line, err)
	}
	if rec["msg"] != "sampling" || rec["bed"] != "B1001" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestValOr(t *testing.T) {
	if valOr(0, 7) != 7 {
		t.Error("expected default for 0")
	}
	if valOr(-1, 7) != 7 {
		t.Error("expected default for negative")
	}
	if valOr(3, 7) != 3 {
		t.Error("expected explicit value")
	}
}
