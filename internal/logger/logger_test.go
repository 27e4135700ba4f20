package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithOptionsJSONIncludesService(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOptions(Options{Level: slog.LevelInfo, Format: FormatJSON, Service: "api", Output: &buf})

	l.Info("hello", "tenant_id", "t1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "api" {
		t.Errorf("expected service=api, got %v", entry["service"])
	}
	if entry["tenant_id"] != "t1" {
		t.Errorf("expected tenant_id=t1, got %v", entry["tenant_id"])
	}
}

func TestNewWithOptionsTextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOptions(Options{Level: slog.LevelWarn, Format: FormatText, Output: &buf})

	l.Info("dropped")
	l.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn line missing: %q", out)
	}
}
