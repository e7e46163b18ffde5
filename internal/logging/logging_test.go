package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: "info", Writer: buf}, "indexreturns")

	logger.Debug().Msg("hidden")
	logger.Info().Str("component", "test").Msg("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one entry above debug, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("entry is not JSON: %v", err)
	}
	if entry["app"] != "indexreturns" || entry["component"] != "test" || entry["message"] != "visible" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Fatal("entry should carry a timestamp")
	}
}

func TestNewLoggerConsole(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Format: "console", Writer: buf}, "")
	logger.Warn().Msg("plain text")

	out := buf.String()
	if strings.HasPrefix(out, "{") || !strings.Contains(out, "plain text") {
		t.Fatalf("expected console output, got %q", out)
	}
}
