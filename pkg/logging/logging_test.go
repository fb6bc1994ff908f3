package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerLevels(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	cases := []struct {
		name  string
		level string
		check slog.Level
		want  bool
	}{
		{name: "debug enables debug", level: "debug", check: slog.LevelDebug, want: true},
		{name: "info disables debug", level: "info", check: slog.LevelDebug, want: false},
		{name: "warn enables warn", level: "warn", check: slog.LevelWarn, want: true},
		{name: "warning alias", level: "WARNING", check: slog.LevelInfo, want: false},
		{name: "error disables warn", level: "error", check: slog.LevelWarn, want: false},
		{name: "unknown defaults to info", level: "trace", check: slog.LevelInfo, want: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			logger := New(tc.level, "json")
			if logger == nil {
				t.Fatalf("expected logger instance")
			}
			got := logger.Enabled(ctx, tc.check)
			if got != tc.want {
				t.Fatalf("Enabled(%v) = %t, want %t", tc.check, got, tc.want)
			}
		})
	}
}

func TestNewWithWriterFormats(t *testing.T) {
	t.Parallel()

	var jsonBuf bytes.Buffer
	NewWithWriter(&jsonBuf, "info", "").Info("hello", slog.String("tool", "confluence.get_page"))

	var record map[string]any
	if err := json.Unmarshal(jsonBuf.Bytes(), &record); err != nil {
		t.Fatalf("expected JSON output by default: %v (%s)", err, jsonBuf.String())
	}
	if record["msg"] != "hello" || record["tool"] != "confluence.get_page" {
		t.Fatalf("unexpected record %v", record)
	}

	var textBuf bytes.Buffer
	NewWithWriter(&textBuf, "info", "text").Info("hello")
	if !strings.Contains(textBuf.String(), "msg=hello") {
		t.Fatalf("expected text output, got %q", textBuf.String())
	}
}
