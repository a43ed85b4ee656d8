package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "unknown", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
	}

	for _, tc := range cases {
		got := parseLogLevel(tc.in)
		if got != tc.want {
			t.Fatalf("parseLogLevel(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestNewHandler_Formats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slog.New(newHandler(&buf, "info", "json")).Info("auth.login.ok", "user", "ann")
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("json handler output %q: %v", buf.String(), err)
	}
	if rec["msg"] != "auth.login.ok" || rec["user"] != "ann" {
		t.Fatalf("record = %v", rec)
	}

	buf.Reset()
	slog.New(newHandler(&buf, "warn", "json")).Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info must be filtered at warn level")
	}

	buf.Reset()
	slog.New(newHandler(&buf, "info", "pretty")).Info("auth.login.ok", "user", "ann")
	if !strings.Contains(buf.String(), "msg=") {
		t.Fatalf("pretty output = %q", buf.String())
	}
}
