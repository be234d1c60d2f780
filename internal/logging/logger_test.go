package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"parkarena/broker/internal/config"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, InfoLevel).With(String("component", "session"))

	logger.Debug("hidden")
	logger.Info("crash", Int("tick", 42), Float64("elapsed", 1.5), Bool("latched", true), Error(errors.New("wall")))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected one entry above debug, got %d", len(entries))
	}
	entry := entries[0]
	if entry["message"] != "crash" || entry["level"] != "info" {
		t.Fatalf("unexpected entry header %+v", entry)
	}
	if entry["component"] != "session" || entry["service"] != "parkarena" {
		t.Fatalf("expected inherited fields, got %+v", entry)
	}
	if entry["tick"].(float64) != 42 || entry["elapsed"].(float64) != 1.5 || entry["latched"] != true {
		t.Fatalf("unexpected typed fields %+v", entry)
	}
	if entry["error"] != "wall" {
		t.Fatalf("expected error field, got %+v", entry["error"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"": InfoLevel, "DEBUG": DebugLevel, "warning": WarnLevel, "error": ErrorLevel}
	for raw, want := range cases {
		got, err := ParseLevel(raw)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", raw, got, err, want)
		}
	}
	if _, err := ParseLevel("chatty"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestContextLoggerFallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, DebugLevel)
	ctx := ContextWithLogger(context.Background(), logger)
	if LoggerFromContext(ctx) != logger {
		t.Fatal("expected context logger to be returned")
	}
	if LoggerFromContext(context.Background()) != L() {
		t.Fatal("expected global fallback")
	}
}

func TestHTTPTraceMiddlewarePropagatesHeader(t *testing.T) {
	var seen string
	handler := HTTPTraceMiddleware(NewTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set(TraceIDHeader, "abc123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if seen != "abc123" || rr.Header().Get(TraceIDHeader) != "abc123" {
		t.Fatalf("expected trace id propagation, got ctx=%q header=%q", seen, rr.Header().Get(TraceIDHeader))
	}
}

func TestRotatingWriterRollsOver(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arena.log")
	writer, err := newRotatingWriter(config.LoggingConfig{Path: path, MaxSizeMB: 1, MaxBackups: 1, Compress: false})
	if err != nil {
		t.Fatalf("newRotatingWriter: %v", err)
	}
	defer writer.Close()
	writer.maxSize = 16
	stamp := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	writer.now = func() time.Time { stamp = stamp.Add(time.Second); return stamp }

	for i := 0; i < 3; i++ {
		if _, err := writer.Write([]byte("0123456789\n")); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected active file plus one backup, got %d entries", len(entries))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read active log: %v", err)
	}
	if string(data) != "0123456789\n" {
		t.Fatalf("expected active file to hold only the latest line, got %q", data)
	}
}
