package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// captureLogOutput redirects the global logger to a buffer while f runs.
func captureLogOutput(f func()) string {
	var buf bytes.Buffer
	old := defaultLogger
	SetLogger(New(&buf, LevelDebug, FormatJSON))
	defer SetLogger(old)
	f()
	return buf.String()
}

// decodeLine parses a single JSON log line.
func decodeLine(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &m); err != nil {
		t.Fatalf("log output is not one JSON object: %v\n%s", err, out)
	}
	return m
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"", LevelInfo, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("text"); err != nil || f != FormatText {
		t.Errorf("ParseFormat(text) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) succeeded, want error")
	}
}

func TestNewRespectsLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelWarn, FormatText)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %s", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "k=v") {
		t.Errorf("text output = %q", out)
	}
}

func TestTimestampFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, LevelInfo, FormatJSON).Info("tick")

	m := decodeLine(t, buf.String())
	ts, ok := m["time"].(string)
	if !ok {
		t.Fatalf("time = %v, want string", m["time"])
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("time %q is not RFC3339: %v", ts, err)
	}
}

func TestContextValues(t *testing.T) {
	ctx := WithSessionID(WithRequestID(context.Background(), "req-1"), "sess-1")
	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("GetRequestID() = %q, want %q", got, "req-1")
	}
	if got := GetSessionID(ctx); got != "sess-1" {
		t.Errorf("GetSessionID() = %q, want %q", got, "sess-1")
	}
	if got := GetRequestID(context.WithValue(context.Background(), RequestIDKey, 12345)); got != "" {
		t.Errorf("GetRequestID(wrong type) = %q, want empty", got)
	}

	out := captureLogOutput(func() { InfoContext(ctx, "hello") })
	m := decodeLine(t, out)
	if m["request_id"] != "req-1" || m["session_id"] != "sess-1" {
		t.Errorf("context fields missing: %v", m)
	}
}

func TestLoggingFunctions(t *testing.T) {
	tests := []struct {
		name  string
		fn    func()
		level string
		msg   string
	}{
		{"debug", func() { Debug("d") }, "DEBUG", "d"},
		{"info", func() { Info("i") }, "INFO", "i"},
		{"warn", func() { Warn("w") }, "WARN", "w"},
		{"error", func() { Error("e") }, "ERROR", "e"},
		{"debug context", func() { DebugContext(context.Background(), "dc") }, "DEBUG", "dc"},
		{"warn context", func() { WarnContext(context.Background(), "wc") }, "WARN", "wc"},
		{"error context", func() { ErrorContext(context.Background(), "ec") }, "ERROR", "ec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := decodeLine(t, captureLogOutput(tt.fn))
			if m["level"] != tt.level || m["msg"] != tt.msg {
				t.Errorf("got level=%v msg=%v, want %s %s", m["level"], m["msg"], tt.level, tt.msg)
			}
		})
	}
}

func TestEventHelpers(t *testing.T) {
	tests := []struct {
		name   string
		fn     func()
		msg    string
		fields map[string]any
	}{
		{
			name:   "translation loaded",
			fn:     func() { TranslationLoaded("kjv", 3*time.Millisecond, nil) },
			msg:    "translation_loaded",
			fields: map[string]any{"translation": "kjv", "duration_ms": float64(3)},
		},
		{
			name:   "translation load failed",
			fn:     func() { TranslationLoaded("web", 0, errors.New("boom")) },
			msg:    "translation_load_failed",
			fields: map[string]any{"translation": "web", "error": "boom"},
		},
		{
			name: "fragment processed",
			fn: func() {
				FragmentProcessed(WithSessionID(context.Background(), "s1"), "kjv", 2, 1, 0, time.Millisecond)
			},
			msg:    "fragment_processed",
			fields: map[string]any{"session_id": "s1", "direct": float64(2), "paraphrase": float64(1)},
		},
		{
			name:   "session event",
			fn:     func() { SessionEvent("reset", "s1", "fragments", 4) },
			msg:    "session_event",
			fields: map[string]any{"event": "reset", "session_id": "s1", "fragments": float64(4)},
		},
		{
			name:   "websocket event",
			fn:     func() { WebSocketEvent("connected", 3) },
			msg:    "websocket_event",
			fields: map[string]any{"event": "connected", "client_count": float64(3)},
		},
		{
			name:   "server startup",
			fn:     func() { ServerStartup("api", "http", ":8080") },
			msg:    "server_startup",
			fields: map[string]any{"server_type": "api", "addr": ":8080"},
		},
		{
			name:   "ingest error",
			fn:     func() { IngestError("transcripts", 2, 41, errors.New("bad json")) },
			msg:    "ingest_error",
			fields: map[string]any{"topic": "transcripts", "partition": float64(2), "offset": float64(41)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := decodeLine(t, captureLogOutput(tt.fn))
			if m["msg"] != tt.msg {
				t.Errorf("msg = %v, want %s", m["msg"], tt.msg)
			}
			for k, want := range tt.fields {
				if m[k] != want {
					t.Errorf("%s = %v, want %v", k, m[k], want)
				}
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	id := w.Header().Get("X-Request-ID")
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("generated request ID %q is not a UUID: %v", id, err)
	}
	if seen != id {
		t.Errorf("context request ID = %q, want %q", seen, id)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "existing-req-id-123")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "existing-req-id-123" {
		t.Errorf("X-Request-ID = %q, want the incoming one", got)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus float64
	}{
		{"implicit ok", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) }, 200},
		{"created", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) }, 201},
		{"first status wins", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.WriteHeader(http.StatusOK)
		}, 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureLogOutput(func() {
				h := CombinedMiddleware(tt.handler)
				h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/sessions", nil))
			})
			m := decodeLine(t, out)
			if m["msg"] != "http_request" || m["path"] != "/sessions" || m["method"] != "POST" {
				t.Errorf("unexpected log line: %v", m)
			}
			if m["status_code"] != tt.wantStatus {
				t.Errorf("status_code = %v, want %v", m["status_code"], tt.wantStatus)
			}
			if m["request_id"] == nil {
				t.Error("request_id missing from request log")
			}
		})
	}
}

func TestResponseWriterHijackUnsupported(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); !errors.Is(err, http.ErrNotSupported) {
		t.Errorf("Hijack() error = %v, want %v", err, http.ErrNotSupported)
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	if l == nil || l.Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard() should return a logger that is never enabled")
	}
}
