package shield

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/cartfinder/kit"
)

func chain(h http.Handler) http.Handler {
	return chainWith(nil, h)
}

func chainWith(logger *slog.Logger, h http.Handler) http.Handler {
	stack := DefaultAPIStack(logger)
	for i := len(stack) - 1; i >= 0; i-- {
		h = stack[i](h)
	}
	return h
}

func TestStack_HeadersAndTrace(t *testing.T) {
	var traceID, method string
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = kit.GetTraceID(r.Context())
		method = r.Method
		if GetLogger(r.Context()) == nil {
			t.Error("nil logger")
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/health", nil))

	if method != http.MethodGet {
		t.Errorf("method: got %s, want GET", method)
	}
	if traceID == "" || rec.Header().Get("X-Trace-ID") != traceID {
		t.Errorf("trace id: ctx %q header %q", traceID, rec.Header().Get("X-Trace-ID"))
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
}

func TestMaxBody(t *testing.T) {
	var readErr error
	h := MaxBody(8)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader(`{"url":"https://shop.test/"}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if readErr == nil {
		t.Fatal("expected body limit error for JSON")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader(`<html><body></body></html>`))
	req.Header.Set("Content-Type", "text/html; charset=utf-8")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if readErr != nil {
		t.Fatalf("html upload limited: %v", readErr)
	}
}

func TestTraceID_UsesLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := chainWith(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		GetLogger(r.Context()).Info("inner")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scans", nil))
	traceID := rec.Header().Get("X-Trace-ID")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("log lines: got %d: %s", len(lines), buf.String())
	}
	for _, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		if entry["trace_id"] != traceID || entry["path"] != "/api/scans" {
			t.Fatalf("entry: %v", entry)
		}
	}
	if !strings.Contains(lines[0], `"msg":"request"`) {
		t.Fatalf("first line: %s", lines[0])
	}
}
