package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/cartfinder/report"
)

func testReport() *report.Report {
	return &report.Report{ID: "scan-1", URL: "https://shop.test/", Mode: "static", ProductPage: true}
}

func TestStdout(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	if err := s.Send(context.Background(), testReport()); err != nil {
		t.Fatalf("send: %v", err)
	}

	var env struct {
		Type string         `json:"type"`
		Data *report.Report `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != "report" || env.Data.ID != "scan-1" {
		t.Fatalf("envelope: %+v", env)
	}
}

func TestWebhook_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type: %q", r.Header.Get("Content-Type"))
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	if err := w.Send(context.Background(), testReport()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls: got %d, want 3", got)
	}
}

func TestWebhook_Exhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookRetries(1), WithWebhookBackoff(time.Millisecond))
	if err := w.Send(context.Background(), testReport()); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls: got %d, want 2", got)
	}
}

func TestRouter_FanOut(t *testing.T) {
	var got []string
	ok := NewCallback(func(_ context.Context, r *report.Report) error {
		got = append(got, r.ID)
		return nil
	})
	boom := errors.New("boom")
	bad := NewCallback(func(context.Context, *report.Report) error { return boom })

	r := NewRouter(nil, bad, ok)
	if err := r.Send(context.Background(), testReport()); !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}
	if len(got) != 1 || got[0] != "scan-1" {
		t.Fatalf("healthy sink skipped: %v", got)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	r, err := FromConfig([]Config{{Type: "stdout"}, {Type: "webhook", URL: "http://localhost:1"}}, nil)
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("len: got %d", r.Len())
	}
	if _, err := FromConfig([]Config{{Type: "nats"}}, nil); err == nil {
		t.Fatal("expected unknown type error")
	}
	if _, err := FromConfig([]Config{{Type: "webhook"}}, nil); err == nil {
		t.Fatal("expected missing url error")
	}
}
