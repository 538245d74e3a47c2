package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"passkeyd/internal/events"
)

type captureEmitter struct {
	mu     sync.Mutex
	events []*events.Event
}

func (c *captureEmitter) Emit(ctx context.Context, e *events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *captureEmitter) get() []*events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events
}

func TestTelemetry_EmitsRequestEvent(t *testing.T) {
	emitter := &captureEmitter{}
	h := Telemetry(emitter, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/login/start", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	time.Sleep(100 * time.Millisecond)

	got := emitter.get()
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].EventType != "http_request" {
		t.Errorf("event type = %q, want http_request", got[0].EventType)
	}
	var meta struct {
		Method     string `json:"method"`
		Path       string `json:"path"`
		StatusCode int    `json:"status_code"`
		ClientIP   string `json:"client_ip"`
	}
	if err := json.Unmarshal([]byte(got[0].Metadata), &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.Method != http.MethodPost || meta.Path != "/v1/login/start" {
		t.Errorf("metadata = %+v", meta)
	}
	if meta.StatusCode != http.StatusTeapot {
		t.Errorf("status_code = %d, want 418", meta.StatusCode)
	}
	if meta.ClientIP != "10.0.0.1" {
		t.Errorf("client_ip = %q, want 10.0.0.1", meta.ClientIP)
	}
}

func TestTelemetry_SetsClientIPInContext(t *testing.T) {
	var gotIP string
	h := Telemetry(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIP = ClientIP(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	h.ServeHTTP(httptest.NewRecorder(), req)

	if gotIP != "192.0.2.7" {
		t.Errorf("client IP in context = %q, want 192.0.2.7", gotIP)
	}
}

func TestTelemetry_NilEmitter(t *testing.T) {
	h := Telemetry(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	// Must not panic.
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
