package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakePinger struct{ err error }

func (f *fakePinger) PingContext(ctx context.Context) error { return f.err }

type fakePolicy struct{ err error }

func (f *fakePolicy) HealthCheck(ctx context.Context) error { return f.err }

func check(t *testing.T, h *Handler) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	return rec.Code, body["status"]
}

func TestHealthz_AllChecksPass(t *testing.T) {
	code, status := check(t, NewHandler(&fakePinger{}, &fakePolicy{}))
	if code != http.StatusOK || status != "ok" {
		t.Errorf("got %d/%q, want 200/ok", code, status)
	}
}

func TestHealthz_NilDependencies(t *testing.T) {
	code, status := check(t, NewHandler(nil, nil))
	if code != http.StatusOK || status != "ok" {
		t.Errorf("got %d/%q, want 200/ok", code, status)
	}
}

func TestHealthz_DBDown(t *testing.T) {
	code, status := check(t, NewHandler(&fakePinger{err: errors.New("down")}, &fakePolicy{}))
	if code != http.StatusServiceUnavailable || status != "unavailable" {
		t.Errorf("got %d/%q, want 503/unavailable", code, status)
	}
}

func TestHealthz_PolicyDown(t *testing.T) {
	code, status := check(t, NewHandler(&fakePinger{}, &fakePolicy{err: errors.New("bad policy")}))
	if code != http.StatusServiceUnavailable || status != "unavailable" {
		t.Errorf("got %d/%q, want 503/unavailable", code, status)
	}
}
