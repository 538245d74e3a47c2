// Package handler serves the health endpoint for Kubernetes, load balancers, and CI.
package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// Pinger reports backing-store connectivity (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker reports policy engine readiness (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler serves GET /healthz. Nil dependencies skip the corresponding check.
type Handler struct {
	pinger Pinger
	policy PolicyChecker
}

// NewHandler returns a health handler with the given checks.
func NewHandler(pinger Pinger, policy PolicyChecker) *Handler {
	return &Handler{pinger: pinger, policy: policy}
}

// Healthz responds 200 {"status":"ok"} when all configured checks pass,
// 503 {"status":"unavailable"} otherwise.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	if h.pinger != nil {
		if err := h.pinger.PingContext(ctx); err != nil {
			log.Printf("health: db ping: %v", err)
			status, code = "unavailable", http.StatusServiceUnavailable
		}
	}
	if code == http.StatusOK && h.policy != nil {
		if err := h.policy.HealthCheck(ctx); err != nil {
			log.Printf("health: policy check: %v", err)
			status, code = "unavailable", http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
