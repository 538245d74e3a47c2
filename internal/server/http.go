// Package server assembles the HTTP routing for the auth service.
package server

import (
	"net/http"

	authhandler "passkeyd/internal/auth/handler"
	"passkeyd/internal/events"
	healthhandler "passkeyd/internal/health/handler"
	"passkeyd/internal/server/middleware"
)

// Deps holds the dependencies for the HTTP routes.
type Deps struct {
	// Auth is the auth service behind the ceremony, token, and profile endpoints.
	Auth authhandler.AuthService
	// HealthPinger is used by /healthz for readiness (e.g. *sql.DB). If nil, the DB ping is skipped.
	HealthPinger healthhandler.Pinger
	// HealthPolicyChecker is used by /healthz for readiness (e.g. the OPA evaluator). If nil, the policy check is skipped.
	HealthPolicyChecker healthhandler.PolicyChecker
	// Emitter receives http_request telemetry events. If nil, request telemetry is disabled.
	Emitter events.EventEmitter
}

// NewHandler builds the full route table.
//
// Route → handler mapping:
//   - /v1/register/*, /v1/login/*, /v1/token/* → internal/auth/handler (public)
//   - /v1/me, /v1/credentials                  → internal/auth/handler (Bearer token)
//   - /healthz                                 → internal/health/handler
func NewHandler(deps Deps) http.Handler {
	auth := authhandler.NewHandler(deps.Auth)
	health := healthhandler.NewHandler(deps.HealthPinger, deps.HealthPolicyChecker)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/register/start", auth.RegisterStart)
	mux.HandleFunc("POST /v1/register/finish", auth.RegisterFinish)
	mux.HandleFunc("POST /v1/login/start", auth.LoginStart)
	mux.HandleFunc("POST /v1/login/finish", auth.LoginFinish)
	mux.HandleFunc("POST /v1/token/refresh", auth.Refresh)
	mux.HandleFunc("POST /v1/token/revoke", auth.Revoke)
	mux.Handle("GET /v1/me", middleware.RequireAuth(deps.Auth, http.HandlerFunc(auth.Me)))
	mux.Handle("GET /v1/credentials", middleware.RequireAuth(deps.Auth, http.HandlerFunc(auth.Credentials)))
	mux.HandleFunc("GET /healthz", health.Healthz)

	return middleware.Telemetry(deps.Emitter, mux)
}
