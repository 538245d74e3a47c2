// Package handler exposes the auth service over HTTP: the WebAuthn ceremony
// endpoints, the token lifecycle endpoints, and the authenticated profile and
// credential listing.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"passkeyd/internal/auth"
	"passkeyd/internal/challenge"
	credentialdomain "passkeyd/internal/credential/domain"
	"passkeyd/internal/security"
	"passkeyd/internal/server/middleware"
	userdomain "passkeyd/internal/user/domain"
)

// AuthService is the auth service surface the HTTP handler needs.
// Implemented by *auth.Service.
type AuthService interface {
	StartRegistration(ctx context.Context, handle, displayName string) (*protocol.CredentialCreation, error)
	FinishRegistration(ctx context.Context, handle string, response []byte) (*credentialdomain.Credential, error)
	StartAuthentication(ctx context.Context, handle string) (*protocol.CredentialAssertion, error)
	FinishAuthentication(ctx context.Context, handle string, response []byte) (*auth.TokenResult, error)
	Validate(ctx context.Context, token string) (string, error)
	Refresh(ctx context.Context, token string) (*auth.TokenResult, error)
	Revoke(ctx context.Context, token string) error
	GetUser(ctx context.Context, userID string) (*userdomain.User, error)
	ListCredentials(ctx context.Context, userID string) ([]*credentialdomain.Credential, error)
}

// Handler serves the auth endpoints.
type Handler struct {
	svc AuthService
}

// NewHandler returns an auth HTTP handler backed by svc.
func NewHandler(svc AuthService) *Handler {
	return &Handler{svc: svc}
}

type ceremonyStartRequest struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
}

type ceremonyFinishRequest struct {
	Handle     string          `json:"handle"`
	Credential json.RawMessage `json:"credential"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type profileResponse struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

type credentialResponse struct {
	ID         string    `json:"id"`
	Transports []string  `json:"transports,omitempty"`
	SignCount  uint32    `json:"sign_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// RegisterStart handles POST /v1/register/start.
func (h *Handler) RegisterStart(w http.ResponseWriter, r *http.Request) {
	var req ceremonyStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	options, err := h.svc.StartRegistration(r.Context(), req.Handle, req.DisplayName)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

// RegisterFinish handles POST /v1/register/finish.
func (h *Handler) RegisterFinish(w http.ResponseWriter, r *http.Request) {
	var req ceremonyFinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	if _, err := h.svc.FinishRegistration(r.Context(), req.Handle, req.Credential); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

// LoginStart handles POST /v1/login/start.
func (h *Handler) LoginStart(w http.ResponseWriter, r *http.Request) {
	var req ceremonyStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	options, err := h.svc.StartAuthentication(r.Context(), req.Handle)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

// LoginFinish handles POST /v1/login/finish.
func (h *Handler) LoginFinish(w http.ResponseWriter, r *http.Request) {
	var req ceremonyFinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	result, err := h.svc.FinishAuthentication(r.Context(), req.Handle, req.Credential)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: result.Token, ExpiresAt: result.ExpiresAt})
}

// Refresh handles POST /v1/token/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	result, err := h.svc.Refresh(r.Context(), req.Token)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: result.Token, ExpiresAt: result.ExpiresAt})
}

// Revoke handles POST /v1/token/revoke.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	if err := h.svc.Revoke(r.Context(), req.Token); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

// Me handles GET /v1/me. Requires the auth middleware.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.svc.GetUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		ID:          user.ID,
		Handle:      user.Handle,
		DisplayName: user.DisplayName,
		CreatedAt:   user.CreatedAt,
	})
}

// Credentials handles GET /v1/credentials. Requires the auth middleware.
func (h *Handler) Credentials(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	creds, err := h.svc.ListCredentials(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]credentialResponse, 0, len(creds))
	for _, c := range creds {
		out = append(out, credentialResponse{
			ID:         base64.RawURLEncoding.EncodeToString(c.ID),
			Transports: c.Transports,
			SignCount:  c.SignCount,
			CreatedAt:  c.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"credentials": out})
}

// writeServiceError maps auth service errors to HTTP responses. All ceremony
// verification failures share one generic response; the specific cause stays
// in the audit trail only, so the endpoint cannot be probed to learn which
// check failed.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidHandle):
		writeError(w, http.StatusBadRequest, "invalid_handle")
	case errors.Is(err, auth.ErrHandleTaken), errors.Is(err, auth.ErrDuplicateCredential):
		writeError(w, http.StatusConflict, "already_exists")
	case errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, auth.ErrNoCredentials):
		writeError(w, http.StatusBadRequest, "no_credentials")
	case errors.Is(err, challenge.ErrNoChallenge),
		errors.Is(err, challenge.ErrChallengeExpired),
		errors.Is(err, challenge.ErrChallengeMismatch):
		writeError(w, http.StatusForbidden, "challenge_invalid")
	case errors.Is(err, auth.ErrOriginMismatch),
		errors.Is(err, auth.ErrMalformedResponse),
		errors.Is(err, auth.ErrUnknownCredential),
		errors.Is(err, auth.ErrSignatureInvalid),
		errors.Is(err, auth.ErrCounterRegression):
		writeError(w, http.StatusForbidden, "verification_failed")
	case errors.Is(err, security.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "token_expired")
	case errors.Is(err, security.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenRevoked),
		errors.Is(err, auth.ErrUnknownUser):
		writeError(w, http.StatusUnauthorized, "invalid_token")
	default:
		log.Printf("auth handler: %s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "internal")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("auth handler: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
