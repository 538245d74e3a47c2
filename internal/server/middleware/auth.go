package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const bearerPrefix = "bearer "

// TokenValidator checks a bearer token and returns the subject user ID.
// Implemented by the auth service.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (string, error)
}

// RequireAuth wraps next with Bearer token validation. The token is taken from
// the Authorization header; on success the user ID is set in the request
// context (GetUserID). Missing, invalid, expired, and revoked tokens all get
// the same 401 response.
func RequireAuth(tokens TokenValidator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r)
		if token == "" {
			unauthorized(w)
			return
		}
		userID, err := tokens.Validate(r.Context(), token)
		if err != nil {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// extractBearer returns the Bearer token from the Authorization header, or "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
