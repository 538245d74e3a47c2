package domain

import "time"

// AuditLog represents an audit event.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}

// Audit actions recorded by the auth flows.
const (
	ActionRegistrationStarted   = "registration_started"
	ActionRegistrationCompleted = "registration_completed"
	ActionLoginStarted          = "login_started"
	ActionLoginSucceeded        = "login_succeeded"
	ActionLoginFailed           = "login_failed"
	ActionTokenRefreshed        = "token_refreshed"
	ActionTokenRevoked          = "token_revoked"
	// ActionCredentialFlagged marks a credential for administrative review,
	// recorded on signature counter regressions.
	ActionCredentialFlagged = "credential_flagged"
)
