// Package events defines security events emitted by the auth flows and the
// interface for shipping them to the event stream.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the auth flows.
const (
	TypeRegistrationCompleted = "registration_completed"
	TypeLoginSucceeded        = "login_succeeded"
	TypeLoginFailed           = "login_failed"
	TypeTokenRefreshed        = "token_refreshed"
	TypeTokenRevoked          = "token_revoked"
	TypeCredentialFlagged     = "credential_flagged"
)

// Source identifies this service in emitted events.
const Source = "passkeyd"

// Event is a single security event. Serialized as JSON on the wire.
type Event struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	EventType string    `json:"eventType"`
	Source    string    `json:"source"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// New returns an Event of the given type for the user, stamped with a fresh ID and time.
func New(eventType, userID, metadata string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		UserID:    userID,
		EventType: eventType,
		Source:    Source,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
}

// EventEmitter emits security events (e.g. to Kafka). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
