package repository

import (
	"context"
	"errors"

	"passkeyd/internal/credential/domain"
)

// ErrCounterRegression is returned by UpdateSignCount when the reported sign
// count does not exceed the stored one. Treated as a possible cloned
// authenticator by callers.
var ErrCounterRegression = errors.New("sign count did not increase")

// Repository defines persistence for passkey credentials.
type Repository interface {
	GetByCredentialID(ctx context.Context, credentialID []byte) (*domain.Credential, error)
	// ListByUser returns the user's credentials in registration order (oldest first).
	ListByUser(ctx context.Context, userID string) ([]*domain.Credential, error)
	Create(ctx context.Context, c *domain.Credential) error
	// UpdateSignCount atomically sets the stored counter to signCount only if it is
	// strictly greater than the current value. Returns ErrCounterRegression otherwise,
	// or sql.ErrNoRows if the credential does not exist.
	UpdateSignCount(ctx context.Context, credentialID []byte, signCount uint32) error
}
