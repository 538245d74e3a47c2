package domain

import (
	"errors"
	"time"
)

// User is an account identified by a stable ID and a unique human-chosen handle.
type User struct {
	ID          string
	Handle      string
	DisplayName string
	CreatedAt   time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Handle == "" {
		return errors.New("handle is required")
	}
	if u.DisplayName == "" {
		u.DisplayName = u.Handle
	}
	return nil
}
