// Package challenge provides an in-memory single-use store for pending WebAuthn
// ceremony state, keyed by user and ceremony type.
package challenge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// CeremonyType identifies which ceremony a pending challenge belongs to.
// Registration and authentication challenges never satisfy each other.
type CeremonyType string

const (
	CeremonyRegistration   CeremonyType = "registration"
	CeremonyAuthentication CeremonyType = "authentication"
)

var (
	// ErrNoChallenge is returned when no challenge is outstanding for the user and ceremony.
	ErrNoChallenge = errors.New("no outstanding challenge")
	// ErrChallengeMismatch is returned when the presented challenge differs from the stored one.
	ErrChallengeMismatch = errors.New("challenge mismatch")
	// ErrChallengeExpired is returned when the stored challenge's TTL has elapsed.
	ErrChallengeExpired = errors.New("challenge expired")
)

// Store holds pending ceremony session data. At most one live challenge exists
// per (user, ceremony type); issuing a new one replaces the previous.
type Store interface {
	// Issue stores session for the user and ceremony until now+ttl, replacing
	// any previously outstanding challenge for the same key.
	Issue(ctx context.Context, userID string, ceremony CeremonyType, session *webauthn.SessionData, ttl time.Duration)
	// Consume returns the stored session if presented matches its challenge.
	// The entry is removed on success and on expiry; a mismatch leaves the
	// stored challenge in place so the legitimate ceremony can still finish.
	Consume(ctx context.Context, userID string, ceremony CeremonyType, presented string) (*webauthn.SessionData, error)
}

type key struct {
	userID   string
	ceremony CeremonyType
}

type entry struct {
	session   *webauthn.SessionData
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.Mutex
	m    map[key]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory challenge store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[key]entry),
		nowF: time.Now().UTC,
	}
}

// Issue stores session for the user and ceremony until now+ttl.
func (s *MemoryStore) Issue(ctx context.Context, userID string, ceremony CeremonyType, session *webauthn.SessionData, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key{userID: userID, ceremony: ceremony}] = entry{
		session:   session,
		expiresAt: s.nowF().Add(ttl),
	}
}

// Consume validates presented against the stored challenge and returns the
// session data on match. Check order: missing, expired, mismatch.
func (s *MemoryStore) Consume(ctx context.Context, userID string, ceremony CeremonyType, presented string) (*webauthn.SessionData, error) {
	k := key{userID: userID, ceremony: ceremony}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[k]
	if !ok {
		return nil, ErrNoChallenge
	}
	if !e.expiresAt.After(s.nowF()) {
		delete(s.m, k)
		return nil, ErrChallengeExpired
	}
	if e.session.Challenge != presented {
		return nil, ErrChallengeMismatch
	}
	delete(s.m, k)
	return e.session, nil
}
