// Package revocation provides an in-memory set of revoked token IDs.
// Entries are kept only until the underlying token would have expired anyway,
// so the set stays bounded by the token lifetime.
package revocation

import (
	"context"
	"sync"
	"time"
)

// Store tracks revoked token IDs (jti) until their natural expiry.
type Store interface {
	// Revoke marks jti as revoked until expiresAt. Idempotent.
	Revoke(ctx context.Context, jti string, expiresAt time.Time)
	// IsRevoked reports whether jti is currently revoked.
	IsRevoked(ctx context.Context, jti string) bool
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]time.Time
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory revocation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]time.Time),
		nowF: time.Now().UTC,
	}
}

// Revoke marks jti as revoked until expiresAt. Revoking an already revoked
// jti is a no-op. Expired entries are purged opportunistically.
func (s *MemoryStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) {
	now := s.nowF()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, exp := range s.m {
		if !exp.After(now) {
			delete(s.m, id)
		}
	}
	if _, ok := s.m[jti]; ok {
		return
	}
	s.m[jti] = expiresAt
}

// IsRevoked reports whether jti is revoked and not yet past its expiry.
func (s *MemoryStore) IsRevoked(ctx context.Context, jti string) bool {
	s.mu.RLock()
	exp, ok := s.m[jti]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if !exp.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, jti)
		s.mu.Unlock()
		return false
	}
	return true
}
