package revocation

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_RevokeAndCheck(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if store.IsRevoked(ctx, "jti-1") {
		t.Error("fresh store should not report jti as revoked")
	}

	store.Revoke(ctx, "jti-1", time.Now().UTC().Add(15*time.Minute))

	if !store.IsRevoked(ctx, "jti-1") {
		t.Error("jti should be revoked after Revoke")
	}
	if store.IsRevoked(ctx, "jti-2") {
		t.Error("other jti should not be revoked")
	}
}

func TestMemoryStore_Revoke_Idempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	exp := time.Now().UTC().Add(15 * time.Minute)

	store.Revoke(ctx, "jti-1", exp)
	store.Revoke(ctx, "jti-1", exp)

	if !store.IsRevoked(ctx, "jti-1") {
		t.Error("jti should remain revoked after repeated Revoke")
	}
}

func TestMemoryStore_EntryExpires(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.nowF = func() time.Time { return now }

	store.Revoke(ctx, "jti-1", now.Add(15*time.Minute))
	if !store.IsRevoked(ctx, "jti-1") {
		t.Fatal("jti should be revoked before expiry")
	}

	now = now.Add(15 * time.Minute)
	if store.IsRevoked(ctx, "jti-1") {
		t.Error("revocation entry should lapse once the token itself has expired")
	}
}

func TestMemoryStore_Revoke_PurgesExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.nowF = func() time.Time { return now }

	store.Revoke(ctx, "old", now.Add(time.Minute))
	now = now.Add(2 * time.Minute)
	store.Revoke(ctx, "new", now.Add(time.Minute))

	store.mu.RLock()
	_, oldPresent := store.m["old"]
	store.mu.RUnlock()
	if oldPresent {
		t.Error("expired entry should be purged on Revoke")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	exp := time.Now().UTC().Add(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			jti := "jti-" + string(rune('0'+id))
			store.Revoke(ctx, jti, exp)
			store.IsRevoked(ctx, jti)
		}(i)
	}
	wg.Wait()
}
