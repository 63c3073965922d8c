package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryRevocation_RevokeAndCheck(t *testing.T) {
	store := NewMemoryRevocationStore()
	defer store.Close()
	ctx := context.Background()

	store.Revoke(ctx, "token-abc-123", "user-1", time.Now().Add(time.Hour))

	revoked, err := store.IsRevoked(ctx, "token-abc-123")
	if err != nil || !revoked {
		t.Errorf("expected token to be revoked, got %v (%v)", revoked, err)
	}
	revoked, _ = store.IsRevoked(ctx, "unknown-jti")
	if revoked {
		t.Error("expected unknown JTI to not be revoked")
	}
}

func TestMemoryRevocation_Cleanup(t *testing.T) {
	store := NewMemoryRevocationStore()
	defer store.Close()
	ctx := context.Background()

	store.Revoke(ctx, "expired", "", time.Now().Add(-time.Minute))
	store.Revoke(ctx, "live", "", time.Now().Add(time.Hour))
	store.cleanup()

	if store.Count() != 1 {
		t.Fatalf("expected 1 entry after cleanup, got %d", store.Count())
	}
	if revoked, _ := store.IsRevoked(ctx, "live"); !revoked {
		t.Error("expected live token to remain revoked")
	}
}

func TestMemoryRevocation_Concurrent(t *testing.T) {
	store := NewMemoryRevocationStore()
	defer store.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			jti := fmt.Sprintf("jti-%d", i)
			store.Revoke(ctx, jti, "", time.Now().Add(time.Hour))
			store.IsRevoked(ctx, jti)
		}(i)
	}
	wg.Wait()

	if store.Count() != 50 {
		t.Errorf("expected 50 entries, got %d", store.Count())
	}
}

func TestMemoryRevocation_CloseTwice(t *testing.T) {
	store := NewMemoryRevocationStore()
	store.Close()
	store.Close()
}

func TestRevokedKey(t *testing.T) {
	if got := revokedKey("abc"); got != "pillcare:revoked:abc" {
		t.Errorf("unexpected key %q", got)
	}
}
