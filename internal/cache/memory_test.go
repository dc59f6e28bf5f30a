package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryProvider_Claim(t *testing.T) {
	t.Parallel()

	provider, err := NewMemoryProvider()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	key := WebhookKey("asaas", "evt_1")

	claimed, err := provider.Claim(ctx, key, time.Hour)
	if err != nil || !claimed {
		t.Fatalf("first claim = %v, %v", claimed, err)
	}
	claimed, err = provider.Claim(ctx, key, time.Hour)
	if err != nil || claimed {
		t.Fatalf("second claim = %v, %v", claimed, err)
	}

	if err := provider.Release(ctx, key); err != nil {
		t.Fatalf("release: %v", err)
	}
	claimed, _ = provider.Claim(ctx, key, time.Hour)
	if !claimed {
		t.Fatal("expected claim after release to succeed")
	}
}

func TestMemoryProvider_ClaimExpires(t *testing.T) {
	t.Parallel()

	provider, err := NewMemoryProvider()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	provider.now = func() time.Time { return now }

	ctx := context.Background()
	if claimed, _ := provider.Claim(ctx, "k", time.Minute); !claimed {
		t.Fatal("expected first claim")
	}
	now = now.Add(2 * time.Minute)
	if claimed, _ := provider.Claim(ctx, "k", time.Minute); !claimed {
		t.Fatal("expected claim after expiry")
	}
}

func TestMemoryProvider_ConcurrentClaimHasOneWinner(t *testing.T) {
	t.Parallel()

	provider, err := NewMemoryProvider()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if claimed, _ := provider.Claim(context.Background(), "race", time.Hour); claimed {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners.Load())
	}
}

func TestNewProvider_Unsupported(t *testing.T) {
	t.Parallel()

	if _, err := NewProvider(Config{Provider: "memcached"}); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}
