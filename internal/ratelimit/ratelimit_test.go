package ratelimit

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/oHaruki/SmurfMGT/internal/config"
)

func TestMemoryLimiterFixedWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 3; i++ {
		result, errAllow := limiter.Allow(ctx, "login:ip:1.2.3.4", 3, now)
		if errAllow != nil {
			t.Fatalf("allow: %v", errAllow)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if result.Remaining != 3-(i+1) {
			t.Fatalf("request %d: remaining %d", i+1, result.Remaining)
		}
	}

	result, _ := limiter.Allow(ctx, "login:ip:1.2.3.4", 3, now)
	if result.Allowed {
		t.Fatal("fourth request in the same second should be rejected")
	}

	// The next second opens a fresh window.
	result, _ = limiter.Allow(ctx, "login:ip:1.2.3.4", 3, now.Add(time.Second))
	if !result.Allowed {
		t.Fatal("request in the next window should be allowed")
	}

	// Other clients have independent windows.
	result, _ = limiter.Allow(ctx, "login:ip:5.6.7.8", 3, now)
	if !result.Allowed {
		t.Fatal("other client should be unaffected")
	}
}

func TestMemoryLimiterZeroLimitDisables(t *testing.T) {
	limiter := NewMemoryLimiter()
	for i := 0; i < 10; i++ {
		result, _ := limiter.Allow(context.Background(), "k", 0, time.Now())
		if !result.Allowed {
			t.Fatal("zero limit must disable throttling")
		}
	}
}

func TestMemoryLimiterSweepDropsOldWindows(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 5; i++ {
		key := ClientKey("login", "10.0.0."+strconv.Itoa(i+1))
		if _, errAllow := limiter.Allow(ctx, key, 3, now); errAllow != nil {
			t.Fatalf("allow: %v", errAllow)
		}
	}
	if len(limiter.windows) != 5 {
		t.Fatalf("expected 5 tracked windows, got %d", len(limiter.windows))
	}

	limiter.mu.Lock()
	limiter.sweep(now.Add(time.Second).Unix())
	limiter.mu.Unlock()
	if len(limiter.windows) != 0 {
		t.Fatalf("stale windows survived the sweep: %d left", len(limiter.windows))
	}

	// A swept key starts a fresh window with a full budget.
	result, _ := limiter.Allow(ctx, ClientKey("login", "10.0.0.1"), 3, now.Add(time.Second))
	if !result.Allowed || result.Remaining != 2 {
		t.Fatalf("expected fresh window after sweep, got %+v", result)
	}
}

func TestManagerFallsBackWithoutRedis(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	mgr := NewManager(config.RateLimitConfig{
		AuthPerSecond: 1,
		Redis:         config.RedisConfig{Enabled: true}, // enabled but no address
	}, func() time.Time { return now }, nil)

	result, errAllow := mgr.AllowAuth(context.Background(), "login:ip:1.2.3.4")
	if errAllow != nil {
		t.Fatalf("allow: %v", errAllow)
	}
	if !result.Allowed {
		t.Fatal("first request should be allowed via memory fallback")
	}
	result, _ = mgr.AllowAuth(context.Background(), "login:ip:1.2.3.4")
	if result.Allowed {
		t.Fatal("second request should hit the memory limit")
	}
}

func TestClientKey(t *testing.T) {
	if got := ClientKey("login", "1.2.3.4"); got != "login:ip:1.2.3.4" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := ClientKey("", "1.2.3.4"); got != "" {
		t.Fatalf("missing route should yield empty key, got %q", got)
	}
	if got := ClientKey("login", ""); got != "" {
		t.Fatalf("missing client should yield empty key, got %q", got)
	}
}
