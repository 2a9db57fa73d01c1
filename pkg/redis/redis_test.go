package redis

import (
	"context"
	"testing"
	"time"
)

func TestDisabledClientIsNoop(t *testing.T) {
	c := Disabled()

	if c.Enabled() {
		t.Fatal("Disabled() client must report Enabled() == false")
	}

	cache := NewCache(c, "test")
	ctx := context.Background()

	if err := cache.Set(ctx, "k", map[string]int{"a": 1}, time.Minute); err != nil {
		t.Errorf("Set on disabled client must not error: %v", err)
	}

	var dest map[string]int
	found, err := cache.Get(ctx, "k", &dest)
	if err != nil {
		t.Errorf("Get on disabled client must not error: %v", err)
	}
	if found {
		t.Error("Get on disabled client must report not found")
	}
}

func TestDisabledRateLimiterAllowsAll(t *testing.T) {
	limiter := NewRateLimiter(Disabled(), "test")
	cfg := RateLimitConfig{Key: "vendor", Limit: 1, Window: time.Minute}

	for i := 0; i < 10; i++ {
		allowed, _, err := limiter.Allow(context.Background(), cfg)
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !allowed {
			t.Fatal("disabled limiter must always allow")
		}
	}
}

func TestRateLimiterLive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	// Requires a local Redis; exercised in CI with REDIS_ENABLED=true.
	t.Skip("requires local redis instance")
}
