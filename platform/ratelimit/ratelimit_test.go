package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryCounterSlidingWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	counter := NewMemoryCounter(2, time.Minute)
	counter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		decision, err := counter.Allow(ctx, "1.2.3.4")
		if err != nil || !decision.Allowed {
			t.Fatalf("hit %d: expected allowed, got %+v err=%v", i, decision, err)
		}
	}

	decision, _ := counter.Allow(ctx, "1.2.3.4")
	if decision.Allowed {
		t.Fatal("expected third hit to be rejected")
	}
	if decision.RetryIn != time.Minute {
		t.Fatalf("expected retry in 1m, got %v", decision.RetryIn)
	}

	other, _ := counter.Allow(ctx, "5.6.7.8")
	if !other.Allowed {
		t.Fatal("expected independent key to be allowed")
	}

	now = now.Add(61 * time.Second)
	decision, _ = counter.Allow(ctx, "1.2.3.4")
	if !decision.Allowed {
		t.Fatal("expected hit to be allowed after window slides")
	}
}

func TestMemoryCounterPrune(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	counter := NewMemoryCounter(5, time.Minute)
	counter.now = func() time.Time { return now }

	_, _ = counter.Allow(context.Background(), "a")
	now = now.Add(2 * time.Minute)
	counter.Prune()

	if len(counter.hits) != 0 {
		t.Fatalf("expected stale keys pruned, got %d", len(counter.hits))
	}
}

func TestRedisCounterSharedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	first := NewRedisCounter(rdb, "test:", 3, time.Minute)
	second := NewRedisCounter(rdb, "test:", 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		counter := first
		if i%2 == 1 {
			counter = second
		}
		decision, err := counter.Allow(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("hit %d: expected allowed", i)
		}
	}

	decision, err := second.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expected limit to be shared across counters")
	}
}
