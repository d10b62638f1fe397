package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests advance window expiry deterministically.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter() (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	counters := NewMemoryCounters()
	counters.now = clock.now
	return New(counters), clock
}

func TestAllowUntilLimit(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter()

	const max = 3
	for i := 0; i < max; i++ {
		if !l.Allow(ctx, "k", max) {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		l.Hit(ctx, "k", time.Minute)
	}
	if l.Allow(ctx, "k", max) {
		t.Error("attempt past the limit should be denied")
	}
}

func TestWindowReset(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLimiter()

	for i := 0; i < 2; i++ {
		l.Hit(ctx, "k", time.Minute)
	}
	if l.Allow(ctx, "k", 2) {
		t.Fatal("limit should be reached")
	}

	clock.advance(61 * time.Second)
	if !l.Allow(ctx, "k", 2) {
		t.Error("counter should reset after the window expires")
	}
	// A hit after expiry starts a fresh window from zero.
	l.Hit(ctx, "k", time.Minute)
	if !l.Allow(ctx, "k", 2) {
		t.Error("fresh window should have count 1")
	}
}

func TestWindowExpiryFixedFromFirstHit(t *testing.T) {
	// Later hits must not push the window's expiry out.
	ctx := context.Background()
	l, clock := newTestLimiter()

	l.Hit(ctx, "k", time.Minute)
	clock.advance(45 * time.Second)
	l.Hit(ctx, "k", time.Minute)
	clock.advance(30 * time.Second) // 75s after first hit

	if !l.Allow(ctx, "k", 2) {
		t.Error("window armed by the first hit should have expired")
	}
}

func TestNamespacesIndependent(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter()

	secretKey := SecretKey("abc")
	clientKey := ClientKey("10.0.0.1")
	for i := 0; i < 5; i++ {
		l.Hit(ctx, secretKey, time.Minute)
	}
	if l.Allow(ctx, secretKey, 5) {
		t.Error("per-secret counter should be exhausted")
	}
	if !l.Allow(ctx, clientKey, 20) {
		t.Error("per-client counter should be untouched")
	}
}

func TestMemoryCountersConcurrent(t *testing.T) {
	ctx := context.Background()
	counters := NewMemoryCounters()

	const workers = 16
	const hitsEach = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < hitsEach; j++ {
				counters.Incr(ctx, "k", time.Hour)
			}
		}()
	}
	wg.Wait()

	n, err := counters.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if n != workers*hitsEach {
		t.Errorf("expected %d hits, got %d", workers*hitsEach, n)
	}
}
