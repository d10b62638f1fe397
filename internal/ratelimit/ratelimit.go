// Package ratelimit implements fixed-window attempt counting for the reveal
// path. Two namespaces are used: a low per-secret ceiling and a higher
// per-client-address ceiling with a longer window. Counters are ephemeral;
// losing them under load weakens throttling but never single-use correctness,
// so the limiter fails open on counter-store errors.
package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// CounterStore is the backing store for window counters. A memory store
// serves a single process; a redis store serves multi-instance deployments.
type CounterStore interface {
	// Incr increments key and returns the new count. The first increment of a
	// window arms its expiry; later increments leave it untouched.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)

	// Get returns the current count for key, 0 if absent or expired.
	Get(ctx context.Context, key string) (int64, error)
}

// Limiter applies fixed-window limits on top of a CounterStore.
type Limiter struct {
	store CounterStore
}

func New(store CounterStore) *Limiter {
	return &Limiter{store: store}
}

// Allow reports whether another attempt for key is permitted. Once the count
// reaches maxAttempts within the current window it returns false until the
// window expires and the counter resets.
func (l *Limiter) Allow(ctx context.Context, key string, maxAttempts int) bool {
	n, err := l.store.Get(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("rate limit check failed")
		return true
	}
	return n < int64(maxAttempts)
}

// Hit records an attempt against key.
func (l *Limiter) Hit(ctx context.Context, key string, window time.Duration) {
	if _, err := l.store.Incr(ctx, key, window); err != nil {
		log.Error().Err(err).Str("key", key).Msg("rate limit hit failed")
	}
}

// SecretKey names the per-secret counter namespace.
func SecretKey(id string) string {
	return "decrypt:secret:" + id
}

// ClientKey names the per-client-address counter namespace.
func ClientKey(addr string) string {
	return "decrypt:ip:" + addr
}
