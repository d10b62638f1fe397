package ratelimit

import (
	"context"
	"sync"
	"time"
)

var _ CounterStore = (*MemoryCounters)(nil)

// MemoryCounters is an in-process CounterStore. Expired windows are dropped
// lazily on access.
type MemoryCounters struct {
	mu      sync.Mutex
	windows map[string]*window

	now func() time.Time
}

type window struct {
	count     int64
	expiresAt time.Time
}

func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (m *MemoryCounters) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || now.After(w.expiresAt) {
		w = &window{expiresAt: now.Add(ttl)}
		m.windows[key] = w
	}
	w.count++
	return w.count, nil
}

func (m *MemoryCounters) Get(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok {
		return 0, nil
	}
	if m.now().After(w.expiresAt) {
		delete(m.windows, key)
		return 0, nil
	}
	return w.count, nil
}
