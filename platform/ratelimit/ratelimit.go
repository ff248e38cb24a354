// Package ratelimit provides sliding-window request counters.
// A process-local counter serves single-instance deployments and tests; the
// Redis counter shares the window across instances.
// This is part of the platform layer and contains no business logic.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	RetryIn   time.Duration
}

// Counter counts requests per key inside a sliding window.
type Counter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// MemoryCounter is a process-local sliding-window counter.
type MemoryCounter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewMemoryCounter creates a counter allowing limit requests per window.
func NewMemoryCounter(limit int, window time.Duration) *MemoryCounter {
	return &MemoryCounter{
		limit:  limit,
		window: window,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

// Allow records a hit for key if it fits in the current window.
func (m *MemoryCounter) Allow(_ context.Context, key string) (Decision, error) {
	now := m.now()
	cutoff := now.Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.hits[key][:0]
	for _, at := range m.hits[key] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}

	if len(kept) >= m.limit {
		m.hits[key] = kept
		retry := time.Duration(0)
		if len(kept) > 0 {
			retry = kept[0].Add(m.window).Sub(now)
		}
		return Decision{Allowed: false, RetryIn: retry}, nil
	}

	kept = append(kept, now)
	m.hits[key] = kept
	return Decision{Allowed: true, Remaining: m.limit - len(kept)}, nil
}

// Prune drops keys with no hits inside the window. Call periodically on
// long-running processes.
func (m *MemoryCounter) Prune() {
	cutoff := m.now().Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, hits := range m.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(m.hits, key)
		}
	}
}
