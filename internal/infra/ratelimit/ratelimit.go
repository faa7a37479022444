// Package ratelimit counts requests per caller in fixed windows.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of one hit.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Store counts hits per key. Implementations may be process-local or shared.
type Store interface {
	Hit(ctx context.Context, key string, now time.Time) (Decision, error)
	Reset(ctx context.Context, key string) error
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore is a process-local fixed-window counter. Counts are lost on
// restart and are not shared between processes.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*window
	limit   int
	period  time.Duration
}

func NewMemoryStore(limit int, period time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*window),
		limit:   limit,
		period:  period,
	}
}

// Hit counts one request for key. The window starts at the first hit and
// resets once now reaches resetAt.
func (m *MemoryStore) Hit(_ context.Context, key string, now time.Time) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.entries[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(m.period)}
		m.entries[key] = w
	}

	if w.count >= m.limit {
		return Decision{Allowed: false, Remaining: 0, ResetAt: w.resetAt}, nil
	}
	w.count++
	return Decision{Allowed: true, Remaining: m.limit - w.count, ResetAt: w.resetAt}, nil
}

func (m *MemoryStore) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Sweep evicts expired windows and returns how many were removed.
func (m *MemoryStore) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, w := range m.entries {
		if !now.Before(w.resetAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Len is the number of tracked keys.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
