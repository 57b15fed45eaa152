package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// MemoryStore keeps windows in process memory. Each key is locked on its own
// so calls to different endpoints never wait for each other.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window)}
}

func (m *MemoryStore) entry(key string, resetAt time.Time) *window {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[key]
	if !ok {
		w = &window{resetAt: resetAt}
		m.windows[key] = w
	}
	return w
}

func (m *MemoryStore) Hit(_ context.Context, key string, span time.Duration, now time.Time) (int, time.Time, error) {
	w := m.entry(key, now.Add(span))

	w.mu.Lock()
	defer w.mu.Unlock()

	if now.After(w.resetAt) {
		w.count = 0
		w.resetAt = now.Add(span)
	}
	w.count++
	return w.count, w.resetAt, nil
}

func (m *MemoryStore) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.windows, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ResetAll(_ context.Context) error {
	m.mu.Lock()
	m.windows = make(map[string]*window)
	m.mu.Unlock()
	return nil
}

// Len reports how many endpoints currently hold a window.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

func (m *MemoryStore) Close() error { return nil }
