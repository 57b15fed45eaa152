// Package ratelimit counts simulated calls per endpoint inside fixed windows.
//
// A window starts on the first counted call and is reset lazily: the next
// call strictly after resetAt opens a new window. Nothing expires on a timer.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/funnyzak/mockflow/internal/config"
	"github.com/funnyzak/mockflow/pkg/endpoint"
)

// Store persists window state. Hit must apply the reset rule and the
// increment atomically for one key.
type Store interface {
	// Hit counts one call for key at now and returns the new count and window end.
	Hit(ctx context.Context, key string, window time.Duration, now time.Time) (int, time.Time, error)
	// Reset forgets the window of key.
	Reset(ctx context.Context, key string) error
	// ResetAll forgets every window.
	ResetAll(ctx context.Context) error
	Close() error
}

// Decision is the outcome of one counted call.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Count     int       `json:"count"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// RetryAfter is the time left until the window resets, never negative.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if wait := d.ResetAt.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// Tracker applies rate-limit policies on top of a Store.
type Tracker struct {
	store Store
}

// NewTracker wraps store. A nil store gets a fresh MemoryStore.
func NewTracker(store Store) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{store: store}
}

// Check counts a call to endpointID. A nil or disabled policy allows the call
// without touching any state.
func (t *Tracker) Check(ctx context.Context, endpointID string, policy *endpoint.RateLimitPolicy, now time.Time) (Decision, error) {
	if policy == nil || !policy.Enabled {
		return Decision{Allowed: true}, nil
	}

	window := time.Duration(policy.WindowMs) * time.Millisecond
	count, resetAt, err := t.store.Hit(ctx, endpointID, window, now)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit hit %s: %w", endpointID, err)
	}

	remaining := policy.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= policy.Limit,
		Count:     count,
		Limit:     policy.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the window of one endpoint.
func (t *Tracker) Reset(ctx context.Context, endpointID string) error {
	return t.store.Reset(ctx, endpointID)
}

// ResetAll clears every window.
func (t *Tracker) ResetAll(ctx context.Context) error {
	return t.store.ResetAll(ctx)
}

// Close releases the underlying store.
func (t *Tracker) Close() error {
	return t.store.Close()
}

// OpenStore builds the store selected by cfg.Backend.
func OpenStore(ctx context.Context, cfg config.RateLimitConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		store, err := DialRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported rate limit backend %q", cfg.Backend)
	}
}
