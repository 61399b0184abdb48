// Package ratelimit implements per-key fixed-window request counting
// with pluggable storage: a sharded in-memory store for single-instance
// deployments and a Redis-backed store for multi-instance ones.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of an admission check.
type Result struct {
	// Allowed reports whether the request may proceed.
	Allowed bool
	// Limit is the configured ceiling for the window.
	Limit int
	// Remaining is the quota left in the current window, never negative.
	Remaining int
	// ResetAt is when the current window ends.
	ResetAt time.Time
}

// Store tracks request counts per key over fixed windows.
// Implementations must be safe for concurrent use.
type Store interface {
	// Take records one request against key and reports whether it is
	// within limit for the window containing now. The increment is never
	// rolled back: rejected requests keep counting, so a client cannot
	// reset its window by being rejected.
	Take(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error)

	// Close releases store resources.
	Close() error
}

// Limiter decides admission for (policy, key) pairs against a Store.
type Limiter struct {
	store Store
}

// New creates a limiter backed by the given store.
func New(store Store) *Limiter {
	return &Limiter{store: store}
}

// Admit performs the count-then-check admission for key. The request
// that tips the count over limit is itself rejected. Keys are expected
// to be namespaced by policy (e.g. "login:10.0.0.1") so that policies
// never share counters.
func (l *Limiter) Admit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	return l.store.Take(ctx, key, limit, window, now)
}

// Close closes the underlying store.
func (l *Limiter) Close() error {
	return l.store.Close()
}
