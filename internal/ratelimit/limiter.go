// Package ratelimit implements fixed-window request limiting keyed by user or client address.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Store counts hits per key within a window.
type Store interface {
	// Hit increments the counter for key, starting a new window when the
	// previous one has elapsed, and reports the updated count and window end.
	Hit(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
}

// Policy bounds how many requests a key may make per window.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window resets, never less than one.
func (d Decision) RetryAfter(now time.Time) int {
	secs := int(d.ResetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// ErrInvalidPolicy is returned for policies with a non-positive limit or window.
var ErrInvalidPolicy = errors.New("ratelimit: policy limit and window must be positive")

// Limiter applies policies against a Store.
type Limiter struct {
	store Store
}

// NewLimiter constructs a Limiter.
func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store}
}

// Allow records a hit for key under policy and reports whether it fits the limit.
func (l *Limiter) Allow(ctx context.Context, policy Policy, key string) (Decision, error) {
	if policy.Limit <= 0 || policy.Window <= 0 {
		return Decision{}, ErrInvalidPolicy
	}

	count, resetAt, err := l.store.Hit(ctx, policy.Name+":"+key, policy.Window)
	if err != nil {
		return Decision{}, err
	}

	remaining := policy.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= policy.Limit,
		Limit:     policy.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
