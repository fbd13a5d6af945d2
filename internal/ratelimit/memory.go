package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultSweepProbability is the chance that a hit triggers removal of expired windows.
const DefaultSweepProbability = 0.01

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps counters in a process-local map. Expired entries are
// removed by a sweep that runs on a random fraction of hits.
type MemoryStore struct {
	mu               sync.Mutex
	entries          map[string]*window
	sweepProbability float64
	now              func() time.Time
	roll             func() float64
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithSweepProbability overrides DefaultSweepProbability. Values outside [0,1] are clamped.
func WithSweepProbability(p float64) MemoryOption {
	return func(s *MemoryStore) {
		switch {
		case p < 0:
			p = 0
		case p > 1:
			p = 1
		}
		s.sweepProbability = p
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries:          make(map[string]*window),
		sweepProbability: DefaultSweepProbability,
		now:              time.Now,
		roll:             rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hit implements Store.
func (s *MemoryStore) Hit(_ context.Context, key string, d time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.sweepProbability > 0 && s.roll() < s.sweepProbability {
		s.sweepLocked(now)
	}

	w, ok := s.entries[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(d)}
		s.entries[key] = w
	}
	w.count++
	return w.count, w.resetAt, nil
}

// Sweep removes all expired windows and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

func (s *MemoryStore) sweepLocked(now time.Time) int {
	removed := 0
	for key, w := range s.entries {
		if !now.Before(w.resetAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
