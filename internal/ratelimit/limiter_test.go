package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestLimiterAllowsUpToLimitThenRejects(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	limiter := NewLimiter(NewMemoryStore(WithClock(clock.Now), WithSweepProbability(0)))
	policy := Policy{Name: "write", Limit: 3, Window: time.Minute}
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := limiter.Allow(ctx, policy, "user:a")
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.Equal(t, 3-i, d.Remaining)
		require.Equal(t, clock.now.Add(time.Minute), d.ResetAt)
	}

	d, err := limiter.Allow(ctx, policy, "user:a")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Zero(t, d.Remaining)
	require.Equal(t, 60, d.RetryAfter(clock.now))

	other, err := limiter.Allow(ctx, policy, "user:b")
	require.NoError(t, err)
	require.True(t, other.Allowed)

	clock.Advance(time.Minute)
	d, err = limiter.Allow(ctx, policy, "user:a")
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, 2, d.Remaining)
}

func TestLimiterSeparatesPolicies(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(WithSweepProbability(0)))
	ctx := context.Background()

	_, err := limiter.Allow(ctx, Policy{Name: "read", Limit: 1, Window: time.Minute}, "user:a")
	require.NoError(t, err)
	d, err := limiter.Allow(ctx, Policy{Name: "write", Limit: 1, Window: time.Minute}, "user:a")
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestLimiterRejectsInvalidPolicy(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore())
	_, err := limiter.Allow(context.Background(), Policy{Name: "x"}, "k")
	require.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestRetryAfterHasFloorOfOneSecond(t *testing.T) {
	now := time.Now()
	require.Equal(t, 1, Decision{ResetAt: now.Add(100 * time.Millisecond)}.RetryAfter(now))
	require.Equal(t, 1, Decision{ResetAt: now.Add(-time.Second)}.RetryAfter(now))
}

func TestMemoryStoreSweepRemovesExpiredEntries(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(WithClock(clock.Now), WithSweepProbability(0))
	ctx := context.Background()

	_, _, err := store.Hit(ctx, "short", time.Second)
	require.NoError(t, err)
	_, _, err = store.Hit(ctx, "long", time.Hour)
	require.NoError(t, err)
	require.Equal(t, 2, store.Len())

	clock.Advance(2 * time.Second)
	require.Equal(t, 1, store.Sweep())
	require.Equal(t, 1, store.Len())
}

func TestMemoryStoreProbabilisticSweepRunsOnHit(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(WithClock(clock.Now), WithSweepProbability(0.5))
	rolls := []float64{0.9, 0.9, 0.1}
	store.roll = func() float64 {
		r := rolls[0]
		rolls = rolls[1:]
		return r
	}
	ctx := context.Background()

	_, _, _ = store.Hit(ctx, "a", time.Second)
	_, _, _ = store.Hit(ctx, "b", time.Second)
	clock.Advance(5 * time.Second)

	_, _, err := store.Hit(ctx, "c", time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())
}
