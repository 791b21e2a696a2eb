package ratelimiter_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relay/pkg/ratelimiter"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestMemoryAllow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("rejects after burst", func(t *testing.T) {
		t.Parallel()

		clk := newClock()
		l := ratelimiter.NewMemory(ratelimiter.Config{Rate: 1, Burst: 3}, ratelimiter.WithClock(clk.Now))

		for i := range 3 {
			res, err := l.Allow(ctx, "10.0.0.1")
			require.NoError(t, err)
			assert.True(t, res.Allowed, "request %d", i)
			assert.Equal(t, 2-i, res.Remaining)
			assert.Equal(t, 3, res.Limit)
		}

		res, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.InDelta(t, float64(time.Second), float64(res.RetryAfter), float64(time.Millisecond))
	})

	t.Run("refills over time", func(t *testing.T) {
		t.Parallel()

		clk := newClock()
		l := ratelimiter.NewMemory(ratelimiter.Config{Rate: 2, Burst: 1}, ratelimiter.WithClock(clk.Now))

		res, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, res.Allowed)

		res, err = l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.False(t, res.Allowed)

		clk.Advance(500 * time.Millisecond)
		res, err = l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})

	t.Run("keys are independent", func(t *testing.T) {
		t.Parallel()

		clk := newClock()
		l := ratelimiter.NewMemory(ratelimiter.Config{Rate: 1, Burst: 1}, ratelimiter.WithClock(clk.Now))

		res, err := l.Allow(ctx, "a")
		require.NoError(t, err)
		assert.True(t, res.Allowed)

		res, err = l.Allow(ctx, "b")
		require.NoError(t, err)
		assert.True(t, res.Allowed)

		assert.Equal(t, 2, l.Stats().Active)
	})

	t.Run("per window", func(t *testing.T) {
		t.Parallel()

		clk := newClock()
		l := ratelimiter.NewMemory(ratelimiter.Config{Rate: 1, Burst: 1, Per: time.Minute}, ratelimiter.WithClock(clk.Now))

		_, err := l.Allow(ctx, "k")
		require.NoError(t, err)

		res, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.InDelta(t, float64(time.Minute), float64(res.RetryAfter), float64(time.Millisecond))
	})

	t.Run("empty key", func(t *testing.T) {
		t.Parallel()

		l := ratelimiter.NewMemory(ratelimiter.Config{})
		_, err := l.Allow(ctx, "")
		assert.ErrorIs(t, err, ratelimiter.ErrEmptyKey)
	})
}

func TestMemoryCleanup(t *testing.T) {
	t.Parallel()

	clk := newClock()
	l := ratelimiter.NewMemory(ratelimiter.Config{Rate: 1, Burst: 1},
		ratelimiter.WithClock(clk.Now),
		ratelimiter.WithStaleAfter(time.Minute),
	)

	_, err := l.Allow(context.Background(), "old")
	require.NoError(t, err)
	clk.Advance(2 * time.Minute)
	_, err = l.Allow(context.Background(), "fresh")
	require.NoError(t, err)

	assert.Equal(t, 1, l.Cleanup())

	stats := l.Stats()
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, int64(2), stats.Created)
	assert.Equal(t, int64(1), stats.Removed)
}

func TestMemoryStartStop(t *testing.T) {
	t.Parallel()

	l := ratelimiter.NewMemory(ratelimiter.Config{}, ratelimiter.WithCleanupInterval(10*time.Millisecond))
	assert.ErrorIs(t, l.Stop(), ratelimiter.ErrNotStarted)

	errc := make(chan error, 1)
	go func() { errc <- l.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		return l.Stop() == nil
	}, time.Second, 5*time.Millisecond)
	assert.NoError(t, <-errc)
}
