package ratelimiter

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultCleanupInterval = 5 * time.Minute
	DefaultStaleAfter      = time.Hour
)

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Memory is an in-process Limiter with one token bucket per key.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry

	limit rate.Limit
	burst int

	cleanupInterval time.Duration
	staleAfter      time.Duration
	now             func() time.Time
	logger          *slog.Logger

	cancel  context.CancelFunc
	done    chan struct{}
	created atomic.Int64
	removed atomic.Int64
}

// MemoryOption configures a Memory limiter.
type MemoryOption func(*Memory)

// WithCleanupInterval sets how often idle buckets are evicted.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(m *Memory) {
		if d > 0 {
			m.cleanupInterval = d
		}
	}
}

// WithStaleAfter sets how long a bucket may stay idle before eviction.
func WithStaleAfter(d time.Duration) MemoryOption {
	return func(m *Memory) {
		if d > 0 {
			m.staleAfter = d
		}
	}
}

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger for cleanup events.
func WithLogger(logger *slog.Logger) MemoryOption {
	return func(m *Memory) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMemory creates an in-memory limiter. A zero Rate or Burst falls back
// to 5 requests per second with a burst of 10.
func NewMemory(cfg Config, opts ...MemoryOption) *Memory {
	cfg = cfg.withDefaults()
	if cfg.Rate <= 0 {
		cfg.Rate = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}

	m := &Memory{
		entries:         make(map[string]*entry),
		limit:           rate.Limit(cfg.Rate / cfg.Per.Seconds()),
		burst:           cfg.Burst,
		cleanupInterval: DefaultCleanupInterval,
		staleAfter:      DefaultStaleAfter,
		now:             time.Now,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Allow consumes one token for key.
func (m *Memory) Allow(_ context.Context, key string) (Result, error) {
	if key == "" {
		return Result{}, ErrEmptyKey
	}

	now := m.now()
	l := m.get(key, now)

	res := Result{Limit: m.burst}
	r := l.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		res.RetryAfter = delay
		return res, nil
	}

	res.Allowed = true
	res.Remaining = int(math.Floor(l.TokensAt(now)))
	return res, nil
}

func (m *Memory) get(key string, now time.Time) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.entries[key] = e
		m.created.Add(1)
	}
	e.lastAccess = now
	return e.limiter
}

// Start evicts idle buckets every cleanup interval until ctx is cancelled
// or Stop is called. It blocks.
func (m *Memory) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()
	defer close(done)

	m.logger.DebugContext(ctx, "rate limiter cleanup started",
		slog.Duration("interval", m.cleanupInterval))

	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Cleanup(); n > 0 {
				m.logger.DebugContext(ctx, "rate limiter evicted idle buckets", slog.Int("count", n))
			}
		}
	}
}

// Stop ends a running Start and waits for it to return.
func (m *Memory) Stop() error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return ErrNotStarted
	}
	cancel()
	<-done
	return nil
}

// Cleanup evicts buckets idle for longer than the stale threshold and
// returns how many were removed.
func (m *Memory) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, e := range m.entries {
		if now.Sub(e.lastAccess) > m.staleAfter {
			delete(m.entries, key)
			removed++
		}
	}
	m.removed.Add(int64(removed))
	return removed
}

// MemoryStats reports bucket bookkeeping.
type MemoryStats struct {
	Active  int
	Created int64
	Removed int64
}

func (m *Memory) Stats() MemoryStats {
	m.mu.Lock()
	active := len(m.entries)
	m.mu.Unlock()

	return MemoryStats{
		Active:  active,
		Created: m.created.Load(),
		Removed: m.removed.Load(),
	}
}
