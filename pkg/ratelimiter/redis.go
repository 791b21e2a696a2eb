package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "relay:ratelimit:"

// RedisConfig describes a fixed window budget of Limit requests per Window.
type RedisConfig struct {
	Limit  int           `env:"RATE_LIMIT_REDIS_LIMIT" envDefault:"100" yaml:"limit"`
	Window time.Duration `env:"RATE_LIMIT_REDIS_WINDOW" envDefault:"1m" yaml:"window"`
	Prefix string        `env:"RATE_LIMIT_REDIS_PREFIX" yaml:"prefix"`
}

// Redis is a Limiter shared by every process using the same Redis keyspace.
type Redis struct {
	client redis.Cmdable
	cfg    RedisConfig
	now    func() time.Time
}

// NewRedis creates a fixed window limiter on client.
func NewRedis(client redis.Cmdable, cfg RedisConfig) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis client is nil", ErrInvalidConfig)
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidConfig, cfg.Limit)
	}
	if cfg.Window < time.Millisecond {
		return nil, fmt.Errorf("%w: window must be at least 1ms, got %s", ErrInvalidConfig, cfg.Window)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, cfg: cfg, now: time.Now}, nil
}

// Allow counts one request for key in the current window.
func (r *Redis) Allow(ctx context.Context, key string) (Result, error) {
	if key == "" {
		return Result{}, ErrEmptyKey
	}

	now := r.now()
	window := now.UnixMilli() / r.cfg.Window.Milliseconds()
	windowEnd := time.UnixMilli((window + 1) * r.cfg.Window.Milliseconds())
	k := r.cfg.Prefix + key + ":" + strconv.FormatInt(window, 10)

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.PExpire(ctx, k, r.cfg.Window)
		return nil
	})
	if err != nil {
		return Result{}, errors.Join(ErrStoreUnavailable, err)
	}

	count := int(incr.Val())
	res := Result{
		Limit:     r.cfg.Limit,
		Remaining: max(r.cfg.Limit-count, 0),
	}
	if count > r.cfg.Limit {
		res.RetryAfter = windowEnd.Sub(now)
		return res, nil
	}
	res.Allowed = true
	return res, nil
}

// Connect opens a client for a redis:// or rediss:// URL and verifies it
// with PING.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	if !strings.HasPrefix(url, "redis://") && !strings.HasPrefix(url, "rediss://") {
		return nil, fmt.Errorf("%w: unsupported redis url %q", ErrInvalidConfig, url)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return client, nil
}
