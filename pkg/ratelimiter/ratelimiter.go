package ratelimiter

import (
	"context"
	"fmt"
	"time"
)

// Limiter decides whether one more request for key fits the budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Result describes a single decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is how long a rejected caller should wait. Zero when allowed.
	RetryAfter time.Duration
}

// Config describes a budget of Rate requests per Per, with bursts of up to
// Burst requests.
type Config struct {
	Rate  float64       `env:"RATE_LIMIT_RATE" envDefault:"5" yaml:"rate"`
	Burst int           `env:"RATE_LIMIT_BURST" envDefault:"10" yaml:"burst"`
	Per   time.Duration `env:"RATE_LIMIT_PER" envDefault:"1s" yaml:"per"`
}

func (c Config) withDefaults() Config {
	if c.Per <= 0 {
		c.Per = time.Second
	}
	return c
}

func (c Config) validate() error {
	if c.Rate <= 0 {
		return fmt.Errorf("%w: rate must be positive, got %v", ErrInvalidConfig, c.Rate)
	}
	if c.Burst <= 0 {
		return fmt.Errorf("%w: burst must be positive, got %d", ErrInvalidConfig, c.Burst)
	}
	return nil
}
