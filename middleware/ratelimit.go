package middleware

import (
	"fmt"
	"math"
	"strconv"

	"github.com/dmitrymomot/relay/core/pipeline"
	"github.com/dmitrymomot/relay/core/request"
	"github.com/dmitrymomot/relay/core/response"
	"github.com/dmitrymomot/relay/pkg/ratelimiter"
)

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	Limiter ratelimiter.Limiter
	// Key derives the limiter key. Defaults to the address stored by
	// ClientIP, or the peer host when ClientIP did not run.
	Key func(req *request.Context) string
	// Headers adds X-RateLimit-Limit and X-RateLimit-Remaining.
	Headers bool
}

// RateLimit rejects requests over budget with 429 and a Retry-After
// header. Limiter failures fail the pipeline.
func RateLimit(cfg RateLimitConfig) (pipeline.Step, error) {
	if cfg.Limiter == nil {
		return nil, ErrNilLimiter
	}
	if cfg.Key == nil {
		cfg.Key = func(req *request.Context) string {
			if ip, ok := GetClientIP(req); ok {
				return ip
			}
			return resolveIP(req.Snapshot, false)
		}
	}

	return func(res *response.Handle, req *request.Context) error {
		result, err := cfg.Limiter.Allow(req, cfg.Key(req))
		if err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}

		if cfg.Headers {
			res.AddHeader("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			res.AddHeader("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		if result.Allowed {
			return nil
		}

		retry := int(math.Ceil(result.RetryAfter.Seconds()))
		res.AddHeader("Retry-After", strconv.Itoa(max(retry, 1)))
		return res.Send(ErrRateLimited.Status, ErrRateLimited)
	}, nil
}
