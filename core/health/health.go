package health

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/relay/core/logger"
	"github.com/dmitrymomot/relay/core/request"
	"github.com/dmitrymomot/relay/core/response"
	"github.com/dmitrymomot/relay/core/router"
)

// DefaultTimeout bounds a readiness probe.
const DefaultTimeout = 2 * time.Second

// Check is a named dependency probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Liveness answers "ALIVE" on GET and HEAD without checking dependencies.
func Liveness() router.Resource {
	return router.ResourceFunc(func(v *router.Verbs) {
		h := func(res *response.Handle, _ *request.Context) error {
			return res.Send(http.StatusOK, "ALIVE", response.WithCache(0))
		}
		v.Get(h).Head(h)
	})
}

// Readiness answers "READY" when every check passes.
func Readiness(log *slog.Logger, checks ...Check) router.Resource {
	return ReadinessWithTimeout(log, DefaultTimeout, checks...)
}

// ReadinessWithTimeout is Readiness with a custom probe timeout.
func ReadinessWithTimeout(log *slog.Logger, timeout time.Duration, checks ...Check) router.Resource {
	if log == nil {
		log = logger.Nop()
	}
	return router.ResourceFunc(func(v *router.Verbs) {
		v.Get(func(res *response.Handle, req *request.Context) error {
			failed := run(req, log, timeout, checks)
			if len(failed) > 0 {
				return res.Send(http.StatusServiceUnavailable,
					response.ErrServiceUnavailable.WithDetails(map[string]any{"failed": failed}),
					response.WithCache(0))
			}
			return res.Send(http.StatusOK, "READY", response.WithCache(0))
		})
	})
}

func run(ctx context.Context, log *slog.Logger, timeout time.Duration, checks []Check) []string {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var (
		mu     sync.Mutex
		failed []string
	)
	var g errgroup.Group
	for _, c := range checks {
		g.Go(func() error {
			if err := c.Fn(ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed",
					logger.Component("health"),
					slog.String("check", c.Name),
					logger.Error(err),
				)
				mu.Lock()
				failed = append(failed, c.Name)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	slices.Sort(failed)
	return failed
}
