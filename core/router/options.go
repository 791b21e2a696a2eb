package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/relay/core/pipeline"
	"github.com/dmitrymomot/relay/core/response"
)

// Option configures a Router.
type Option func(*Router)

// WithPipeline sets the middleware pipeline shared by every route.
func WithPipeline(p *pipeline.Pipeline) Option {
	return func(r *Router) {
		if p != nil {
			r.pipeline = p
		}
	}
}

// WithFinalizer sets the finalizer used to wrap every response.
func WithFinalizer(f *response.Finalizer) Option {
	return func(r *Router) {
		if f != nil {
			r.finalizer = f
		}
	}
}

// WithLogger sets the router logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDebug logs every attached route and every dispatched request.
// Logging on the request path costs throughput; keep it off in production.
func WithDebug(debug bool) Option {
	return func(r *Router) {
		r.debug = debug
	}
}

// WithFallbackStatus sets the status answered for unmatched paths and
// verbs. Defaults to 404; 501 is the other common choice.
func WithFallbackStatus(status int) Option {
	return func(r *Router) {
		if status >= 100 && status <= 599 {
			r.fallbackStatus = status
		}
	}
}

// WithRequestTimeout bounds the whole pipeline and handler run. Zero
// disables the deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d >= 0 {
			r.requestTimeout = d
		}
	}
}

const defaultFallbackStatus = http.StatusNotFound
