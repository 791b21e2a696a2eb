package response

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/dmitrymomot/relay/core/transport"
)

const (
	DefaultServerName = "relay"
	DefaultPoweredBy  = "relay"

	// DefaultSendCache is the Cache-Control max-age written by Send.
	DefaultSendCache = 0
	// DefaultRenderCache is the Cache-Control max-age written by Render.
	DefaultRenderCache = time.Hour
)

// Finalizer holds the defaults shared by every Handle it wraps. It is
// immutable once constructed and safe for concurrent use.
type Finalizer struct {
	serverName  string
	poweredBy   string
	branding    bool
	sendCache   time.Duration
	renderCache time.Duration
	now         func() time.Time
	observer    Observer
	logger      *slog.Logger
}

// Option configures a Finalizer.
type Option func(*Finalizer)

// WithBranding sets the Server and X-Powered-By values. Empty values
// skip the corresponding header.
func WithBranding(serverName, poweredBy string) Option {
	return func(f *Finalizer) {
		f.serverName = serverName
		f.poweredBy = poweredBy
	}
}

// WithoutBranding disables the Server and X-Powered-By headers.
func WithoutBranding() Option {
	return func(f *Finalizer) {
		f.branding = false
	}
}

// WithSendCache overrides the max-age written by Send.
func WithSendCache(d time.Duration) Option {
	return func(f *Finalizer) {
		if d >= 0 {
			f.sendCache = d
		}
	}
}

// WithRenderCache overrides the max-age written by Render.
func WithRenderCache(d time.Duration) Option {
	return func(f *Finalizer) {
		if d >= 0 {
			f.renderCache = d
		}
	}
}

// WithClock replaces time.Now for the Date header.
func WithClock(now func() time.Time) Option {
	return func(f *Finalizer) {
		if now != nil {
			f.now = now
		}
	}
}

// WithObserver reports every terminal operation to o.
func WithObserver(o Observer) Option {
	return func(f *Finalizer) {
		if o != nil {
			f.observer = o
		}
	}
}

// WithLogger sets the logger used for suppressed and failed writes.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Finalizer) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFinalizer creates a Finalizer with branding enabled, no caching for
// Send and a one hour cache for Render.
func NewFinalizer(opts ...Option) *Finalizer {
	f := &Finalizer{
		serverName:  DefaultServerName,
		poweredBy:   DefaultPoweredBy,
		branding:    true,
		sendCache:   DefaultSendCache,
		renderCache: DefaultRenderCache,
		now:         time.Now,
		observer:    nopObserver{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Wrap takes ownership of res for one request. It subscribes to the
// transport abort notification before returning, so an abort at any later
// point suppresses the terminal write. The returned Handle's context is
// derived from ctx and cancelled on abort and on Release.
func (f *Finalizer) Wrap(ctx context.Context, method string, res transport.Response) *Handle {
	hctx, cancel := context.WithCancelCause(ctx)
	h := &Handle{
		f:      f,
		tr:     res,
		method: method,
		ctx:    hctx,
		cancel: cancel,
		start:  f.now(),
	}
	res.OnAborted(h.abort)
	return h
}
