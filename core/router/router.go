package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrymomot/relay/core/logger"
	"github.com/dmitrymomot/relay/core/pipeline"
	"github.com/dmitrymomot/relay/core/request"
	"github.com/dmitrymomot/relay/core/response"
	"github.com/dmitrymomot/relay/core/static"
	"github.com/dmitrymomot/relay/core/transport"
)

// Route describes a registered route.
type Route struct {
	Method  string
	Pattern string
	Static  bool
}

// Router registers resources on a transport. Registration methods are
// safe for concurrent use; dispatch only reads state frozen at startup.
type Router struct {
	transport      transport.Transport
	pipeline       *pipeline.Pipeline
	finalizer      *response.Finalizer
	logger         *slog.Logger
	debug          bool
	fallbackStatus int
	requestTimeout time.Duration

	mu      sync.Mutex
	frozen  bool
	routes  []Route
	statics map[string]struct{}
}

// New creates a router on t and installs its fallback handler.
func New(t transport.Transport, opts ...Option) *Router {
	r := &Router{
		transport:      t,
		pipeline:       pipeline.New(),
		finalizer:      response.NewFinalizer(),
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		fallbackStatus: defaultFallbackStatus,
		statics:        make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	t.Fallback(r.dispatch("", r.fallback))
	return r
}

// Use appends middleware steps to the pipeline.
func (r *Router) Use(steps ...pipeline.Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrFrozen
	}
	return r.pipeline.Use(steps...)
}

// AddResource registers one transport route per verb res declares.
func (r *Router) AddResource(pattern string, res Resource) error {
	if res == nil {
		return ErrNilResource
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrFrozen
	}

	v := newVerbs()
	res.Register(v)
	if err := errors.Join(v.errs...); err != nil {
		return fmt.Errorf("resource %s: %w", pattern, err)
	}
	if len(v.order) == 0 {
		return fmt.Errorf("%w: %s", ErrNoVerbs, pattern)
	}
	for _, m := range v.order {
		if r.taken(m, pattern) {
			return fmt.Errorf("%w: %s %s", ErrDuplicateRoute, m, pattern)
		}
	}

	for _, m := range v.order {
		if err := r.transport.Handle(m, pattern, r.dispatch(pattern, v.handlers[m])); err != nil {
			return fmt.Errorf("register %s %s: %w", m, pattern, err)
		}
		r.routes = append(r.routes, Route{Method: m, Pattern: pattern})

		if r.debug {
			r.logger.Debug("resource attached",
				logger.Component("router"),
				logger.Method(m),
				logger.Route(pattern),
			)
		}
	}

	return nil
}

// ServeStatic loads dir into memory and mounts every file under base.
// Each base path can be served once.
func (r *Router) ServeStatic(ctx context.Context, dir, base string) error {
	if base == "" || base[0] != '/' {
		return fmt.Errorf("%w: %q", static.ErrInvalidBase, base)
	}
	base = path.Clean(base)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrFrozen
	}
	if _, dup := r.statics[base]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateBase, base)
	}

	idx, err := static.Load(ctx, dir, base)
	if err != nil {
		return err
	}

	type mount struct {
		route string
		entry static.Entry
	}
	var mounts []mount
	for _, e := range idx.Entries() {
		if !literalRoute(e.Route) {
			r.logger.Warn("static file skipped: name is a route pattern",
				logger.Component("router"),
				logger.Route(e.Route),
			)
			continue
		}
		mounts = append(mounts, mount{e.Route, e})
		if e.Route != "/" && isDirAlias(idx, e.Route) {
			mounts = append(mounts, mount{e.Route + "/", e})
		}
	}

	// check everything first so a conflict leaves no partial mount
	for _, m := range mounts {
		for _, verb := range staticVerbs {
			if r.taken(verb, m.route) {
				return fmt.Errorf("%w: static %s %s", ErrDuplicateRoute, verb, m.route)
			}
		}
	}

	for _, m := range mounts {
		h := serveEntry(m.entry)
		for _, verb := range staticVerbs {
			if err := r.transport.Handle(verb, m.route, r.dispatch(m.route, h)); err != nil {
				return fmt.Errorf("register static %s: %w", m.route, err)
			}
			r.routes = append(r.routes, Route{Method: verb, Pattern: m.route, Static: true})
		}
	}
	r.statics[base] = struct{}{}

	if r.debug {
		r.logger.Debug("static directory attached",
			logger.Component("router"),
			logger.Route(base),
			logger.Count("files", idx.Len()),
		)
	}

	return nil
}

// Freeze rejects further registration and freezes the pipeline.
func (r *Router) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
	r.pipeline.Freeze()
}

// Frozen reports whether Freeze was called.
func (r *Router) Frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frozen
}

// Routes returns the registered routes sorted by pattern and method.
func (r *Router) Routes() []Route {
	r.mu.Lock()
	rts := slices.Clone(r.routes)
	r.mu.Unlock()

	slices.SortFunc(rts, func(a, b Route) int {
		if c := strings.Compare(a.Pattern, b.Pattern); c != 0 {
			return c
		}
		return strings.Compare(a.Method, b.Method)
	})
	return rts
}

// Transport returns the underlying transport.
func (r *Router) Transport() transport.Transport {
	return r.transport
}

func (r *Router) dispatch(pattern string, h HandlerFunc) transport.Handler {
	return func(tres transport.Response, treq transport.Request) {
		ctx := tres.Context()
		if r.requestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.requestTimeout)
			defer cancel()
		}

		res := r.finalizer.Wrap(ctx, treq.Method(), tres)
		defer res.Release()

		req := request.NewContext(res.Context(), request.Build(treq, pattern))

		if r.debug {
			r.logger.DebugContext(req, "request",
				logger.Remote(req.RemoteAddr),
				logger.Method(req.Method),
				logger.Path(req.URL),
				logger.Route(pattern),
			)
		}

		defer func() {
			if v := recover(); v != nil {
				err := panicError{value: v, stack: debug.Stack()}
				r.logger.ErrorContext(req, "panic recovered",
					logger.Error(err),
					logger.Key("stack", string(err.stack)),
				)
				r.fail(res, req, err)
			}
		}()

		if err := r.pipeline.Run(res, req); err != nil {
			r.fail(res, req, err)
			return
		}
		if res.Closed() {
			return
		}

		if err := h(res, req); err != nil {
			r.fail(res, req, err)
			return
		}
		if !res.Closed() {
			r.fail(res, req, ErrNoResponse)
		}
	}
}

func (r *Router) fallback(res *response.Handle, _ *request.Context) error {
	status := r.fallbackStatus
	return res.Send(status, fmt.Sprintf("%d %s", status, http.StatusText(status)))
}

// fail answers err unless the response is already closed. Errors with a
// StatusCode in the 4xx or 5xx range keep it, everything else is a 500.
func (r *Router) fail(res *response.Handle, req *request.Context, err error) {
	if res.Closed() {
		r.logger.DebugContext(req, "error after response closed", logger.Error(err))
		return
	}

	status := http.StatusInternalServerError
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		if s := sc.StatusCode(); s >= 400 && s <= 599 {
			status = s
		}
	}

	var (
		body    any
		rerr    response.Error
		perr    panicError
		stepErr *pipeline.StepError
	)
	switch {
	case errors.As(err, &perr):
		body = http.StatusText(status)
	case errors.As(err, &rerr) && rerr.Status == status:
		body = rerr
	case errors.As(err, &stepErr):
		body = stepErr.Err.Error()
	default:
		body = err.Error()
	}

	if status >= http.StatusInternalServerError {
		r.logger.ErrorContext(req, "request failed",
			logger.Method(req.Method),
			logger.Path(req.URL),
			logger.StatusCode(status),
			logger.Error(err),
		)
	}

	if sendErr := res.Send(status, body); sendErr != nil {
		r.logger.WarnContext(req, "failed to send error response", logger.Error(sendErr))
	}
}

func serveEntry(e static.Entry) HandlerFunc {
	return func(res *response.Handle, _ *request.Context) error {
		return res.Send(http.StatusOK, e.Content,
			response.WithContentType(e.MimeType),
			response.WithCache(response.DefaultRenderCache),
		)
	}
}

// literalRoute reports whether route contains no segment the transport
// would read as a parameter or wildcard.
var staticVerbs = []string{http.MethodGet, http.MethodHead}

// isDirAlias reports whether route is the directory alias of an index file.
func isDirAlias(idx *static.Index, route string) bool {
	for _, name := range []string{"index.html", "index.htm"} {
		if _, ok := idx.Lookup(path.Join(route, name)); ok {
			return true
		}
	}
	return false
}

// taken reports whether method and pattern collide with a registered
// route. Param names are ignored. Callers hold r.mu.
func (r *Router) taken(method, pattern string) bool {
	method = strings.ToUpper(method)
	key := shapeOf(pattern)
	for _, rt := range r.routes {
		if rt.Method == method && shapeOf(rt.Pattern) == key {
			return true
		}
	}
	return false
}

// shapeOf blanks param names so /a/:id and /a/:name compare equal.
func shapeOf(pattern string) string {
	segs := strings.Split(pattern, "/")
	for i, s := range segs {
		if strings.HasPrefix(s, ":") {
			segs[i] = ":"
		}
	}
	return strings.Join(segs, "/")
}

func literalRoute(route string) bool {
	for _, seg := range strings.Split(route, "/") {
		if strings.HasPrefix(seg, ":") || strings.Contains(seg, "*") {
			return false
		}
	}
	return true
}
