// Package fasthttp implements transport.Transport on top of valyala/fasthttp.
//
// fasthttp buffers the whole request body before the handler runs, so
// OnData delivers it as a single final chunk. fasthttp also gives no
// per-request disconnect notification: the response context is cancelled
// only when a shutdown outlives its grace period, and OnAborted fires in
// that case alone.
package fasthttp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/dmitrymomot/relay/core/transport"
)

const (
	DefaultIdleTimeout        = 60 * time.Second
	DefaultMaxRequestBodySize = fasthttp.DefaultMaxRequestBodySize
)

// Transport serves registered handlers with a fasthttp.Server.
type Transport struct {
	mu       sync.RWMutex
	table    *transport.Table
	fallback transport.Handler
	logger   *slog.Logger

	readTimeout        time.Duration
	writeTimeout       time.Duration
	idleTimeout        time.Duration
	maxRequestBodySize int

	// base is cancelled once any socket of the transport shuts down.
	base       context.Context
	cancelBase context.CancelFunc
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger for serve errors.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithTimeouts sets the read and write timeouts. Zero leaves a timeout unset.
func WithTimeouts(read, write time.Duration) Option {
	return func(t *Transport) {
		t.readTimeout = read
		t.writeTimeout = write
	}
}

// WithMaxRequestBodySize caps buffered request bodies.
func WithMaxRequestBodySize(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.maxRequestBodySize = n
		}
	}
}

// New creates a fasthttp transport.
func New(opts ...Option) *Transport {
	t := &Transport{
		table:              transport.NewTable(),
		logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		idleTimeout:        DefaultIdleTimeout,
		maxRequestBodySize: DefaultMaxRequestBodySize,
	}
	t.base, t.cancelBase = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) Name() string { return "fasthttp" }

func (t *Transport) Handle(method, pattern string, h transport.Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.table.Insert(method, pattern, h)
}

func (t *Transport) Fallback(h transport.Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fallback = h
}

// ServeFastHTTP is the fasthttp.RequestHandler of the transport.
func (t *Transport) ServeFastHTTP(ctx *fasthttp.RequestCtx) {
	method := string(ctx.Method())
	path := string(ctx.Path())

	t.mu.RLock()
	m, ok := t.table.Lookup(method, path)
	fallback := t.fallback
	t.mu.RUnlock()

	h := m.Handler
	if !ok {
		if fallback == nil {
			ctx.Error(fasthttp.StatusMessage(fasthttp.StatusNotFound), fasthttp.StatusNotFound)
			return
		}
		h = fallback
	}

	rctx, cancel := context.WithCancel(t.base)
	res := &response{ctx: ctx, rctx: rctx}
	defer func() {
		res.release()
		cancel()
	}()

	h(res, &request{ctx: ctx, method: method, path: path, params: m.Values})
}

// Listen binds addr and serves in the background until the socket is shut down.
func (t *Transport) Listen(ctx context.Context, addr string, cfg *tls.Config) (transport.Socket, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	if cfg != nil {
		ln = tls.NewListener(ln, cfg)
	}
	ln = &onceCloseListener{Listener: ln}

	srv := &fasthttp.Server{
		Handler:                       t.ServeFastHTTP,
		Name:                          t.Name(),
		ReadTimeout:                   t.readTimeout,
		WriteTimeout:                  t.writeTimeout,
		IdleTimeout:                   t.idleTimeout,
		MaxRequestBodySize:            t.maxRequestBodySize,
		NoDefaultDate:                 true,
		NoDefaultServerHeader:         true,
		NoDefaultContentType:          true,
		DisableHeaderNamesNormalizing: true,
		Logger:                        printfLogger{t.logger},
	}

	s := &socket{t: t, srv: srv, ln: ln, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			t.logger.Error("serve failed", slog.String("addr", addr), slog.String("error", err.Error()))
		}
	}()

	return s, nil
}

type socket struct {
	t    *Transport
	srv  *fasthttp.Server
	ln   net.Listener
	done chan struct{}
}

func (s *socket) Addr() net.Addr { return s.ln.Addr() }

func (s *socket) Close() error {
	return s.ln.Close()
}

// Shutdown waits for open connections to finish. When ctx expires first,
// in-flight requests are aborted and the server keeps draining in the
// background.
func (s *socket) Shutdown(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- s.srv.Shutdown() }()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
	case <-ctx.Done():
		s.t.cancelBase()
		return ctx.Err()
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.t.cancelBase()
		return ctx.Err()
	}
}

type onceCloseListener struct {
	net.Listener
	once sync.Once
	err  error
}

func (l *onceCloseListener) Close() error {
	l.once.Do(func() { l.err = l.Listener.Close() })
	return l.err
}

type printfLogger struct{ logger *slog.Logger }

func (l printfLogger) Printf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

type request struct {
	ctx    *fasthttp.RequestCtx
	method string
	path   string
	params []string
}

func (q *request) ForEachHeader(fn func(name, value string)) {
	q.ctx.Request.Header.VisitAll(func(k, v []byte) {
		fn(string(k), string(v))
	})
}

func (q *request) Method() string { return q.method }
func (q *request) Query() string  { return string(q.ctx.QueryArgs().QueryString()) }
func (q *request) URL() string    { return q.path }

func (q *request) RemoteAddr() string {
	if addr := q.ctx.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (q *request) Parameter(i int) string {
	if i < 0 || i >= len(q.params) {
		return ""
	}
	return q.params[i]
}

type response struct {
	ctx  *fasthttp.RequestCtx
	rctx context.Context

	mu     sync.Mutex
	status int
	ended  bool
	stops  []func() bool
}

func (s *response) Context() context.Context { return s.rctx }

func (s *response) OnAborted(fn func()) {
	stop := context.AfterFunc(s.rctx, func() {
		s.mu.Lock()
		ended := s.ended
		s.mu.Unlock()
		if !ended {
			fn()
		}
	})

	s.mu.Lock()
	s.stops = append(s.stops, stop)
	s.mu.Unlock()
}

func (s *response) OnData(fn func(chunk []byte, last bool)) {
	body := s.ctx.PostBody()
	if len(body) == 0 {
		fn(nil, true)
		return
	}
	fn(append([]byte(nil), body...), true)
}

func (s *response) WriteStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
}

func (s *response) WriteHeader(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ctx.Response.Header.Add(name, value)
}

func (s *response) End(body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return transport.ErrResponseEnded
	}
	s.ended = true

	status := s.status
	if status == 0 {
		status = fasthttp.StatusOK
	}
	s.ctx.SetStatusCode(status)
	s.ctx.SetBody(body)
	return nil
}

func (s *response) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stop := range s.stops {
		stop()
	}
	s.ended = true
}
