// Package nethttp implements transport.Transport on top of net/http.
package nethttp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrymomot/relay/core/transport"
)

const (
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20
	// DefaultChunkSize is the read size used to stream request bodies.
	DefaultChunkSize = 16 << 10
)

// Transport serves registered handlers with an http.Server. It also
// implements http.Handler, so it can be mounted in an existing server or
// driven with httptest.
type Transport struct {
	mu       sync.RWMutex
	table    *transport.Table
	fallback transport.Handler
	logger   *slog.Logger

	readHeaderTimeout time.Duration
	readTimeout       time.Duration
	writeTimeout      time.Duration
	idleTimeout       time.Duration
	maxHeaderBytes    int
	chunkSize         int
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

// WithIdleTimeout sets the keep-alive idle timeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.idleTimeout = d
	}
}

// WithMaxHeaderBytes caps the request header size.
func WithMaxHeaderBytes(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.maxHeaderBytes = n
		}
	}
}

// WithChunkSize sets the body read size.
func WithChunkSize(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.chunkSize = n
		}
	}
}

// New creates a net/http transport.
func New(opts ...Option) *Transport {
	t := &Transport{
		table:             transport.NewTable(),
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		readHeaderTimeout: DefaultReadHeaderTimeout,
		idleTimeout:       DefaultIdleTimeout,
		maxHeaderBytes:    DefaultMaxHeaderBytes,
		chunkSize:         DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) Name() string { return "net/http" }

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

// ServeHTTP matches r against the route table and runs the handler.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.mu.RLock()
	m, ok := t.table.Lookup(r.Method, r.URL.Path)
	fallback := t.fallback
	t.mu.RUnlock()

	h := m.Handler
	if !ok {
		if fallback == nil {
			http.NotFound(w, r)
			return
		}
		h = fallback
	}

	res := &response{w: w, r: r, chunkSize: t.chunkSize}
	defer res.release()

	h(res, &request{r: r, params: m.Values})
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

	srv := &http.Server{
		Handler:           t,
		ReadHeaderTimeout: t.readHeaderTimeout,
		ReadTimeout:       t.readTimeout,
		WriteTimeout:      t.writeTimeout,
		IdleTimeout:       t.idleTimeout,
		MaxHeaderBytes:    t.maxHeaderBytes,
		ErrorLog:          slog.NewLogLogger(t.logger.Handler(), slog.LevelWarn),
	}

	s := &socket{srv: srv, ln: ln, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			t.logger.Error("serve failed", slog.String("addr", addr), slog.String("error", err.Error()))
		}
	}()

	return s, nil
}

type socket struct {
	srv  *http.Server
	ln   net.Listener
	done chan struct{}
}

func (s *socket) Addr() net.Addr { return s.ln.Addr() }

func (s *socket) Close() error {
	s.srv.SetKeepAlivesEnabled(false)
	return s.ln.Close()
}

func (s *socket) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onceCloseListener makes Close idempotent so Close and Shutdown can
// both close the listener.
type onceCloseListener struct {
	net.Listener
	once sync.Once
	err  error
}

func (l *onceCloseListener) Close() error {
	l.once.Do(func() { l.err = l.Listener.Close() })
	return l.err
}

type request struct {
	r      *http.Request
	params []string
}

// ForEachHeader reports Host first, then the remaining headers sorted by
// name. net/http does not keep the wire order across different names.
func (q *request) ForEachHeader(fn func(name, value string)) {
	if q.r.Host != "" {
		fn("Host", q.r.Host)
	}
	for _, name := range slices.Sorted(maps.Keys(q.r.Header)) {
		for _, v := range q.r.Header[name] {
			fn(name, v)
		}
	}
}

func (q *request) Method() string     { return q.r.Method }
func (q *request) Query() string      { return q.r.URL.RawQuery }
func (q *request) URL() string        { return q.r.URL.Path }
func (q *request) RemoteAddr() string { return q.r.RemoteAddr }

func (q *request) Parameter(i int) string {
	if i < 0 || i >= len(q.params) {
		return ""
	}
	return q.params[i]
}

type response struct {
	w         http.ResponseWriter
	r         *http.Request
	chunkSize int

	mu     sync.Mutex
	status int
	ended  bool
	stops  []func() bool
}

func (s *response) Context() context.Context { return s.r.Context() }

func (s *response) OnAborted(fn func()) {
	stop := context.AfterFunc(s.r.Context(), func() {
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
	if s.r.Body == nil || s.r.Body == http.NoBody {
		fn(nil, true)
		return
	}

	buf := make([]byte, s.chunkSize)
	for {
		n, err := s.r.Body.Read(buf)
		switch {
		case errors.Is(err, io.EOF):
			fn(append([]byte(nil), buf[:n]...), true)
			return
		case err != nil:
			return
		case n > 0:
			fn(append([]byte(nil), buf[:n]...), false)
		}
	}
}

func (s *response) WriteStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
}

// WriteHeader keeps the header name exactly as given.
func (s *response) WriteHeader(name, value string) {
	h := s.w.Header()
	h[name] = append(h[name], value)
}

func (s *response) End(body []byte) error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return transport.ErrResponseEnded
	}
	s.ended = true
	status := s.status
	s.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}

	if bodyAllowed(status) {
		s.w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	}
	s.w.WriteHeader(status)

	if s.r.Method == http.MethodHead || !bodyAllowed(status) || len(body) == 0 {
		return nil
	}
	_, err := s.w.Write(body)
	return err
}

func (s *response) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stop := range s.stops {
		stop()
	}
	s.ended = true
}

func bodyAllowed(status int) bool {
	return status >= 200 && status != http.StatusNoContent && status != http.StatusNotModified
}
