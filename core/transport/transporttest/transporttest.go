// Package transporttest provides an in-memory transport for exercising the
// dispatch layer without sockets. Bodies can be fed as chunks and client
// aborts injected at any point.
package transporttest

import (
	"context"
	"crypto/tls"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/relay/core/transport"
)

// Header is a recorded name and value pair.
type Header struct {
	Name  string
	Value string
}

// Request is a fake inbound request.
type Request struct {
	method  string
	path    string
	query   string
	remote  string
	headers []Header
	params  []string
}

// NewRequest builds a request for method and target ("/path?query").
func NewRequest(method, target string) *Request {
	r := &Request{method: method, path: target, remote: "192.0.2.1:1234"}
	if u, err := url.Parse(target); err == nil {
		r.path = u.Path
		r.query = u.RawQuery
	}
	return r
}

// WithHeader appends a header, keeping duplicates.
func (r *Request) WithHeader(name, value string) *Request {
	r.headers = append(r.headers, Header{Name: name, Value: value})
	return r
}

// WithRemoteAddr overrides the peer address.
func (r *Request) WithRemoteAddr(addr string) *Request {
	r.remote = addr
	return r
}

// WithParams sets positional path parameters directly, for handlers
// invoked without a Transport.
func (r *Request) WithParams(values ...string) *Request {
	r.params = values
	return r
}

func (r *Request) ForEachHeader(fn func(name, value string)) {
	for _, h := range r.headers {
		fn(h.Name, h.Value)
	}
}

func (r *Request) Method() string     { return r.method }
func (r *Request) Query() string      { return r.query }
func (r *Request) URL() string        { return r.path }
func (r *Request) RemoteAddr() string { return r.remote }

func (r *Request) Parameter(i int) string {
	if i < 0 || i >= len(r.params) {
		return ""
	}
	return r.params[i]
}

// Response records everything written to it.
type Response struct {
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	chunks    [][]byte
	abortAt   int
	onAborted []func()
	aborted   bool
	status    int
	headers   []Header
	body      []byte
	ended     bool
	endCalls  int
}

// NewResponse returns a response with an empty body and no abort scheduled.
func NewResponse() *Response {
	ctx, cancel := context.WithCancel(context.Background())
	return &Response{ctx: ctx, cancel: cancel, abortAt: -1}
}

// WithBody sets the request body chunks delivered through OnData.
func (r *Response) WithBody(chunks ...string) *Response {
	r.chunks = r.chunks[:0]
	for _, c := range chunks {
		r.chunks = append(r.chunks, []byte(c))
	}
	return r
}

// AbortAfterChunks makes OnData deliver n chunks without the final flag
// and then abort the request.
func (r *Response) AbortAfterChunks(n int) *Response {
	r.abortAt = n
	return r
}

// Abort simulates the client disconnecting.
func (r *Response) Abort() {
	r.mu.Lock()
	if r.aborted || r.ended {
		r.mu.Unlock()
		return
	}
	r.aborted = true
	fns := r.onAborted
	r.mu.Unlock()

	r.cancel()
	for _, fn := range fns {
		fn()
	}
}

func (r *Response) Context() context.Context { return r.ctx }

// OnAborted registers fn. Like a real transport it runs fn right away when
// the request was aborted before the subscription.
func (r *Response) OnAborted(fn func()) {
	r.mu.Lock()
	if r.aborted {
		r.mu.Unlock()
		fn()
		return
	}
	r.onAborted = append(r.onAborted, fn)
	r.mu.Unlock()
}

func (r *Response) OnData(fn func(chunk []byte, last bool)) {
	if r.abortAt >= 0 {
		for i := 0; i < r.abortAt && i < len(r.chunks); i++ {
			fn(r.chunks[i], false)
		}
		r.Abort()
		return
	}

	if len(r.chunks) == 0 {
		fn(nil, true)
		return
	}
	for i, c := range r.chunks {
		fn(c, i == len(r.chunks)-1)
	}
}

func (r *Response) WriteStatus(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = code
}

func (r *Response) WriteHeader(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.headers = append(r.headers, Header{Name: name, Value: value})
}

func (r *Response) End(body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endCalls++
	if r.ended {
		return transport.ErrResponseEnded
	}
	r.ended = true
	r.body = append([]byte(nil), body...)
	return nil
}

// Status returns the written status, 0 if none.
func (r *Response) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Header returns the first value recorded for name, compared case-insensitively.
func (r *Response) Header(name string) string {
	for _, h := range r.Headers() {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// HeaderValues returns every value recorded for name.
func (r *Response) HeaderValues(name string) []string {
	var vals []string
	for _, h := range r.Headers() {
		if strings.EqualFold(h.Name, name) {
			vals = append(vals, h.Value)
		}
	}
	return vals
}

// Headers returns the headers in write order.
func (r *Response) Headers() []Header {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Header(nil), r.headers...)
}

// Body returns the bytes passed to End.
func (r *Response) Body() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body
}

// Ended reports whether End succeeded.
func (r *Response) Ended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ended
}

// EndCalls counts every End call, successful or not.
func (r *Response) EndCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endCalls
}

// Transport is an in-memory transport.Transport.
type Transport struct {
	mu       sync.Mutex
	table    *transport.Table
	fallback transport.Handler
	sockets  []*Socket

	// ListenErr, when set, is returned by Listen.
	ListenErr error
}

// New returns an empty in-memory transport.
func New() *Transport {
	return &Transport{table: transport.NewTable()}
}

func (t *Transport) Name() string { return "transporttest" }

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

func (t *Transport) Listen(_ context.Context, _ string, _ *tls.Config) (transport.Socket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ListenErr != nil {
		return nil, t.ListenErr
	}
	s := &Socket{}
	t.sockets = append(t.sockets, s)
	return s, nil
}

// Serve dispatches req the way a real transport would and returns res.
func (t *Transport) Serve(res *Response, req *Request) *Response {
	t.mu.Lock()
	m, ok := t.table.Lookup(req.method, req.path)
	fallback := t.fallback
	t.mu.Unlock()

	switch {
	case ok:
		req.params = m.Values
		m.Handler(res, req)
	case fallback != nil:
		fallback(res, req)
	}
	return res
}

// Routes lists the registered routes.
func (t *Transport) Routes() []transport.Route {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.table.Routes()
}

// Sockets returns the sockets handed out by Listen.
func (t *Transport) Sockets() []*Socket {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Socket(nil), t.sockets...)
}

// Socket counts lifecycle calls.
type Socket struct {
	closes    atomic.Int32
	shutdowns atomic.Int32
}

func (s *Socket) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}

func (s *Socket) Close() error {
	s.closes.Add(1)
	return nil
}

func (s *Socket) Shutdown(ctx context.Context) error {
	s.shutdowns.Add(1)
	return ctx.Err()
}

// Closes reports how many times Close was called.
func (s *Socket) Closes() int { return int(s.closes.Load()) }

// Shutdowns reports how many times Shutdown was called.
func (s *Socket) Shutdowns() int { return int(s.shutdowns.Load()) }
