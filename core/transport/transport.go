package transport

import (
	"context"
	"crypto/tls"
	"net"
)

// Handler is invoked by a transport once per matched request. The Request
// value is only valid until the handler returns.
type Handler func(res Response, req Request)

// Request is the read-only view of an inbound request that a transport
// exposes to the dispatch layer.
type Request interface {
	// ForEachHeader calls fn for every header in wire order, duplicates included.
	ForEachHeader(fn func(name, value string))
	Method() string
	// Parameter returns the i-th positional path parameter of the matched
	// route, or an empty string when there is none.
	Parameter(i int) string
	Query() string
	URL() string
	RemoteAddr() string
}

// Response is the write side of a single request.
type Response interface {
	// Context is cancelled when the client goes away.
	Context() context.Context
	// OnAborted registers fn to run when the connection is torn down
	// before the response was ended.
	OnAborted(fn func())
	// OnData delivers the request body to fn chunk by chunk. It returns once
	// the final chunk (last == true) was delivered or the body could not be
	// read any further; in the latter case fn never sees last == true.
	OnData(fn func(chunk []byte, last bool))
	WriteStatus(code int)
	WriteHeader(name, value string)
	// End writes the body and completes the response. Only the first call
	// has an effect; later calls return ErrResponseEnded.
	End(body []byte) error
}

// Transport accepts connections and dispatches requests to registered handlers.
type Transport interface {
	// Name identifies the transport, e.g. in the Server header.
	Name() string
	// Handle registers h for method and pattern. Patterns use :name
	// segments for parameters and a trailing * for catch-all.
	Handle(method, pattern string, h Handler) error
	// Fallback answers every request no registered route accepts.
	Fallback(h Handler)
	// Listen binds addr and starts serving. A nil cfg serves plain HTTP.
	Listen(ctx context.Context, addr string, cfg *tls.Config) (Socket, error)
}

// Socket is a listening handle returned by Transport.Listen.
type Socket interface {
	Addr() net.Addr
	// Close stops accepting new connections. Accepted connections keep
	// being served.
	Close() error
	// Shutdown waits for in-flight requests to complete or ctx to expire.
	Shutdown(ctx context.Context) error
}
