package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/relay/core/transport"
)

const (
	ContentTypeText   = "text/plain; charset=utf-8"
	ContentTypeHTML   = "text/html; charset=utf-8"
	ContentTypeJSON   = "application/json; charset=utf-8"
	ContentTypeBinary = "application/octet-stream"
)

// ErrAborted is the cancellation cause of a Handle whose client went away.
var ErrAborted = errors.New("client aborted the request")

const (
	stateOpen int32 = iota
	stateFinished
	stateAborted
)

type header struct {
	name  string
	value string
}

// Handle is the per-request response. Exactly one terminal write reaches
// the transport; everything after it, or after an abort, is dropped.
type Handle struct {
	f      *Finalizer
	tr     transport.Response
	method string
	ctx    context.Context
	cancel context.CancelCauseFunc
	start  time.Time
	state  atomic.Int32

	mu      sync.Mutex
	status  int
	pending []header
}

// Context is cancelled with ErrAborted when the client aborts.
func (h *Handle) Context() context.Context { return h.ctx }

// Aborted reports whether the client went away before the response was written.
func (h *Handle) Aborted() bool { return h.state.Load() == stateAborted }

// Finished reports whether the terminal write happened.
func (h *Handle) Finished() bool { return h.state.Load() == stateFinished }

// Closed reports whether the handle accepts no more writes.
func (h *Handle) Closed() bool { return h.state.Load() != stateOpen }

// Release cancels the handle context. The router calls it once the
// request is done.
func (h *Handle) Release() { h.cancel(context.Canceled) }

// OnData streams the request body, see transport.Response.
func (h *Handle) OnData(fn func(chunk []byte, last bool)) { h.tr.OnData(fn) }

// AddHeader queues a header for the terminal write. Middleware uses it to
// contribute headers without finishing the response.
func (h *Handle) AddHeader(name, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = append(h.pending, header{name: name, value: value})
}

// SetStatus sets the status used when Send or Render is called with 0.
func (h *Handle) SetStatus(code int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = code
}

func (h *Handle) abort() {
	if h.state.CompareAndSwap(stateOpen, stateAborted) {
		h.cancel(ErrAborted)
		h.f.logger.Debug("client aborted request", slog.String("method", h.method))
	}
}

// Send finalizes a dynamic response. Strings are sent as plain text,
// byte slices as application/octet-stream, nil as an empty body and any
// other value is encoded as JSON.
func (h *Handle) Send(status int, content any, opts ...SendOption) error {
	c := newCall(opts)

	if h.Closed() {
		h.suppressed(status)
		return nil
	}

	var (
		body []byte
		ct   = ContentTypeText
	)
	switch v := content.(type) {
	case nil:
	case string:
		body = []byte(v)
	case []byte:
		body = v
		ct = ContentTypeBinary
	case json.RawMessage:
		body = v
		ct = ContentTypeJSON
	default:
		b, err := json.Marshal(v)
		if err != nil {
			h.f.logger.Error("failed to encode response", slog.String("error", err.Error()))
			_ = h.finalize(http.StatusInternalServerError, h.f.sendCache, ContentTypeText,
				[]byte(http.StatusText(http.StatusInternalServerError)), call{})
			return fmt.Errorf("encode response: %w", err)
		}
		body = b
		ct = ContentTypeJSON
	}

	return h.finalize(status, h.f.sendCache, ct, body, c)
}

// Render finalizes an HTML response with the long cache policy.
func (h *Handle) Render(status int, html string, opts ...SendOption) error {
	return h.finalize(status, h.f.renderCache, ContentTypeHTML, []byte(html), newCall(opts))
}

func (h *Handle) finalize(status int, cache time.Duration, ct string, body []byte, c call) error {
	h.mu.Lock()
	if status == 0 {
		status = h.status
	}
	pending := h.pending
	h.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	if c.cache != nil {
		cache = *c.cache
	}
	if c.contentType != "" {
		ct = c.contentType
	}

	hdrs := make([]header, 0, 5+len(pending)+len(c.headers))
	hdrs = append(hdrs,
		header{"Date", h.f.now().UTC().Format(http.TimeFormat)},
		header{"Cache-Control", "max-age=" + strconv.FormatInt(int64(cache/time.Second), 10)},
		header{"Content-Type", ct},
	)
	hdrs = append(hdrs, pending...)

	names := make([]string, 0, len(c.headers))
	for name := range c.headers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		hdrs = setHeader(hdrs, name, fmt.Sprint(c.headers[name]))
	}

	if h.f.branding && !c.noBranding {
		hdrs = addMissing(hdrs, "Server", h.f.serverName)
		hdrs = addMissing(hdrs, "X-Powered-By", h.f.poweredBy)
	}

	if !h.state.CompareAndSwap(stateOpen, stateFinished) {
		h.suppressed(status)
		return nil
	}

	h.tr.WriteStatus(status)
	for _, hd := range hdrs {
		h.tr.WriteHeader(hd.name, hd.value)
	}
	if err := h.tr.End(body); err != nil {
		h.f.logger.Warn("failed to end response",
			slog.String("method", h.method),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("end response: %w", err)
	}

	h.f.observer.ObserveResponse(h.method, status, OutcomeWritten, len(body), time.Since(h.start))
	return nil
}

func (h *Handle) suppressed(status int) {
	outcome := OutcomeDuplicate
	if h.Aborted() {
		outcome = OutcomeAborted
	}
	h.f.observer.ObserveResponse(h.method, status, outcome, 0, time.Since(h.start))
	h.f.logger.Debug("response write suppressed",
		slog.String("method", h.method),
		slog.Int("status", status),
		slog.String("outcome", string(outcome)),
	)
}

// setHeader replaces the first header with a matching name or appends.
func setHeader(hdrs []header, name, value string) []header {
	for i := range hdrs {
		if strings.EqualFold(hdrs[i].name, name) {
			hdrs[i] = header{name, value}
			return hdrs
		}
	}
	return append(hdrs, header{name, value})
}

func addMissing(hdrs []header, name, value string) []header {
	if value == "" {
		return hdrs
	}
	for _, hd := range hdrs {
		if strings.EqualFold(hd.name, name) {
			return hdrs
		}
	}
	return append(hdrs, header{name, value})
}
