package router

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrymomot/relay/core/request"
	"github.com/dmitrymomot/relay/core/response"
	"github.com/dmitrymomot/relay/core/transport"
)

// HandlerFunc serves one verb of a resource. It is responsible for
// finalizing the response; a returned error is turned into an error
// response when nothing was written yet.
type HandlerFunc func(res *response.Handle, req *request.Context) error

// Resource groups the verb handlers of one route. A single instance
// serves every request to its route, so it must not keep per-request state.
type Resource interface {
	Register(v *Verbs)
}

// ResourceFunc adapts a function to Resource.
type ResourceFunc func(v *Verbs)

func (f ResourceFunc) Register(v *Verbs) { f(v) }

// Verbs collects the handlers a resource declares.
type Verbs struct {
	handlers map[string]HandlerFunc
	order    []string
	errs     []error
}

func newVerbs() *Verbs {
	return &Verbs{handlers: make(map[string]HandlerFunc)}
}

// Method declares a handler for verb, matched case-insensitively against
// the standard HTTP methods.
func (v *Verbs) Method(verb string, h HandlerFunc) *Verbs {
	m := strings.ToUpper(verb)
	if !transport.IsMethod(m) {
		v.errs = append(v.errs, fmt.Errorf("%w: %q", ErrInvalidMethod, verb))
		return v
	}
	if h == nil {
		v.errs = append(v.errs, fmt.Errorf("%w: %s", ErrNilHandler, m))
		return v
	}
	if _, ok := v.handlers[m]; !ok {
		v.order = append(v.order, m)
	}
	v.handlers[m] = h
	return v
}

func (v *Verbs) Get(h HandlerFunc) *Verbs     { return v.Method(http.MethodGet, h) }
func (v *Verbs) Head(h HandlerFunc) *Verbs    { return v.Method(http.MethodHead, h) }
func (v *Verbs) Post(h HandlerFunc) *Verbs    { return v.Method(http.MethodPost, h) }
func (v *Verbs) Put(h HandlerFunc) *Verbs     { return v.Method(http.MethodPut, h) }
func (v *Verbs) Patch(h HandlerFunc) *Verbs   { return v.Method(http.MethodPatch, h) }
func (v *Verbs) Delete(h HandlerFunc) *Verbs  { return v.Method(http.MethodDelete, h) }
func (v *Verbs) Options(h HandlerFunc) *Verbs { return v.Method(http.MethodOptions, h) }
func (v *Verbs) Connect(h HandlerFunc) *Verbs { return v.Method(http.MethodConnect, h) }
func (v *Verbs) Trace(h HandlerFunc) *Verbs   { return v.Method(http.MethodTrace, h) }
