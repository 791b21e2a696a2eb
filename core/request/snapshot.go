package request

import (
	"strings"

	"github.com/dmitrymomot/relay/core/transport"
)

// Header is a single request header as received on the wire.
type Header struct {
	Name  string
	Value string
}

// Snapshot is an immutable copy of the request data a handler may need
// after the transport callback has returned.
type Snapshot struct {
	Headers    []Header
	Method     string
	Parameters map[string]string
	Query      string
	URL        string
	RemoteAddr string
}

// Build copies everything out of req. Parameters are bound positionally:
// the n-th :name segment of pattern receives req.Parameter(n).
func Build(req transport.Request, pattern string) Snapshot {
	s := Snapshot{
		Headers:    make([]Header, 0, 16),
		Method:     strings.ToUpper(req.Method()),
		Parameters: make(map[string]string),
		Query:      req.Query(),
		URL:        req.URL(),
		RemoteAddr: req.RemoteAddr(),
	}

	req.ForEachHeader(func(name, value string) {
		s.Headers = append(s.Headers, Header{Name: name, Value: value})
	})

	for i, name := range ParamNames(pattern) {
		s.Parameters[name] = req.Parameter(i)
	}

	return s
}

// ParamNames returns the :name segments of pattern in declared order.
func ParamNames(pattern string) []string {
	var names []string
	for _, seg := range strings.Split(pattern, "/") {
		if strings.HasPrefix(seg, ":") {
			names = append(names, seg[1:])
		}
	}
	return names
}

// Header returns the first value of the named header. Names compare
// case-insensitively.
func (s Snapshot) Header(name string) string {
	for _, h := range s.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// HasHeader reports whether the named header was sent, even if empty.
func (s Snapshot) HasHeader(name string) bool {
	for _, h := range s.Headers {
		if strings.EqualFold(h.Name, name) {
			return true
		}
	}
	return false
}

// HeaderValues returns all values of the named header in wire order.
func (s Snapshot) HeaderValues(name string) []string {
	var vals []string
	for _, h := range s.Headers {
		if strings.EqualFold(h.Name, name) {
			vals = append(vals, h.Value)
		}
	}
	return vals
}

// Param returns a path parameter by name.
func (s Snapshot) Param(name string) string {
	return s.Parameters[name]
}
