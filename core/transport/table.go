package transport

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Segment trie used by the transport adapters to match request paths.
// Patterns are split on '/'; each segment is static text, a :name
// parameter or a terminal * catch-all. Static segments win over
// parameters, parameters over catch-alls, with backtracking.

type methodTyp uint

const (
	mCONNECT methodTyp = 1 << iota
	mDELETE
	mGET
	mHEAD
	mOPTIONS
	mPATCH
	mPOST
	mPUT
	mTRACE
)

var methodMap = map[string]methodTyp{
	http.MethodConnect: mCONNECT,
	http.MethodDelete:  mDELETE,
	http.MethodGet:     mGET,
	http.MethodHead:    mHEAD,
	http.MethodOptions: mOPTIONS,
	http.MethodPatch:   mPATCH,
	http.MethodPost:    mPOST,
	http.MethodPut:     mPUT,
	http.MethodTrace:   mTRACE,
}

// IsMethod reports whether m is one of the methods a Table accepts.
func IsMethod(m string) bool {
	_, ok := methodMap[m]
	return ok
}

// Route describes a registered method and pattern pair.
type Route struct {
	Method  string
	Pattern string
}

// Match is the result of a successful Table lookup.
type Match struct {
	Handler Handler
	Pattern string
	// Values holds the path parameter values in pattern order.
	Values []string
}

type nodeTyp uint8

const (
	ntStatic   nodeTyp = iota // /home
	ntParam                   // /:user
	ntCatchAll                // /assets/*
)

type node struct {
	typ       nodeTyp
	segment   string
	static    map[string]*node
	param     *node
	catchAll  *node
	endpoints map[methodTyp]*endpoint
}

type endpoint struct {
	handler   Handler
	pattern   string
	paramKeys []string
}

// Table maps method and path pairs to handlers. Insert must not run
// concurrently with Lookup; adapters fill the table before serving.
type Table struct {
	root node
}

// NewTable returns an empty route table.
func NewTable() *Table {
	return &Table{}
}

// Insert registers h for method and pattern. A pair that is already
// taken fails with ErrDuplicateRoute; patterns differing only in param
// names count as the same pair.
func (t *Table) Insert(method, pattern string, h Handler) error {
	mt, ok := methodMap[strings.ToUpper(method)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}
	if pattern == "" || pattern[0] != '/' {
		return fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}

	keys, err := patParamKeys(pattern)
	if err != nil {
		return err
	}

	segs := splitPath(pattern)
	n := &t.root
	for i, seg := range segs {
		typ, name := segmentType(seg)
		switch typ {
		case ntCatchAll:
			if i != len(segs)-1 {
				return fmt.Errorf("%w: %q", ErrWildcardPosition, pattern)
			}
			if n.catchAll == nil {
				n.catchAll = &node{typ: ntCatchAll, segment: "*"}
			}
			n = n.catchAll
		case ntParam:
			if n.param == nil {
				n.param = &node{typ: ntParam, segment: name}
			}
			n = n.param
		default:
			if n.static == nil {
				n.static = make(map[string]*node)
			}
			child, ok := n.static[seg]
			if !ok {
				child = &node{typ: ntStatic, segment: seg}
				n.static[seg] = child
			}
			n = child
		}
	}

	if n.endpoints == nil {
		n.endpoints = make(map[methodTyp]*endpoint)
	}
	if prev, taken := n.endpoints[mt]; taken {
		return fmt.Errorf("%w: %s %s (as %s)", ErrDuplicateRoute, methodTypString(mt), pattern, prev.pattern)
	}
	n.endpoints[mt] = &endpoint{handler: h, pattern: pattern, paramKeys: keys}
	return nil
}

// Lookup finds the handler registered for method and path. The second
// return value is false when no route accepts the pair.
func (t *Table) Lookup(method, path string) (Match, bool) {
	mt, ok := methodMap[method]
	if !ok || path == "" || path[0] != '/' {
		return Match{}, false
	}

	values := make([]string, 0, 4)
	n := t.root.findRoute(mt, splitPath(path), &values)
	if n == nil {
		return Match{}, false
	}

	ep := n.endpoints[mt]
	return Match{Handler: ep.handler, Pattern: ep.pattern, Values: values}, true
}

// Routes lists every registered route sorted by pattern and method.
func (t *Table) Routes() []Route {
	rts := []Route{}
	t.root.walk(func(n *node) {
		for mt, ep := range n.endpoints {
			rts = append(rts, Route{Method: methodTypString(mt), Pattern: ep.pattern})
		}
	})

	sort.Slice(rts, func(i, j int) bool {
		if rts[i].Pattern != rts[j].Pattern {
			return rts[i].Pattern < rts[j].Pattern
		}
		return rts[i].Method < rts[j].Method
	})
	return rts
}

func (n *node) findRoute(mt methodTyp, segs []string, values *[]string) *node {
	if len(segs) == 0 {
		if ep := n.endpoints[mt]; ep != nil && ep.handler != nil {
			return n
		}
		return nil
	}

	seg, rest := segs[0], segs[1:]

	if child := n.static[seg]; child != nil {
		if fin := child.findRoute(mt, rest, values); fin != nil {
			return fin
		}
	}

	// empty values never bind to a param
	if n.param != nil && seg != "" {
		prev := len(*values)
		*values = append(*values, seg)
		if fin := n.param.findRoute(mt, rest, values); fin != nil {
			return fin
		}
		*values = (*values)[:prev]
	}

	if n.catchAll != nil {
		if ep := n.catchAll.endpoints[mt]; ep != nil && ep.handler != nil {
			*values = append(*values, strings.Join(segs, "/"))
			return n.catchAll
		}
	}

	return nil
}

func (n *node) walk(fn func(n *node)) {
	if len(n.endpoints) > 0 {
		fn(n)
	}
	for _, child := range n.static {
		child.walk(fn)
	}
	if n.param != nil {
		n.param.walk(fn)
	}
	if n.catchAll != nil {
		n.catchAll.walk(fn)
	}
}

func splitPath(p string) []string {
	return strings.Split(p[1:], "/")
}

func segmentType(seg string) (nodeTyp, string) {
	switch {
	case seg == "*":
		return ntCatchAll, "*"
	case strings.HasPrefix(seg, ":"):
		return ntParam, seg[1:]
	default:
		return ntStatic, seg
	}
}

// patParamKeys returns the parameter names of pattern in declared order.
func patParamKeys(pattern string) ([]string, error) {
	keys := []string{}
	for _, seg := range splitPath(pattern) {
		typ, name := segmentType(seg)
		switch {
		case typ == ntParam && name == "":
			return nil, fmt.Errorf("%w: %q", ErrEmptyParam, pattern)
		case typ == ntParam:
			for _, k := range keys {
				if k == name {
					return nil, fmt.Errorf("%w: '%s' has duplicate key '%s'", ErrDuplicateParam, pattern, name)
				}
			}
			keys = append(keys, name)
		case typ == ntStatic && strings.Contains(seg, "*"):
			return nil, fmt.Errorf("%w: %q", ErrWildcardPosition, pattern)
		}
	}
	return keys, nil
}

func methodTypString(method methodTyp) string {
	for s, t := range methodMap {
		if method == t {
			return s
		}
	}
	return ""
}
