package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrymomot/relay/core/pipeline"
	"github.com/dmitrymomot/relay/core/request"
	"github.com/dmitrymomot/relay/core/response"
)

const DefaultCORSMethods = "GET, HEAD, PUT, POST, DELETE, PATCH"

// CORSConfig holds the CORS policy. Origin, Methods, AllowedHeaders and
// ExposedHeaders take a string or a []string; lists are joined with ", ".
// MaxAge takes an int or a string.
type CORSConfig struct {
	// Origin is "*", a single origin compared case-insensitively, or a
	// list of origins matched exactly. Defaults to "*".
	Origin         any
	Methods        any
	AllowedHeaders any
	ExposedHeaders any
	MaxAge         any
	Credentials    bool
}

type corsPolicy struct {
	wildcard bool
	single   string
	list     map[string]struct{}

	methods        string
	allowedHeaders string
	exposedHeaders string
	maxAge         string
	credentials    bool
}

// CORS validates cfg and returns the negotiation step. Preflight requests,
// OPTIONS with Access-Control-Request-Method, are answered with 204 and
// end the chain. Other requests with an allowed Origin get the allow
// headers queued on the response.
func CORS(cfg CORSConfig) (pipeline.Step, error) {
	p, err := newCORSPolicy(cfg)
	if err != nil {
		return nil, err
	}
	return p.step, nil
}

func newCORSPolicy(cfg CORSConfig) (*corsPolicy, error) {
	p := &corsPolicy{credentials: cfg.Credentials}

	switch v := cfg.Origin.(type) {
	case nil:
		p.wildcard = true
	case string:
		if v == "" || v == "*" {
			p.wildcard = true
		} else {
			p.single = v
		}
	case []string:
		p.list = make(map[string]struct{}, len(v))
		for _, o := range v {
			p.list[o] = struct{}{}
		}
	default:
		return nil, fmt.Errorf("%w: origin must be a string or []string, got %T", ErrInvalidCORSConfig, v)
	}

	var err error
	if p.methods, err = joinList("methods", cfg.Methods); err != nil {
		return nil, err
	}
	if p.methods == "" {
		p.methods = DefaultCORSMethods
	}
	if p.allowedHeaders, err = joinList("allowed headers", cfg.AllowedHeaders); err != nil {
		return nil, err
	}
	if p.exposedHeaders, err = joinList("exposed headers", cfg.ExposedHeaders); err != nil {
		return nil, err
	}

	switch v := cfg.MaxAge.(type) {
	case nil:
	case int:
		if v > 0 {
			p.maxAge = strconv.Itoa(v)
		}
	case string:
		p.maxAge = v
	default:
		return nil, fmt.Errorf("%w: max age must be an int or string, got %T", ErrInvalidCORSConfig, v)
	}

	return p, nil
}

func joinList(field string, v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []string:
		return strings.Join(v, ", "), nil
	default:
		return "", fmt.Errorf("%w: %s must be a string or []string, got %T", ErrInvalidCORSConfig, field, v)
	}
}

func (p *corsPolicy) allow(origin string) (string, bool) {
	switch {
	case p.wildcard:
		return origin, true
	case p.list != nil:
		_, ok := p.list[origin]
		return origin, ok
	case strings.EqualFold(p.single, origin):
		return p.single, true
	}
	return "", false
}

func (p *corsPolicy) step(res *response.Handle, req *request.Context) error {
	requestOrigin := req.Header("Origin")
	if requestOrigin == "" {
		return nil
	}
	origin, ok := p.allow(requestOrigin)
	if !ok {
		return nil
	}

	if req.Method == http.MethodOptions {
		if !req.HasHeader("Access-Control-Request-Method") {
			return nil
		}
		return p.preflight(res, req, origin)
	}

	res.AddHeader("Access-Control-Allow-Origin", origin)
	res.AddHeader("Vary", "Origin")
	if p.credentials {
		res.AddHeader("Access-Control-Allow-Credentials", "true")
	}
	if p.exposedHeaders != "" {
		res.AddHeader("Access-Control-Expose-Headers", p.exposedHeaders)
	}
	return nil
}

func (p *corsPolicy) preflight(res *response.Handle, req *request.Context, origin string) error {
	res.AddHeader("Access-Control-Allow-Origin", origin)
	res.AddHeader("Vary", "Origin")
	if p.credentials {
		res.AddHeader("Access-Control-Allow-Credentials", "true")
	}
	if p.maxAge != "" {
		res.AddHeader("Access-Control-Max-Age", p.maxAge)
	}
	res.AddHeader("Access-Control-Allow-Methods", p.methods)

	allowed := p.allowedHeaders
	if allowed == "" {
		allowed = req.Header("Access-Control-Request-Headers")
	}
	if allowed != "" {
		res.AddHeader("Access-Control-Allow-Headers", allowed)
	}

	return res.Send(http.StatusNoContent, nil)
}
