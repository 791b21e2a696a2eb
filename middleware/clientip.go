package middleware

import (
	"net"
	"strings"

	"github.com/dmitrymomot/relay/core/pipeline"
	"github.com/dmitrymomot/relay/core/request"
	"github.com/dmitrymomot/relay/core/response"
)

type clientIPKey struct{}

// ClientIPConfig configures ClientIP.
type ClientIPConfig struct {
	// TrustProxyHeaders reads CF-Connecting-IP, X-Real-IP and
	// X-Forwarded-For before the peer address. Enable it only behind a
	// proxy that overwrites these headers.
	TrustProxyHeaders bool
}

// ClientIP resolves the client address and stores it on the request.
func ClientIP(cfg ClientIPConfig) pipeline.Step {
	return func(_ *response.Handle, req *request.Context) error {
		req.SetValue(clientIPKey{}, resolveIP(req.Snapshot, cfg.TrustProxyHeaders))
		return nil
	}
}

// GetClientIP returns the address stored by ClientIP.
func GetClientIP(req *request.Context) (string, bool) {
	ip, ok := req.Value(clientIPKey{}).(string)
	return ip, ok
}

func resolveIP(s request.Snapshot, trustProxy bool) string {
	if trustProxy {
		for _, name := range []string{"CF-Connecting-IP", "X-Real-IP"} {
			if ip := validIP(s.Header(name)); ip != "" {
				return ip
			}
		}
		if xff := s.Header("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := validIP(first); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(s.RemoteAddr)
	if err != nil {
		return s.RemoteAddr
	}
	return host
}

func validIP(v string) string {
	v = strings.TrimSpace(v)
	if net.ParseIP(v) == nil {
		return ""
	}
	return v
}
