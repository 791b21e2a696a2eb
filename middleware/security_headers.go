package middleware

import (
	"github.com/dmitrymomot/relay/core/pipeline"
	"github.com/dmitrymomot/relay/core/request"
	"github.com/dmitrymomot/relay/core/response"
)

// SecurityHeadersConfig lists the security headers to add. Empty fields
// are skipped.
type SecurityHeadersConfig struct {
	ContentTypeOptions        string
	FrameOptions              string
	StrictTransportSecurity   string
	ContentSecurityPolicy     string
	ReferrerPolicy            string
	PermissionsPolicy         string
	CrossOriginOpenerPolicy   string
	CrossOriginResourcePolicy string
	// Extra headers are added after the named ones, in order.
	Extra [][2]string
}

var (
	// StrictSecurity suits APIs and pages without third-party resources.
	StrictSecurity = SecurityHeadersConfig{
		ContentTypeOptions:        "nosniff",
		FrameOptions:              "DENY",
		StrictTransportSecurity:   "max-age=63072000; includeSubDomains; preload",
		ContentSecurityPolicy:     "default-src 'none'; frame-ancestors 'none'; base-uri 'self'",
		ReferrerPolicy:            "no-referrer",
		PermissionsPolicy:         "camera=(), geolocation=(), microphone=(), payment=(), usb=()",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
	}

	// BalancedSecurity suits most sites serving their own static assets.
	BalancedSecurity = SecurityHeadersConfig{
		ContentTypeOptions:        "nosniff",
		FrameOptions:              "SAMEORIGIN",
		StrictTransportSecurity:   "max-age=31536000; includeSubDomains",
		ContentSecurityPolicy:     "default-src 'self'; img-src 'self' data: https:; style-src 'self' 'unsafe-inline'",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		PermissionsPolicy:         "geolocation=(), microphone=(), camera=()",
		CrossOriginOpenerPolicy:   "same-origin-allow-popups",
		CrossOriginResourcePolicy: "cross-origin",
	}
)

// SecurityHeaders queues the configured headers on every response.
func SecurityHeaders(cfg SecurityHeadersConfig) pipeline.Step {
	named := [][2]string{
		{"X-Content-Type-Options", cfg.ContentTypeOptions},
		{"X-Frame-Options", cfg.FrameOptions},
		{"Strict-Transport-Security", cfg.StrictTransportSecurity},
		{"Content-Security-Policy", cfg.ContentSecurityPolicy},
		{"Referrer-Policy", cfg.ReferrerPolicy},
		{"Permissions-Policy", cfg.PermissionsPolicy},
		{"Cross-Origin-Opener-Policy", cfg.CrossOriginOpenerPolicy},
		{"Cross-Origin-Resource-Policy", cfg.CrossOriginResourcePolicy},
	}

	headers := make([][2]string, 0, len(named)+len(cfg.Extra))
	for _, h := range append(named, cfg.Extra...) {
		if h[0] != "" && h[1] != "" {
			headers = append(headers, h)
		}
	}

	return func(res *response.Handle, _ *request.Context) error {
		for _, h := range headers {
			res.AddHeader(h[0], h[1])
		}
		return nil
	}
}
