package response

import "time"

type call struct {
	headers     map[string]any
	contentType string
	cache       *time.Duration
	noBranding  bool
}

// SendOption adjusts a single Send or Render call.
type SendOption func(*call)

func newCall(opts []SendOption) call {
	var c call
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithHeaders adds caller headers. Names are written as given and values
// are formatted with fmt.Sprint. A caller header replaces a default header
// of the same name.
func WithHeaders(headers map[string]any) SendOption {
	return func(c *call) {
		if c.headers == nil {
			c.headers = make(map[string]any, len(headers))
		}
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithHeader adds a single caller header.
func WithHeader(name string, value any) SendOption {
	return WithHeaders(map[string]any{name: value})
}

// WithContentType overrides the inferred content type.
func WithContentType(ct string) SendOption {
	return func(c *call) {
		c.contentType = ct
	}
}

// WithCache overrides the Cache-Control max-age for this call.
func WithCache(d time.Duration) SendOption {
	return func(c *call) {
		if d < 0 {
			d = 0
		}
		c.cache = &d
	}
}

// NoBranding skips the Server and X-Powered-By headers for this call.
func NoBranding() SendOption {
	return func(c *call) {
		c.noBranding = true
	}
}
