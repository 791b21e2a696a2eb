package middleware

import (
	"github.com/google/uuid"

	"github.com/dmitrymomot/relay/core/pipeline"
	"github.com/dmitrymomot/relay/core/request"
	"github.com/dmitrymomot/relay/core/response"
)

const DefaultRequestIDHeader = "X-Request-ID"

// RequestIDKey is the request value key of the request id. It is exported
// so loggers can extract it, see logger.WithContextValue.
type RequestIDKey struct{}

// RequestIDConfig configures RequestID.
type RequestIDConfig struct {
	// Header names the request and response header. Defaults to X-Request-ID.
	Header string
	// Generator creates new ids. Defaults to UUID v4.
	Generator func() string
	// TrustIncoming reuses a non-empty id sent by the client.
	TrustIncoming bool
}

// RequestID assigns every request an id, stores it on the request and
// echoes it in the response header.
func RequestID(cfg RequestIDConfig) pipeline.Step {
	if cfg.Header == "" {
		cfg.Header = DefaultRequestIDHeader
	}
	if cfg.Generator == nil {
		cfg.Generator = uuid.NewString
	}

	return func(res *response.Handle, req *request.Context) error {
		var id string
		if cfg.TrustIncoming {
			id = req.Header(cfg.Header)
		}
		if id == "" {
			id = cfg.Generator()
		}

		req.SetValue(RequestIDKey{}, id)
		res.AddHeader(cfg.Header, id)
		return nil
	}
}

// GetRequestID returns the id assigned by RequestID.
func GetRequestID(req *request.Context) (string, bool) {
	id, ok := req.Value(RequestIDKey{}).(string)
	return id, ok
}
