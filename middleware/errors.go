package middleware

import (
	"errors"

	"github.com/dmitrymomot/relay/core/response"
)

var (
	ErrInvalidCORSConfig = errors.New("invalid cors config")
	ErrNilLimiter        = errors.New("rate limiter is required")

	// ErrBodyAborted means the client went away before the body was complete.
	ErrBodyAborted = errors.New("request body aborted")
)

var (
	ErrBodyTooLarge = response.ErrRequestEntityTooLarge.WithMessage("request body too large")
	ErrBodyTimeout  = response.ErrGatewayTimeout.WithMessage("request body not received in time")
	ErrRateLimited  = response.ErrTooManyRequests.WithMessage("rate limit exceeded")
)
