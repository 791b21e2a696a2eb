package ratelimiter

import "errors"

var (
	ErrInvalidConfig    = errors.New("invalid rate limiter configuration")
	ErrEmptyKey         = errors.New("rate limit key is empty")
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
	ErrAlreadyStarted   = errors.New("rate limiter cleanup already started")
	ErrNotStarted       = errors.New("rate limiter cleanup not started")
)
