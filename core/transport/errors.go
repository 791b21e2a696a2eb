package transport

import "errors"

var (
	ErrResponseEnded    = errors.New("response already ended")
	ErrInvalidMethod    = errors.New("invalid HTTP method")
	ErrInvalidPattern   = errors.New("routing pattern must begin with '/'")
	ErrDuplicateParam   = errors.New("routing pattern contains duplicate param key")
	ErrEmptyParam       = errors.New("routing pattern contains a param without a name")
	ErrWildcardPosition = errors.New("wildcard '*' must be the last segment of a route")
	ErrDuplicateRoute   = errors.New("route already registered")
)
