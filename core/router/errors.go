package router

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/relay/core/transport"
)

var (
	ErrFrozen        = errors.New("router is frozen: register routes before the server starts")
	ErrInvalidMethod = errors.New("invalid HTTP method")
	ErrNilHandler    = errors.New("handler cannot be nil")
	ErrNilResource   = errors.New("resource cannot be nil")
	ErrNoVerbs       = errors.New("resource declares no verbs")
	ErrDuplicateBase = errors.New("static base path already served")
	// ErrDuplicateRoute is returned when a method and pattern pair is
	// registered twice, by resources or static files.
	ErrDuplicateRoute = transport.ErrDuplicateRoute
	ErrNoResponse    = errors.New("handler returned without finalizing the response")
)

// panicError carries a recovered panic value and the stack at recovery.
type panicError struct {
	value any
	stack []byte
}

func (e panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
