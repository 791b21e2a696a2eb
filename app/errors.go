package app

import "errors"

var (
	ErrUnknownTransport = errors.New("unknown transport")
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrAlreadyRunning   = errors.New("app is already running")
)
