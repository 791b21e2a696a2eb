package server

import "errors"

var (
	ErrMissingTLSOptions    = errors.New("ssl enabled but tls cert or key file missing")
	ErrFailedLoadCert       = errors.New("failed to load certificate")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrListen               = errors.New("failed to listen")
	ErrShutdown             = errors.New("graceful shutdown failed")
	ErrNilRouter            = errors.New("router is required")
	ErrUnknownTLSProfile    = errors.New("unknown tls profile")
)
