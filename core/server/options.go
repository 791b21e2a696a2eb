package server

import (
	"log/slog"
	"os"
	"time"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithShutdownGrace overrides Config.ShutdownGrace.
func WithShutdownGrace(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithSignals replaces the shutdown signals. No signals disables signal
// handling, leaving ctx as the only way to stop Run.
func WithSignals(sigs ...os.Signal) Option {
	return func(s *Server) {
		s.signals = sigs
	}
}
