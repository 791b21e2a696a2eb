package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/relay/core/logger"
	"github.com/dmitrymomot/relay/core/router"
	"github.com/dmitrymomot/relay/core/transport"
)

// Server owns the listening socket of a router's transport.
type Server struct {
	router  *router.Router
	cfg     Config
	tls     *tls.Config
	grace   time.Duration
	signals []os.Signal
	logger  *slog.Logger

	running  atomic.Bool
	ready    chan struct{}
	mu       sync.Mutex
	socket   transport.Socket
	stopOnce sync.Once
	stopErr  error
}

// New validates cfg and prepares a server for r. SSL without certificate
// files fails with ErrMissingTLSOptions.
func New(r *router.Router, cfg Config, opts ...Option) (*Server, error) {
	if r == nil {
		return nil, ErrNilRouter
	}

	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:  r,
		cfg:     cfg,
		tls:     tlsCfg,
		grace:   cfg.ShutdownGrace,
		signals: shutdownSignals,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		ready:   make(chan struct{}),
	}
	if s.grace <= 0 {
		s.grace = DefaultShutdownGrace
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run serves until ctx is done or a shutdown signal arrives, then shuts
// down gracefully. It returns the listen error, the shutdown error, or nil.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}

	if len(s.signals) > 0 {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, s.signals...)
		defer stop()
	}

	s.router.Freeze()

	tr := s.router.Transport()
	addr := s.cfg.Addr()
	sock, err := tr.Listen(ctx, addr, s.tls)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to listen",
			logger.Component("server"),
			logger.Addr(addr),
			logger.Error(err),
		)
		return fmt.Errorf("%w on %s: %w", ErrListen, addr, err)
	}

	s.mu.Lock()
	s.socket = sock
	s.mu.Unlock()
	close(s.ready)

	s.logger.InfoContext(ctx, "server listening",
		logger.Component("server"),
		logger.Addr(sock.Addr().String()),
		slog.String("transport", tr.Name()),
		slog.Bool("tls", s.tls != nil),
		logger.Count("routes", len(s.router.Routes())),
	)
	if s.cfg.Debug {
		s.logger.WarnContext(ctx, "debug mode is enabled, do not use it in production",
			logger.Component("server"))
	}

	<-ctx.Done()
	return s.shutdown()
}

// Ready is closed once the socket is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.socket == nil {
		return nil
	}
	return s.socket.Addr()
}

// shutdown closes the listener and drains in-flight requests. Only the
// first call does any work.
func (s *Server) shutdown() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		sock := s.socket
		s.mu.Unlock()
		if sock == nil {
			return
		}

		start := time.Now()
		s.logger.Info("shutting down", logger.Component("server"), slog.Duration("grace", s.grace))

		if err := sock.Close(); err != nil {
			s.logger.Warn("failed to close listener", logger.Component("server"), logger.Error(err))
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.grace)
		defer cancel()

		if err := sock.Shutdown(ctx); err != nil {
			s.stopErr = fmt.Errorf("%w: %w", ErrShutdown, err)
			s.logger.Error("graceful shutdown failed", logger.Component("server"), logger.Error(err))
			return
		}
		s.logger.Info("server stopped", logger.Component("server"), logger.Elapsed(start))
	})
	return s.stopErr
}
