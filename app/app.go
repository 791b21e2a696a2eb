package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/relay/core/health"
	"github.com/dmitrymomot/relay/core/logger"
	"github.com/dmitrymomot/relay/core/metrics"
	"github.com/dmitrymomot/relay/core/response"
	"github.com/dmitrymomot/relay/core/router"
	"github.com/dmitrymomot/relay/core/server"
	"github.com/dmitrymomot/relay/core/transport"
	"github.com/dmitrymomot/relay/core/transport/fasthttp"
	"github.com/dmitrymomot/relay/core/transport/nethttp"
	"github.com/dmitrymomot/relay/middleware"
	"github.com/dmitrymomot/relay/pkg/ratelimiter"
)

// App wires a router to a server. Resources are added through Router
// before Run.
type App struct {
	cfg       Config
	logger    *slog.Logger
	transport transport.Transport
	router    *router.Router
	server    *server.Server
	metrics   *metrics.Collector

	limiter ratelimiter.Limiter
	memory  *ratelimiter.Memory
	redis   *redis.Client

	serverOpts []server.Option
	checks     []health.Check
	running    atomic.Bool
}

// Option configures an App.
type Option func(*App)

// WithLogger replaces the logger built from Config.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTransport replaces the transport selected by Config.Server.Transport.
func WithTransport(t transport.Transport) Option {
	return func(a *App) {
		if t != nil {
			a.transport = t
		}
	}
}

// WithLimiter replaces the configured rate limiter backend.
func WithLimiter(l ratelimiter.Limiter) Option {
	return func(a *App) {
		if l != nil {
			a.limiter = l
		}
	}
}

// WithReadinessChecks adds dependency probes to the readiness endpoint.
func WithReadinessChecks(checks ...health.Check) Option {
	return func(a *App) {
		a.checks = append(a.checks, checks...)
	}
}

// WithServerOptions passes options through to server.New.
func WithServerOptions(opts ...server.Option) Option {
	return func(a *App) {
		a.serverOpts = append(a.serverOpts, opts...)
	}
}

// New builds the service. ctx bounds the Redis connection check.
func New(ctx context.Context, cfg Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		l, err := newLogger(cfg)
		if err != nil {
			return nil, err
		}
		a.logger = l
	}

	if a.transport == nil {
		t, err := newTransport(cfg.Server, a.logger)
		if err != nil {
			return nil, err
		}
		a.transport = t
	}

	finOpts := []response.Option{response.WithLogger(a.logger)}
	if cfg.Metrics {
		a.metrics = metrics.New(metrics.WithNamespace(metricNamespace(cfg.Name)), metrics.WithRuntimeMetrics())
		finOpts = append(finOpts, response.WithObserver(a.metrics))
	}

	a.router = router.New(a.transport,
		router.WithFinalizer(response.NewFinalizer(finOpts...)),
		router.WithLogger(a.logger),
		router.WithDebug(cfg.Server.Debug),
		router.WithFallbackStatus(cfg.Server.FallbackStatus),
		router.WithRequestTimeout(cfg.Server.RequestTimeout),
	)

	if err := a.router.Use(
		middleware.RequestID(middleware.RequestIDConfig{}),
		middleware.ClientIP(middleware.ClientIPConfig{TrustProxyHeaders: cfg.TrustProxyHeaders}),
	); err != nil {
		return nil, err
	}

	if cfg.RateLimitEnabled {
		if err := a.setupRateLimit(ctx); err != nil {
			return nil, err
		}
	}

	if cfg.Health {
		if err := a.mountHealth(); err != nil {
			a.Close()
			return nil, err
		}
	}

	if a.metrics != nil {
		if err := a.router.AddResource(cfg.MetricsPath, a.metrics); err != nil {
			a.Close()
			return nil, fmt.Errorf("mount metrics: %w", err)
		}
	}

	srv, err := server.New(a.router, cfg.Server, append([]server.Option{server.WithLogger(a.logger)}, a.serverOpts...)...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.server = srv

	return a, nil
}

func (a *App) setupRateLimit(ctx context.Context) error {
	if a.limiter == nil {
		switch {
		case a.cfg.RedisURL != "":
			client, err := ratelimiter.Connect(ctx, a.cfg.RedisURL)
			if err != nil {
				return err
			}
			rl, err := ratelimiter.NewRedis(client, a.cfg.RedisRateLimit)
			if err != nil {
				_ = client.Close()
				return err
			}
			a.redis, a.limiter = client, rl
		default:
			a.memory = ratelimiter.NewMemory(a.cfg.RateLimit, ratelimiter.WithLogger(a.logger))
			a.limiter = a.memory
		}
	}

	step, err := middleware.RateLimit(middleware.RateLimitConfig{Limiter: a.limiter, Headers: true})
	if err != nil {
		a.Close()
		return err
	}
	return a.router.Use(step)
}

func (a *App) mountHealth() error {
	checks := a.checks
	if a.redis != nil {
		client := a.redis
		checks = append(checks, health.Check{Name: "redis", Fn: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	}
	if err := a.router.AddResource(path.Join(a.cfg.HealthPath, "live"), health.Liveness()); err != nil {
		return fmt.Errorf("mount liveness: %w", err)
	}
	if err := a.router.AddResource(path.Join(a.cfg.HealthPath, "ready"), health.Readiness(a.logger, checks...)); err != nil {
		return fmt.Errorf("mount readiness: %w", err)
	}
	return nil
}

// Router returns the router for resource registration.
func (a *App) Router() *router.Router { return a.router }

// Logger returns the service logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Config returns the configuration the App was built with.
func (a *App) Config() Config { return a.cfg }

// Server returns the underlying server.
func (a *App) Server() *server.Server { return a.server }

// Run mounts the static directory, starts the rate limiter cleanup and
// serves until ctx is done or a shutdown signal arrives.
func (a *App) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer a.Close()

	if a.cfg.StaticDir != "" {
		if err := a.router.ServeStatic(ctx, a.cfg.StaticDir, a.cfg.StaticBase); err != nil {
			return err
		}
	}

	if a.memory != nil {
		cleanupCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := a.memory.Start(cleanupCtx); err != nil && !errors.Is(err, ratelimiter.ErrAlreadyStarted) {
				a.logger.WarnContext(ctx, "rate limiter cleanup failed", logger.Error(err))
			}
		}()
		defer func() {
			cancel()
			<-done
		}()
	}

	a.logger.InfoContext(ctx, "starting",
		logger.Component("app"),
		slog.String("name", a.cfg.Name),
		slog.String("env", a.cfg.Env),
	)
	return a.server.Run(ctx)
}

// Close releases the Redis connection if one was opened. It is safe to
// call more than once.
func (a *App) Close() error {
	if a.redis == nil {
		return nil
	}
	err := a.redis.Close()
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}

func newLogger(cfg Config) (*slog.Logger, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	base := logger.WithDevelopment(cfg.Name)
	if cfg.Production() {
		base = logger.WithProduction(cfg.Name)
	}
	return logger.New(base, logger.WithLevel(level)), nil
}

func newTransport(cfg server.Config, log *slog.Logger) (transport.Transport, error) {
	switch cfg.Transport {
	case "", "nethttp", "net/http":
		return nethttp.New(
			nethttp.WithLogger(log),
			nethttp.WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout),
		), nil
	case "fasthttp":
		return fasthttp.New(
			fasthttp.WithLogger(log),
			fasthttp.WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout),
		), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, cfg.Transport)
	}
}

// metricNamespace maps name onto the Prometheus name charset.
func metricNamespace(name string) string {
	ns := []byte(name)
	for i, c := range ns {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9' && i > 0:
		default:
			ns[i] = '_'
		}
	}
	return string(ns)
}
