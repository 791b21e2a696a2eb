package app

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/relay/core/config"
	"github.com/dmitrymomot/relay/core/server"
	"github.com/dmitrymomot/relay/pkg/ratelimiter"
)

// Config is the full service configuration.
type Config struct {
	Server         server.Config           `yaml:"server"`
	RateLimit      ratelimiter.Config      `yaml:"rate_limit"`
	RedisRateLimit ratelimiter.RedisConfig `yaml:"redis_rate_limit"`

	Name     string `env:"APP_NAME" envDefault:"relay" yaml:"name"`
	Env      string `env:"APP_ENV" envDefault:"development" yaml:"env"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" yaml:"log_level"`

	Metrics     bool   `env:"METRICS_ENABLED" envDefault:"true" yaml:"metrics"`
	MetricsPath string `env:"METRICS_PATH" envDefault:"/metrics" yaml:"metrics_path"`

	Health     bool   `env:"HEALTH_ENABLED" envDefault:"true" yaml:"health"`
	HealthPath string `env:"HEALTH_PATH" envDefault:"/health" yaml:"health_path"`

	// StaticDir is mounted at StaticBase on Run when set.
	StaticDir  string `env:"STATIC_DIR" yaml:"static_dir"`
	StaticBase string `env:"STATIC_BASE" envDefault:"/" yaml:"static_base"`

	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true" yaml:"rate_limit_enabled"`
	// RedisURL switches the rate limiter to the shared Redis backend.
	RedisURL          string `env:"REDIS_URL" yaml:"redis_url"`
	TrustProxyHeaders bool   `env:"TRUST_PROXY_HEADERS" yaml:"trust_proxy_headers"`
}

// Load reads Config from the environment, layered over the YAML file at
// path when path is not empty.
func Load(path string) (Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = config.LoadFile(path, &cfg)
	} else {
		err = config.Load(&cfg)
	}
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Production reports whether Env names a production deployment.
func (c Config) Production() bool {
	switch strings.ToLower(c.Env) {
	case "production", "prod":
		return true
	}
	return false
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, s)
	}
	return l, nil
}
