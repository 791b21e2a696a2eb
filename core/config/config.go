package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrNilConfig = errors.New("config target is nil")
	ErrParse     = errors.New("failed to parse config")
	ErrReadFile  = errors.New("failed to read config file")
)

var (
	dotenvOnce sync.Once

	cacheMu sync.Mutex
	cache   = map[reflect.Type]any{}
)

func loadDotenv() {
	dotenvOnce.Do(func() {
		// A missing .env is the normal case outside development.
		_ = godotenv.Load()
	})
}

// Load fills cfg from the environment. The first successful call for a
// type is cached; later calls return the cached value.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilConfig
	}

	typ := reflect.TypeFor[T]()

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached, ok := cache[typ]; ok {
		*cfg = cached.(T)
		return nil
	}

	loadDotenv()

	var fresh T
	if err := env.Parse(&fresh); err != nil {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}
	cache[typ] = fresh
	*cfg = fresh
	return nil
}

// MustLoad is like Load but panics on error.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

// LoadFile layers configuration: envDefault values, then the YAML file
// at path, then environment variables that are actually set. Keys the
// file leaves out keep their defaults, and a file value of false or 0
// is kept. Results are not cached.
func LoadFile[T any](path string, cfg *T) error {
	if cfg == nil {
		return ErrNilConfig
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReadFile, err)
	}

	loadDotenv()

	var fresh T
	if err := env.Parse(&fresh); err != nil {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}
	if err := yaml.Unmarshal(data, &fresh); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}
	// Second pass without defaults: only variables present in the
	// environment override the file.
	if err := env.ParseWithOptions(&fresh, env.Options{DefaultValueTagName: noDefaultTag}); err != nil {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}

	*cfg = fresh
	return nil
}

// noDefaultTag is a struct tag no config type uses.
const noDefaultTag = "configNoDefault"

// Reset drops every cached configuration. Intended for tests.
func Reset() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	clear(cache)
}
