// Command relay runs the demo service: a random number resource, a JSON
// echo endpoint, Prometheus metrics and an optional static directory.
//
// Configuration comes from the environment (see app.Config). RELAY_CONFIG
// points at an optional YAML file loaded underneath the environment.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/dmitrymomot/relay/app"
	"github.com/dmitrymomot/relay/core/logger"
)

const defaultStaticDir = "./public"

func main() {
	ctx := context.Background()

	cfg, err := app.Load(os.Getenv("RELAY_CONFIG"))
	if err != nil {
		fatal("load config", err)
	}
	if cfg.StaticDir == "" {
		if fi, err := os.Stat(defaultStaticDir); err == nil && fi.IsDir() {
			cfg.StaticDir = defaultStaticDir
		}
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		fatal("build app", err)
	}
	if err := mount(a.Router()); err != nil {
		fatal("mount resources", err)
	}

	if err := a.Run(ctx); err != nil {
		a.Logger().Error("relay stopped", logger.Error(err))
		os.Exit(1)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, logger.Error(err))
	os.Exit(1)
}
