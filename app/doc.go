// Package app assembles a relay service from configuration: logger,
// transport, response finalizer with metrics, router with the default
// middleware, rate limiter and server.
//
//	cfg, err := app.Load("")
//	if err != nil {
//		log.Fatal(err)
//	}
//	a, err := app.New(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	_ = a.Router().AddResource("/hello", hello)
//	if err := a.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// Settings come from the environment (and .env), optionally layered over
// a YAML file. See Config for the variable names.
package app
