// Package server runs a router on its transport and shuts it down
// gracefully.
//
//	cfg := server.Config{}
//	_ = config.Load(&cfg)
//
//	srv, err := server.New(r, cfg, server.WithLogger(log))
//	if err != nil {
//		return err // e.g. ErrMissingTLSOptions
//	}
//	return srv.Run(ctx)
//
// Run freezes the router, binds the listen address and blocks until ctx is
// cancelled or SIGINT/SIGTERM arrives. Shutdown runs exactly once: the
// listening socket is closed first so no new connections are accepted,
// then in-flight requests get the configured grace period to complete.
// A bind failure is returned from Run.
package server
