// Package logger builds slog loggers for relay services and provides
// attribute helpers for the fields the dispatch layer logs.
//
//	log := logger.New(
//		logger.WithLevel(slog.LevelDebug),
//		logger.WithJSONFormatter(),
//		logger.WithAttr(slog.String("service", "relay")),
//		logger.WithContextValue("request_id", requestIDKey),
//	)
//
//	log.InfoContext(ctx, "route attached",
//		logger.Component("router"),
//		logger.Method("GET"),
//		logger.Route("/random/:number"),
//	)
//
// Context extractors pull request-scoped values into every record logged
// with a *Context method, so per-request fields need no explicit plumbing.
// All helpers return an empty Attr for empty input, which slog drops.
package logger
