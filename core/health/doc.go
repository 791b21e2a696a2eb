// Package health provides liveness and readiness resources.
//
//	_ = r.AddResource("/health/live", health.Liveness())
//	_ = r.AddResource("/health/ready", health.Readiness(logger,
//		health.Check{Name: "redis", Fn: func(ctx context.Context) error {
//			return client.Ping(ctx).Err()
//		}},
//	))
//
// Readiness runs every check concurrently under a per-probe timeout and
// answers 503 with the names of the failed checks when any of them fail.
package health
