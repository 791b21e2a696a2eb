// Package ratelimiter decides whether a keyed caller may proceed.
//
// Two backends implement Limiter:
//
//   - Memory keeps one golang.org/x/time/rate token bucket per key and
//     evicts buckets that have been idle for longer than the stale
//     threshold. It suits a single process.
//   - Redis counts requests in fixed windows with INCR and PEXPIRE, so
//     several processes can share one budget.
//
// Usage:
//
//	limiter := ratelimiter.NewMemory(ratelimiter.Config{Rate: 10, Burst: 20})
//	go limiter.Start(ctx)
//	defer limiter.Stop()
//
//	res, err := limiter.Allow(ctx, remoteAddr)
//	if err != nil {
//		return err
//	}
//	if !res.Allowed {
//		// reject, retry after res.RetryAfter
//	}
package ratelimiter
