// Package response terminates responses exactly once.
//
// A Finalizer holds the process-wide defaults (branding, cache policy,
// clock, observer). For every request the router wraps the transport
// response in a Handle; Send and Render are the only terminal operations:
//
//	f := response.NewFinalizer(response.WithBranding("relay", "relay"))
//	res := f.Wrap(ctx, transportResponse)
//	defer res.Release()
//
//	res.Send(http.StatusOK, map[string]int{"double": 42})
//	res.Send(http.StatusOK, "again") // no-op, returns nil
//
// Each terminal write emits the status, Date, Cache-Control (max-age=0 for
// Send, max-age=3600 for Render), Content-Type, headers queued with
// AddHeader, per-call headers and the Server / X-Powered-By branding. Once
// the client has aborted, nothing is written at all.
package response
