// Package static builds an in-memory index of a directory tree for
// serving through the response finalizer.
//
// Load walks the directory once at setup, reads every regular file into
// memory and assigns it a route under the base path and a MIME type from
// a fixed extension table. Files named index.html or index.htm are also
// reachable at the route of their directory:
//
//	idx, err := static.Load(ctx, "./public", "/app")
//	// /app, /app/index.html, /app/css/app.css ...
//
// Requests are then served from memory with no per-request I/O.
package static
