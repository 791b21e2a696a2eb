package logger

import (
	"log/slog"
	"runtime"
	"time"
)

// Group nests attrs under name.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error logs err under "error". Nil errors yield an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Duration logs d under "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Elapsed logs the time since start under "elapsed".
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}

// RequestID logs the request identifier.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// Method logs an HTTP method.
func Method(method string) slog.Attr {
	return slog.String("method", method)
}

// Path logs a request path.
func Path(path string) slog.Attr {
	return slog.String("path", path)
}

// Route logs a route pattern.
func Route(pattern string) slog.Attr {
	return slog.String("route", pattern)
}

// StatusCode logs an HTTP status.
func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

// Remote logs the peer address.
func Remote(addr string) slog.Attr {
	if addr == "" {
		return slog.Attr{}
	}
	return slog.String("remote", addr)
}

// Addr logs a listen address.
func Addr(addr string) slog.Attr {
	return slog.String("addr", addr)
}

// Component logs the emitting component.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event logs a lifecycle event name.
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Count logs n under key.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Key logs an arbitrary value. Nil values yield an empty Attr.
func Key(key string, value any) slog.Attr {
	if value == nil {
		return slog.Attr{}
	}
	return slog.Any(key, value)
}

// Stack captures the current goroutine stack.
func Stack() slog.Attr {
	buf := make([]byte, 64<<10)
	buf = buf[:runtime.Stack(buf, false)]
	return slog.String("stack", string(buf))
}
