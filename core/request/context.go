package request

import (
	"context"
)

// Context carries one request through the pipeline. The embedded
// context.Context is cancelled when the client aborts, so every blocking
// step can select on Done. A Context belongs to a single request and is
// not safe for concurrent use.
type Context struct {
	context.Context
	Snapshot

	values map[any]any
	marks  map[any]struct{}
}

// NewContext binds a snapshot to ctx.
func NewContext(ctx context.Context, s Snapshot) *Context {
	return &Context{Context: ctx, Snapshot: s}
}

// SetValue attaches a request-scoped value.
func (c *Context) SetValue(key, val any) {
	if c.values == nil {
		c.values = make(map[any]any)
	}
	c.values[key] = val
}

// Value returns a value set with SetValue, falling back to the
// underlying context.
func (c *Context) Value(key any) any {
	if v, ok := c.values[key]; ok {
		return v
	}
	return c.Context.Value(key)
}

// Mark sets the marker for key and reports whether it was unset before.
// Steps use it to run their work at most once per request.
func (c *Context) Mark(key any) bool {
	if _, ok := c.marks[key]; ok {
		return false
	}
	if c.marks == nil {
		c.marks = make(map[any]struct{})
	}
	c.marks[key] = struct{}{}
	return true
}

// Marked reports whether Mark was called for key.
func (c *Context) Marked(key any) bool {
	_, ok := c.marks[key]
	return ok
}
