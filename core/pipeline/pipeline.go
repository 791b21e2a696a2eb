// Package pipeline runs the ordered middleware steps that precede every
// resource handler.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/relay/core/request"
	"github.com/dmitrymomot/relay/core/response"
)

// ErrFrozen is returned by Use once the pipeline has been frozen.
var ErrFrozen = errors.New("pipeline is frozen")

// Step is a single middleware. Returning an error fails the request; a
// step may also finish the response itself, which ends the run without
// an error.
type Step func(res *response.Handle, req *request.Context) error

// Pipeline is an append-only list of steps that becomes immutable on
// Freeze. Run is safe for concurrent use.
type Pipeline struct {
	mu     sync.Mutex
	steps  atomic.Pointer[[]Step]
	frozen atomic.Bool
}

// New creates a pipeline with the given steps.
func New(steps ...Step) *Pipeline {
	p := &Pipeline{}
	s := append([]Step(nil), steps...)
	p.steps.Store(&s)
	return p
}

// Use appends steps. It fails with ErrFrozen after Freeze.
func (p *Pipeline) Use(steps ...Step) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frozen.Load() {
		return ErrFrozen
	}
	for _, s := range steps {
		if s == nil {
			return errors.New("pipeline step cannot be nil")
		}
	}

	cur := *p.steps.Load()
	next := make([]Step, 0, len(cur)+len(steps))
	next = append(next, cur...)
	next = append(next, steps...)
	p.steps.Store(&next)
	return nil
}

// Freeze rejects further Use calls.
func (p *Pipeline) Freeze() {
	p.frozen.Store(true)
}

// Frozen reports whether Freeze was called.
func (p *Pipeline) Frozen() bool {
	return p.frozen.Load()
}

// Len returns the number of registered steps.
func (p *Pipeline) Len() int {
	return len(*p.steps.Load())
}

// Run executes the steps in registration order and stops at the first
// error. It also stops, without error, as soon as the response is
// finished or aborted. A request context that expired between steps
// fails the run with ErrTimeout.
func (p *Pipeline) Run(res *response.Handle, req *request.Context) error {
	for i, step := range *p.steps.Load() {
		if stop, err := interrupted(res, req); stop {
			return err
		}
		if err := step(res, req); err != nil {
			return &StepError{Index: i, Err: err}
		}
	}
	_, err := interrupted(res, req)
	return err
}

func interrupted(res *response.Handle, req *request.Context) (bool, error) {
	if res.Closed() {
		return true, nil
	}
	if err := req.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return true, ErrTimeout
		}
		return true, nil
	}
	return false, nil
}
