package pipeline

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrymomot/relay/core/response"
)

// ErrTimeout fails a run whose request deadline passed.
var ErrTimeout = response.ErrGatewayTimeout.WithMessage("request timed out")

// StepError wraps the error returned by the step at Index.
type StepError struct {
	Index int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pipeline step %d: %v", e.Index, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StatusCode maps the failure onto a 5xx status. Errors that carry a
// server error status keep it; anything else becomes 500.
func (e *StepError) StatusCode() int {
	var sc interface{ StatusCode() int }
	if errors.As(e.Err, &sc) {
		if s := sc.StatusCode(); s >= 500 && s <= 599 {
			return s
		}
	}
	return http.StatusInternalServerError
}
