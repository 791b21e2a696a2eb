package response

import "time"

// Outcome classifies what happened to a terminal operation.
type Outcome string

const (
	// OutcomeWritten means the response was written to the transport.
	OutcomeWritten Outcome = "written"
	// OutcomeAborted means the client was gone; nothing was written.
	OutcomeAborted Outcome = "aborted"
	// OutcomeDuplicate means the response had already been finalized.
	OutcomeDuplicate Outcome = "duplicate"
)

// Observer is notified of every terminal operation.
type Observer interface {
	ObserveResponse(method string, status int, outcome Outcome, size int, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveResponse(string, int, Outcome, int, time.Duration) {}
