package cli

import (
	"errors"
	"fmt"
)

// ErrTimeout reports that an expected prompt never appeared in time.
// Channel read errors wrap it so callers can test with errors.Is.
var ErrTimeout = errors.New("prompt match timed out")

// Reason classifies why a bring-up step failed.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonTimeout
	ReasonCancelled
	ReasonChannel
)

func (r Reason) String() string {
	switch r {
	case ReasonTimeout:
		return "timeout"
	case ReasonCancelled:
		return "cancelled"
	case ReasonChannel:
		return "channel"
	}
	return "none"
}

// NoTransitionError reports a transition request between non-adjacent
// command modes. This is a configuration bug, fatal and not retryable.
type NoTransitionError struct {
	From string
	To   string
}

func (e *NoTransitionError) Error() string {
	return fmt.Sprintf("no transition defined between command modes: '%s' => '%s'", e.From, e.To)
}

// BringUpError reports a failed bring-up step with full diagnostic
// context: which command was sent, what prompt was expected, and the raw
// output captured before the failure. Steps completed before Step had
// their side effects applied on the device and are not rolled back.
type BringUpError struct {
	Step    int    // zero-based index of the failing step
	Command string // command text sent
	Mode    string // expected command mode
	Pattern string // expected prompt pattern
	Output  []byte // raw unmatched output
	Reason  Reason
	Err     error
}

func (e *BringUpError) Error() string {
	return fmt.Sprintf("bring-up: step %d failed (%s): sent=[%s] expected mode '%s' prompt [%s]: %v - output=[%s]",
		e.Step, e.Reason, e.Command, e.Mode, e.Pattern, e.Err, e.Output)
}

func (e *BringUpError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the step failed waiting for its prompt.
func (e *BringUpError) Timeout() bool {
	return e.Reason == ReasonTimeout
}
