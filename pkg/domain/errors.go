package domain

import (
	"errors"
	"fmt"
)

// ErrFatal matches (via errors.Is) any RunError of kind FailureFatal.
var ErrFatal = errors.New("fatal run error")

// ErrCancelled matches (via errors.Is) any RunError of kind FailureCancelled.
var ErrCancelled = errors.New("run cancelled")

// ErrUnknownStage is returned when the router selects a stage that is not registered.
var ErrUnknownStage = errors.New("unknown stage")

// ErrNoRoute is returned when a stage has no routing function.
var ErrNoRoute = errors.New("no route for stage")

// ErrStepLimit is returned when a run exceeds its maximum number of stage executions.
var ErrStepLimit = errors.New("step limit exceeded")

// ErrNoToolCalls is returned when a tool stage runs but the last message carries no requests.
var ErrNoToolCalls = errors.New("tool stage reached without tool-call requests")

// ErrInvalidPolicy is returned by RetryPolicy.Validate.
var ErrInvalidPolicy = errors.New("invalid retry policy")

// ErrToolNotFound is returned when a tool name cannot be resolved.
var ErrToolNotFound = errors.New("tool not found")

// ErrRunNotFound is returned when a transcript cannot be found in the store.
var ErrRunNotFound = errors.New("run not found")

// FailureKind classifies why a run halted.
type FailureKind int

const (
	// FailureFatal is an unretryable or exhausted stage failure, or a graph error.
	FailureFatal FailureKind = iota
	// FailureCancelled is a caller-initiated stop (context cancellation or deadline).
	FailureCancelled
)

func (k FailureKind) String() string {
	if k == FailureCancelled {
		return "cancelled"
	}
	return "fatal"
}

// RunError is surfaced when a run halts abnormally.
// Log holds every message appended before the failure, for diagnosis.
type RunError struct {
	Kind     FailureKind
	Stage    string
	Attempts int
	Log      MessageLog
	Err      error
}

func (e *RunError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("%s at stage %q after %d attempt(s): %v", e.Kind, e.Stage, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s at stage %q: %v", e.Kind, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Is lets callers test the failure kind with errors.Is(err, ErrFatal) or ErrCancelled.
func (e *RunError) Is(target error) bool {
	switch target {
	case ErrFatal:
		return e.Kind == FailureFatal
	case ErrCancelled:
		return e.Kind == FailureCancelled
	}
	return false
}

// PartialLog extracts the log attached to a RunError, if any.
func PartialLog(err error) (MessageLog, bool) {
	var re *RunError
	if errors.As(err, &re) {
		return re.Log, true
	}
	return MessageLog{}, false
}
