package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ComputeFunc transforms the log of a run into exactly one new message.
// It may block on an external call and may fail with any error.
type ComputeFunc func(ctx context.Context, log MessageLog) (Message, error)

// StageDefinition is a named unit of work in the graph.
type StageDefinition struct {
	Name    string
	Compute ComputeFunc
	Retry   RetryPolicy
}

// RetryPredicate decides whether a failed attempt may be retried.
type RetryPredicate func(error) bool

// RetryPolicy is a bounded-attempt, exponential-backoff recovery strategy
// for a single stage invocation.
type RetryPolicy struct {
	// MaxAttempts counts the first attempt; 1 disables retries.
	MaxAttempts int
	// InitialDelay is the wait between attempts 1 and 2.
	InitialDelay time.Duration
	// BackoffFactor multiplies the delay after every failed attempt.
	BackoffFactor float64
	// MaxDelay caps a single wait. Zero means uncapped.
	MaxDelay time.Duration
	// IsRetryable is required. There is no implicit "retry everything".
	IsRetryable RetryPredicate
}

// NoRetry is the policy of a stage that must succeed on its first attempt.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, BackoffFactor: 1, IsRetryable: RetryNever}
}

// Validate reports configuration errors in the policy.
func (p RetryPolicy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts must be >= 1, got %d", ErrInvalidPolicy, p.MaxAttempts)
	case p.BackoffFactor < 1:
		return fmt.Errorf("%w: backoff factor must be >= 1, got %g", ErrInvalidPolicy, p.BackoffFactor)
	case p.InitialDelay < 0 || p.MaxDelay < 0:
		return fmt.Errorf("%w: delays must not be negative", ErrInvalidPolicy)
	case p.IsRetryable == nil:
		return fmt.Errorf("%w: retry predicate is required", ErrInvalidPolicy)
	}
	return nil
}

// Delay returns the wait that follows the given failed attempt (1-indexed):
// InitialDelay * BackoffFactor^(attempt-1), capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.InitialDelay <= 0 {
		return 0
	}
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	d := float64(p.InitialDelay) * math.Pow(factor, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// DelayFor is Delay, raised to the wait the failure itself asks for (an error
// with a RetryDelay() method, such as an HTTP 429 with Retry-After). The
// raised wait is still capped at MaxDelay.
func (p RetryPolicy) DelayFor(attempt int, err error) time.Duration {
	d := p.Delay(attempt)
	var hinted interface{ RetryDelay() time.Duration }
	if !errors.As(err, &hinted) {
		return d
	}
	hint := hinted.RetryDelay()
	if hint <= d {
		return d
	}
	if p.MaxDelay > 0 && hint > p.MaxDelay {
		return p.MaxDelay
	}
	return hint
}

// RetryNever never retries.
func RetryNever(error) bool { return false }

// RetryAlways retries every error except cancellation.
// It is the blanket retry-on-anything policy and must be opted into explicitly.
func RetryAlways(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// RetryTransient retries errors marked with Transient and errors that describe
// themselves as temporary or timed out (net.Error and friends).
func RetryTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}
	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// TransientError marks a failure that is expected to succeed on retry
// (rate limits, unavailable upstreams, dropped connections).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so RetryTransient accepts it. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}
