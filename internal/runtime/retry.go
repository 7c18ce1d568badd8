package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/quill/internal/logging"
	"github.com/aretw0/quill/pkg/domain"
)

// Sleeper blocks for d or until ctx is done, whichever comes first.
// It returns ctx.Err() when interrupted.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper, backed by a timer.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Supervisor wraps a stage invocation with bounded retry and exponential backoff.
// The wait is scoped to a single invocation and never affects other runs.
type Supervisor struct {
	sleep  Sleeper
	hooks  domain.LifecycleHooks
	logger *slog.Logger
}

// NewSupervisor creates a Supervisor. A nil sleeper uses SleepContext and a nil
// logger discards output.
func NewSupervisor(sleep Sleeper, hooks domain.LifecycleHooks, logger *slog.Logger) *Supervisor {
	if sleep == nil {
		sleep = SleepContext
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Supervisor{sleep: sleep, hooks: hooks, logger: logger}
}

// Invoke runs stage.Compute until it succeeds, the policy gives up, or ctx is done.
//
// On failure it returns a *domain.RunError of kind FailureFatal (unretryable or
// attempts exhausted) or FailureCancelled (ctx done during compute or backoff).
// The Log field of the error is left for the caller to fill in.
func (s *Supervisor) Invoke(ctx context.Context, stage domain.StageDefinition, log domain.MessageLog) (domain.Message, int, error) {
	policy := stage.Retry
	if err := policy.Validate(); err != nil {
		return domain.Message{}, 0, &domain.RunError{Kind: domain.FailureFatal, Stage: stage.Name, Err: err}
	}

	runID, _ := domain.RunIDFromContext(ctx)
	for attempt := 1; ; attempt++ {
		msg, err := compute(ctx, stage, log)
		if err == nil {
			return msg, attempt, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Message{}, attempt, &domain.RunError{
				Kind: domain.FailureCancelled, Stage: stage.Name, Attempts: attempt, Err: errors.Join(ctxErr, err),
			}
		}

		if attempt >= policy.MaxAttempts || !policy.IsRetryable(err) {
			return domain.Message{}, attempt, &domain.RunError{
				Kind: domain.FailureFatal, Stage: stage.Name, Attempts: attempt, Err: err,
			}
		}

		delay := policy.DelayFor(attempt, err)
		s.logger.Warn("stage attempt failed, retrying",
			domain.KeyRunID, runID,
			domain.KeyStage, stage.Name,
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"delay", delay,
			"error", err,
		)
		if s.hooks.OnRetry != nil {
			s.hooks.OnRetry(ctx, &domain.RetryEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRetry, RunID: runID},
				Stage:     stage.Name,
				Attempt:   attempt,
				Delay:     delay,
				Err:       err,
			})
		}

		if sleepErr := s.sleep(ctx, delay); sleepErr != nil {
			return domain.Message{}, attempt, &domain.RunError{
				Kind: domain.FailureCancelled, Stage: stage.Name, Attempts: attempt, Err: sleepErr,
			}
		}
	}
}

// compute calls the stage function, turning a panic into an ordinary error so
// the retry policy and the run error see it like any other failure.
func compute(ctx context.Context, stage domain.StageDefinition, log domain.MessageLog) (msg domain.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", stage.Name, r)
		}
	}()
	return stage.Compute(ctx, log)
}
