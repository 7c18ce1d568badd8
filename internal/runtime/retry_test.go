package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/quill/internal/runtime"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSleeper records requested waits and returns immediately.
type fakeSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	onWait func()
}

func (f *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.delays = append(f.delays, d)
	hook := f.onWait
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return ctx.Err()
}

func (f *fakeSleeper) Delays() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.delays...)
}

func defaultPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		BackoffFactor: 2,
		IsRetryable:   domain.RetryAlways,
	}
}

// failingN fails the first n calls and then returns "ok".
func failingN(n int, err error) (domain.ComputeFunc, *int) {
	calls := 0
	return func(context.Context, domain.MessageLog) (domain.Message, error) {
		calls++
		if calls <= n {
			return domain.Message{}, err
		}
		return domain.NewStageOutput("ok"), nil
	}, &calls
}

func TestSupervisor_RecoversAfterBackoff(t *testing.T) {
	sleeper := &fakeSleeper{}
	sup := runtime.NewSupervisor(sleeper.Sleep, domain.LifecycleHooks{}, nil)
	fn, calls := failingN(2, errors.New("flaky"))

	msg, attempts, err := sup.Invoke(context.Background(), domain.StageDefinition{Name: "research", Compute: fn, Retry: defaultPolicy()}, domain.MessageLog{})
	require.NoError(t, err)
	assert.Equal(t, "ok", msg.Content)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, *calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.Delays())
}

func TestSupervisor_ExhaustionIsFatal(t *testing.T) {
	sleeper := &fakeSleeper{}
	sup := runtime.NewSupervisor(sleeper.Sleep, domain.LifecycleHooks{}, nil)
	cause := errors.New("still down")
	fn, calls := failingN(10, cause)

	_, attempts, err := sup.Invoke(context.Background(), domain.StageDefinition{Name: "research", Compute: fn, Retry: defaultPolicy()}, domain.MessageLog{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFatal)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, *calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.Delays(), "no wait after the last attempt")
}

func TestSupervisor_UnretryableFailsImmediately(t *testing.T) {
	sleeper := &fakeSleeper{}
	sup := runtime.NewSupervisor(sleeper.Sleep, domain.LifecycleHooks{}, nil)
	fn, calls := failingN(10, errors.New("bad request"))
	policy := defaultPolicy()
	policy.IsRetryable = domain.RetryTransient

	_, attempts, err := sup.Invoke(context.Background(), domain.StageDefinition{Name: "write", Compute: fn, Retry: policy}, domain.MessageLog{})
	assert.ErrorIs(t, err, domain.ErrFatal)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, *calls)
	assert.Empty(t, sleeper.Delays())
}

func TestSupervisor_TransientIsRetried(t *testing.T) {
	sleeper := &fakeSleeper{}
	sup := runtime.NewSupervisor(sleeper.Sleep, domain.LifecycleHooks{}, nil)
	fn, _ := failingN(1, domain.Transient(errors.New("429")))
	policy := defaultPolicy()
	policy.IsRetryable = domain.RetryTransient

	_, attempts, err := sup.Invoke(context.Background(), domain.StageDefinition{Name: "write", Compute: fn, Retry: policy}, domain.MessageLog{})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

type rateLimited struct{ after time.Duration }

func (e *rateLimited) Error() string             { return "429 too many requests" }
func (e *rateLimited) RetryDelay() time.Duration { return e.after }

func TestSupervisor_HonorsServerRetryDelay(t *testing.T) {
	sleeper := &fakeSleeper{}
	sup := runtime.NewSupervisor(sleeper.Sleep, domain.LifecycleHooks{}, nil)
	fn, _ := failingN(2, &rateLimited{after: 7 * time.Second})
	policy := defaultPolicy()
	policy.MaxDelay = 5 * time.Second

	_, attempts, err := sup.Invoke(context.Background(), domain.StageDefinition{Name: "research", Compute: fn, Retry: policy}, domain.MessageLog{})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, sleeper.Delays())
}

func TestSupervisor_CancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sleeper := &fakeSleeper{onWait: cancel}
	sup := runtime.NewSupervisor(sleeper.Sleep, domain.LifecycleHooks{}, nil)
	fn, calls := failingN(10, errors.New("flaky"))

	_, attempts, err := sup.Invoke(ctx, domain.StageDefinition{Name: "research", Compute: fn, Retry: defaultPolicy()}, domain.MessageLog{})
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.False(t, errors.Is(err, domain.ErrFatal))
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, *calls, "no attempt after cancellation")
}

func TestSupervisor_RealSleepIsInterrupted(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	sup := runtime.NewSupervisor(nil, domain.LifecycleHooks{}, nil)
	fn, _ := failingN(10, errors.New("flaky"))
	policy := defaultPolicy()
	policy.InitialDelay = time.Hour

	start := time.Now()
	_, _, err := sup.Invoke(ctx, domain.StageDefinition{Name: "research", Compute: fn, Retry: policy}, domain.MessageLog{})
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSupervisor_PanicIsAnError(t *testing.T) {
	sup := runtime.NewSupervisor((&fakeSleeper{}).Sleep, domain.LifecycleHooks{}, nil)
	stage := domain.StageDefinition{
		Name:    "research",
		Compute: func(context.Context, domain.MessageLog) (domain.Message, error) { panic("boom") },
		Retry:   domain.NoRetry(),
	}

	_, _, err := sup.Invoke(context.Background(), stage, domain.MessageLog{})
	assert.ErrorIs(t, err, domain.ErrFatal)
	assert.Contains(t, err.Error(), "boom")
}

func TestSupervisor_InvalidPolicy(t *testing.T) {
	sup := runtime.NewSupervisor(nil, domain.LifecycleHooks{}, nil)
	fn, calls := failingN(0, nil)

	_, _, err := sup.Invoke(context.Background(), domain.StageDefinition{Name: "x", Compute: fn, Retry: domain.RetryPolicy{}}, domain.MessageLog{})
	assert.ErrorIs(t, err, domain.ErrInvalidPolicy)
	assert.Equal(t, 0, *calls)
}

func TestSupervisor_OnRetryHook(t *testing.T) {
	var events []*domain.RetryEvent
	hooks := domain.LifecycleHooks{
		OnRetry: func(_ context.Context, e *domain.RetryEvent) { events = append(events, e) },
	}
	sup := runtime.NewSupervisor((&fakeSleeper{}).Sleep, hooks, nil)
	fn, _ := failingN(2, errors.New("flaky"))

	_, _, err := sup.Invoke(context.Background(), domain.StageDefinition{Name: "research", Compute: fn, Retry: defaultPolicy()}, domain.MessageLog{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Attempt)
	assert.Equal(t, time.Second, events[0].Delay)
	assert.Equal(t, 2, events[1].Attempt)
	assert.Equal(t, 2*time.Second, events[1].Delay)
	assert.Equal(t, domain.EventRetry, events[0].Type)
}
