package runtime

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/aretw0/quill/internal/logging"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/graph"
	"github.com/google/uuid"
)

// Engine is the core task-graph runner.
// It holds only read-only configuration, so one Engine serves any number of
// concurrent runs; each run owns its MessageLog exclusively.
type Engine struct {
	graph      *graph.Graph
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	sleep      Sleeper
	maxSteps   int
	parallel   bool
	newRunID   func() string
	supervisor *Supervisor
	invoker    *Invoker
}

// EngineOption defines a functional option for configuring the Engine.
type EngineOption func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxSteps bounds the number of stage executions per run (0 = unbounded).
// A run that reaches the bound halts with domain.ErrStepLimit.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		e.maxSteps = n
	}
}

// WithParallelTools runs the requests of one tool pass concurrently.
func WithParallelTools(enabled bool) EngineOption {
	return func(e *Engine) {
		e.parallel = enabled
	}
}

// WithSleeper replaces the backoff wait (used by tests to observe delays).
func WithSleeper(s Sleeper) EngineOption {
	return func(e *Engine) {
		e.sleep = s
	}
}

// WithRunIDGenerator overrides how run identifiers are generated.
func WithRunIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) {
		e.newRunID = fn
	}
}

// NewEngine creates an engine for a validated graph.
func NewEngine(g *graph.Graph, opts ...EngineOption) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("graph is required")
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		graph:    g,
		logger:   logging.NewNop(),
		sleep:    SleepContext,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.supervisor = NewSupervisor(e.sleep, e.hooks, e.logger)
	e.invoker = NewInvoker(e.hooks, e.logger, e.parallel)
	return e, nil
}

// Graph returns the graph executed by the engine.
func (e *Engine) Graph() *graph.Graph {
	return e.graph
}

// Run drives a run to completion and returns the final log.
// On failure the returned log is the partial log, also attached to the *domain.RunError.
func (e *Engine) Run(ctx context.Context, initial domain.MessageLog) (domain.MessageLog, error) {
	final := initial
	for log, err := range e.Stream(ctx, initial) {
		if err != nil {
			return log, err
		}
		final = log
	}
	return final, nil
}

// Stream returns a lazy, finite sequence of log snapshots, one per appended
// message. The sequence ends when the router reaches domain.End, or after a
// single (partial log, error) pair when the run fails. Every iteration of the
// returned sequence starts a fresh run from initial.
func (e *Engine) Stream(ctx context.Context, initial domain.MessageLog) iter.Seq2[domain.MessageLog, error] {
	return func(yield func(domain.MessageLog, error) bool) {
		runCtx := ctx
		runID, ok := domain.RunIDFromContext(runCtx)
		if !ok {
			runID = e.newRunID()
			runCtx = domain.ContextWithRunID(runCtx, runID)
		}
		logger := e.logger.With(domain.KeyRunID, runID)
		logger.Debug("run started", "entry", e.graph.Entry, "initial_len", initial.Len())

		log := initial
		current := e.graph.Entry
		fail := func(kind domain.FailureKind, stage string, attempts int, err error) {
			runErr := &domain.RunError{Kind: kind, Stage: stage, Attempts: attempts, Log: log, Err: err}
			logger.Error("run halted", domain.KeyStage, stage, "kind", kind.String(), "error", err)
			yield(log, runErr)
		}

		for steps := 0; ; steps++ {
			if err := runCtx.Err(); err != nil {
				fail(domain.FailureCancelled, current, 0, err)
				return
			}
			if e.maxSteps > 0 && steps >= e.maxSteps {
				fail(domain.FailureFatal, current, 0, fmt.Errorf("%w: %d", domain.ErrStepLimit, e.maxSteps))
				return
			}

			produced, err := e.step(runCtx, runID, current, log)
			if err != nil {
				var runErr *domain.RunError
				if errors.As(err, &runErr) {
					fail(runErr.Kind, runErr.Stage, runErr.Attempts, runErr.Err)
				} else {
					fail(domain.FailureFatal, current, 0, err)
				}
				return
			}

			for _, msg := range produced {
				log = log.Append(msg)
				if !yield(log, nil) {
					return
				}
			}

			next, err := e.graph.Routes.Next(current, log)
			if err != nil {
				fail(domain.FailureFatal, current, 0, err)
				return
			}
			logger.Debug("transition", "from", current, "to", next)
			if next == domain.End {
				logger.Debug("run finished", "len", log.Len())
				return
			}
			current = next
		}
	}
}

// step executes one stage (compute or tools) and returns the messages it produced.
func (e *Engine) step(ctx context.Context, runID, name string, log domain.MessageLog) ([]domain.Message, error) {
	if st, ok := e.graph.Stages[name]; ok {
		if st.Name == "" {
			st.Name = name
		}
		start := time.Now()
		e.enter(ctx, runID, name, false)
		msg, attempts, err := e.supervisor.Invoke(ctx, st, log)
		e.leave(ctx, runID, name, false, attempts, time.Since(start), err)
		if err != nil {
			return nil, err
		}
		msg.Role = domain.RoleStageOutput
		if msg.Stage == "" {
			msg.Stage = name
		}
		return []domain.Message{msg}, nil
	}

	if ts, ok := e.graph.ToolStages[name]; ok {
		last, ok := log.Last()
		if !ok || !last.HasToolCalls() {
			return nil, fmt.Errorf("%w: %s", domain.ErrNoToolCalls, name)
		}
		start := time.Now()
		e.enter(ctx, runID, name, true)
		results := e.invoker.InvokeAll(ctx, name, last.ToolCalls, ts.Tools)
		e.leave(ctx, runID, name, true, 0, time.Since(start), nil)
		return results, nil
	}

	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownStage, name)
}

func (e *Engine) enter(ctx context.Context, runID, name string, tools bool) {
	e.logger.Debug("enter stage", domain.KeyRunID, runID, domain.KeyStage, name, "tools", tools)
	if e.hooks.OnStageEnter != nil {
		e.hooks.OnStageEnter(ctx, &domain.StageEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventStageEnter, RunID: runID},
			Stage:     name,
			Tools:     tools,
		})
	}
}

func (e *Engine) leave(ctx context.Context, runID, name string, tools bool, attempts int, d time.Duration, err error) {
	e.logger.Debug("leave stage", domain.KeyRunID, runID, domain.KeyStage, name, "attempts", attempts, "duration", d)
	if e.hooks.OnStageLeave != nil {
		e.hooks.OnStageLeave(ctx, &domain.StageEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventStageLeave, RunID: runID},
			Stage:     name,
			Tools:     tools,
			Attempts:  attempts,
			Duration:  d,
			Err:       err,
		})
	}
}
