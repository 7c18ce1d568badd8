package quill

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/aretw0/quill/internal/logging"
	"github.com/aretw0/quill/internal/runtime"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/graph"
)

// Sleeper blocks for a backoff delay or until the context is done.
type Sleeper = runtime.Sleeper

// Engine is the high-level entry point for the quill library.
// It wraps the internal runtime and provides a simplified API for consumers.
type Engine struct {
	runtime     *runtime.Engine
	graph       *graph.Graph
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	runtimeOpts []runtime.EngineOption
	Name        string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithName labels the engine; the name is added to every log line.
func WithName(name string) Option {
	return func(e *Engine) {
		e.Name = name
	}
}

// WithMaxSteps bounds the number of stage executions per run (0 = unbounded).
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxSteps(n))
	}
}

// WithParallelTools executes the requests of one tool pass concurrently.
func WithParallelTools(enabled bool) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithParallelTools(enabled))
	}
}

// WithSleeper replaces the backoff wait between retry attempts.
func WithSleeper(s Sleeper) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithSleeper(s))
	}
}

// New initializes a new Engine for the given graph.
func New(g *graph.Graph, opts ...Option) (*Engine, error) {
	eng := &Engine{graph: g}
	for _, opt := range opts {
		opt(eng)
	}

	// Ensure logger is initialized (so we don't pass nil to runtime, which would overwrite its default)
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("graph", eng.Name)
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)

	rt, err := runtime.NewEngine(g, runtimeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	eng.runtime = rt
	return eng, nil
}

// Run drives a run to completion. On failure the returned log is the partial
// log, and the error is a *domain.RunError.
func (e *Engine) Run(ctx context.Context, initial domain.MessageLog) (domain.MessageLog, error) {
	return e.runtime.Run(ctx, initial)
}

// Stream yields one log snapshot per appended message.
// A failed run ends with a single (partial log, *domain.RunError) pair.
func (e *Engine) Stream(ctx context.Context, initial domain.MessageLog) iter.Seq2[domain.MessageLog, error] {
	return e.runtime.Stream(ctx, initial)
}

// Inspect returns the graph nodes for visualization or introspection tools.
func (e *Engine) Inspect() []graph.NodeInfo {
	return e.graph.Nodes()
}

// Graph returns the graph executed by the engine.
func (e *Engine) Graph() *graph.Graph {
	return e.graph
}
