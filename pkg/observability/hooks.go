package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/quill/pkg/domain"
)

// Combine merges hooks so that every non-nil callback runs, in argument order.
func Combine(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var stageEnter, stageLeave []func(context.Context, *domain.StageEvent)
	var retry []func(context.Context, *domain.RetryEvent)
	var toolCall, toolReturn []func(context.Context, *domain.ToolEvent)
	for _, h := range hooks {
		if h.OnStageEnter != nil {
			stageEnter = append(stageEnter, h.OnStageEnter)
		}
		if h.OnStageLeave != nil {
			stageLeave = append(stageLeave, h.OnStageLeave)
		}
		if h.OnRetry != nil {
			retry = append(retry, h.OnRetry)
		}
		if h.OnToolCall != nil {
			toolCall = append(toolCall, h.OnToolCall)
		}
		if h.OnToolReturn != nil {
			toolReturn = append(toolReturn, h.OnToolReturn)
		}
	}
	return domain.LifecycleHooks{
		OnStageEnter: fanOut(stageEnter),
		OnStageLeave: fanOut(stageLeave),
		OnRetry:      fanOut(retry),
		OnToolCall:   fanOut(toolCall),
		OnToolReturn: fanOut(toolReturn),
	}
}

func fanOut[E any](fns []func(context.Context, E)) func(context.Context, E) {
	switch len(fns) {
	case 0:
		return nil
	case 1:
		return fns[0]
	}
	return func(ctx context.Context, e E) {
		for _, fn := range fns {
			fn(ctx, e)
		}
	}
}

// LogHooks reports every lifecycle event to logger at debug level
// (retries at warn level).
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageEnter: func(ctx context.Context, e *domain.StageEvent) {
			logger.DebugContext(ctx, "stage_enter", domain.KeyRunID, e.RunID, domain.KeyStage, e.Stage, "tools", e.Tools)
		},
		OnStageLeave: func(ctx context.Context, e *domain.StageEvent) {
			attrs := []any{domain.KeyRunID, e.RunID, domain.KeyStage, e.Stage, "attempts", e.Attempts, "duration", e.Duration}
			if e.Err != nil {
				attrs = append(attrs, "error", e.Err)
			}
			logger.DebugContext(ctx, "stage_leave", attrs...)
		},
		OnRetry: func(ctx context.Context, e *domain.RetryEvent) {
			logger.WarnContext(ctx, "retry", domain.KeyRunID, e.RunID, domain.KeyStage, e.Stage,
				"attempt", e.Attempt, "delay", e.Delay, "error", e.Err)
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			logger.DebugContext(ctx, "tool_call", domain.KeyRunID, e.RunID, domain.KeyStage, e.Stage,
				"tool_name", e.ToolName, "call_id", e.CallID)
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			logger.DebugContext(ctx, "tool_return", domain.KeyRunID, e.RunID, domain.KeyStage, e.Stage,
				"tool_name", e.ToolName, "is_error", e.IsError, "duration", e.Duration)
		},
	}
}
