package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/quill/internal/logging"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// emptyResult is the content of a successful tool call that produced no output,
// so every tool result carries some text for the next stage.
const emptyResult = "(no output)"

// Invoker executes the tool-call requests found in the latest message.
// It never returns an error: unknown tools, failures and panics all become
// tool-result content the issuing stage can react to.
type Invoker struct {
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	parallel bool
}

// NewInvoker creates an Invoker. When parallel is true, the requests of one pass
// run concurrently; results keep the request order either way.
func NewInvoker(hooks domain.LifecycleHooks, logger *slog.Logger, parallel bool) *Invoker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Invoker{hooks: hooks, logger: logger, parallel: parallel}
}

// InvokeAll returns one tool-result message per request, in request order.
func (inv *Invoker) InvokeAll(ctx context.Context, stage string, requests []domain.ToolCallRequest, tools ports.ToolProvider) []domain.Message {
	results := make([]domain.Message, len(requests))
	if !inv.parallel || len(requests) < 2 {
		for i, req := range requests {
			results[i] = inv.invoke(ctx, stage, req, tools)
		}
		return results
	}

	// Each goroutine owns one slot, so no locking is needed and order is preserved.
	var g errgroup.Group
	for i, req := range requests {
		g.Go(func() error {
			results[i] = inv.invoke(ctx, stage, req, tools)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (inv *Invoker) invoke(ctx context.Context, stage string, req domain.ToolCallRequest, tools ports.ToolProvider) domain.Message {
	runID, _ := domain.RunIDFromContext(ctx)
	event := &domain.ToolEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventToolCall, RunID: runID},
		Stage:     stage,
		ToolName:  req.Name,
		CallID:    req.ID,
		Input:     req.Arguments,
	}
	if inv.hooks.OnToolCall != nil {
		inv.hooks.OnToolCall(ctx, event)
	}

	start := time.Now()
	var msg domain.Message
	var tool ports.Tool
	var ok bool
	if tools != nil {
		tool, ok = tools.Lookup(req.Name)
	}
	if !ok {
		msg = domain.NewToolError(req, unknownToolMessage(req.Name, tools))
	} else {
		out, err := safeInvoke(ctx, tool, req.Arguments)
		switch {
		case err != nil:
			msg = domain.NewToolError(req, fmt.Sprintf("Error: %v\n Please fix your mistakes.", err))
		case strings.TrimSpace(out) == "":
			msg = domain.NewToolResult(req, emptyResult)
		default:
			msg = domain.NewToolResult(req, out)
		}
	}
	msg.Stage = stage

	if msg.IsError {
		inv.logger.Warn("tool call failed", domain.KeyRunID, runID, domain.KeyStage, stage, "tool", req.Name, "call_id", req.ID, "error", msg.Content)
	} else {
		inv.logger.Debug("tool call succeeded", domain.KeyRunID, runID, domain.KeyStage, stage, "tool", req.Name, "call_id", req.ID)
	}
	if inv.hooks.OnToolReturn != nil {
		ret := *event
		ret.Timestamp = time.Now()
		ret.Type = domain.EventToolReturn
		ret.Output = msg.Content
		ret.IsError = msg.IsError
		ret.Duration = time.Since(start)
		inv.hooks.OnToolReturn(ctx, &ret)
	}
	return msg
}

// safeInvoke is the failure boundary around a single tool call.
func safeInvoke(ctx context.Context, tool ports.Tool, args map[string]any) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return tool.Invoke(ctx, args)
}

func unknownToolMessage(name string, tools ports.ToolProvider) string {
	var names []string
	if tools != nil {
		for _, d := range tools.Definitions() {
			names = append(names, d.Name)
		}
	}
	return fmt.Sprintf("Error: unknown tool %q, try one of [%s].", name, strings.Join(names, ", "))
}
