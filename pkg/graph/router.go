package graph

import (
	"fmt"

	"github.com/aretw0/quill/pkg/domain"
)

// RouteFunc selects the next stage from the log produced so far.
// It must be pure: the same log always yields the same stage, with no side effects.
type RouteFunc func(log domain.MessageLog) string

// RouteTable maps a stage name to its routing function.
// domain.End as a result terminates the run.
type RouteTable map[string]RouteFunc

// Next returns the stage that follows stage, given the updated log.
func (rt RouteTable) Next(stage string, log domain.MessageLog) (string, error) {
	route, ok := rt[stage]
	if !ok || route == nil {
		return "", fmt.Errorf("%w: %s", domain.ErrNoRoute, stage)
	}
	return route(log), nil
}

// Always routes unconditionally to target.
func Always(target string) RouteFunc {
	return func(domain.MessageLog) string {
		return target
	}
}

// WhenToolCalls routes to toolStage if the last message requests tools, else to otherwise.
// Only the last message is inspected: requests already satisfied earlier in the
// log are ignored. An empty log routes to otherwise.
func WhenToolCalls(toolStage, otherwise string) RouteFunc {
	return func(log domain.MessageLog) string {
		last, ok := log.Last()
		if !ok {
			return otherwise
		}
		switch last.Kind() {
		case domain.KindToolCall:
			return toolStage
		default:
			return otherwise
		}
	}
}

// ToolsPolicy decides where a tool stage routes after producing its results.
type ToolsPolicy int

const (
	// ToolsLoopBack returns control to the stage that issued the requests,
	// so it can react to the results (including contained errors).
	ToolsLoopBack ToolsPolicy = iota
	// ToolsFinalize ends the run after the tool results are appended.
	ToolsFinalize
)

func (p ToolsPolicy) String() string {
	if p == ToolsFinalize {
		return "finalize"
	}
	return "loop_back"
}

// PipelineStep is one entry of a linear pipeline.
type PipelineStep struct {
	Stage string
	// ToolStage is the paired tool-invoker identity. Empty means the stage has no tools.
	ToolStage string
	Tools     ToolsPolicy
}

// Pipeline builds the route table of a fixed linear pipeline:
//
//   - a stage whose last message requests tools routes to its paired tool stage;
//   - otherwise it routes to the next stage, or to END after the final stage;
//   - a tool stage loops back to its owner or finalizes to END, per its policy.
func Pipeline(steps ...PipelineStep) RouteTable {
	rt := make(RouteTable, len(steps)*2)
	for i, step := range steps {
		next := domain.End
		if i+1 < len(steps) {
			next = steps[i+1].Stage
		}
		if step.ToolStage == "" {
			rt[step.Stage] = Always(next)
			continue
		}
		rt[step.Stage] = WhenToolCalls(step.ToolStage, next)
		switch step.Tools {
		case ToolsFinalize:
			rt[step.ToolStage] = Always(domain.End)
		default:
			rt[step.ToolStage] = Always(step.Stage)
		}
	}
	return rt
}
