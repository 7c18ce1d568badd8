package dsl

import (
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/graph"
	"github.com/aretw0/quill/pkg/ports"
)

// StageBuilder provides a fluent API for configuring a stage.
type StageBuilder struct {
	id        string
	compute   domain.ComputeFunc
	retry     domain.RetryPolicy
	tools     ports.ToolProvider
	toolStage string
	policy    graph.ToolsPolicy
	route     graph.RouteFunc
}

// Do sets the compute function of the stage.
func (s *StageBuilder) Do(fn domain.ComputeFunc) *StageBuilder {
	s.compute = fn
	return s
}

// Retry sets the retry policy of the stage. Stages default to domain.NoRetry.
func (s *StageBuilder) Retry(p domain.RetryPolicy) *StageBuilder {
	s.retry = p
	return s
}

// Tools attaches a tool stage serving the requests this stage emits.
func (s *StageBuilder) Tools(provider ports.ToolProvider) *StageBuilder {
	s.tools = provider
	return s
}

// ToolStage renames the companion tool stage (default "<stage>_tools").
func (s *StageBuilder) ToolStage(name string) *StageBuilder {
	s.toolStage = name
	return s
}

// LoopBack routes the tool stage back to this stage, so it can read the results.
func (s *StageBuilder) LoopBack() *StageBuilder {
	s.policy = graph.ToolsLoopBack
	return s
}

// Finalize routes the tool stage to END.
func (s *StageBuilder) Finalize() *StageBuilder {
	s.policy = graph.ToolsFinalize
	return s
}

// Route replaces the default pipeline routing of this stage.
func (s *StageBuilder) Route(fn graph.RouteFunc) *StageBuilder {
	s.route = fn
	return s
}

func (s *StageBuilder) toolStageName() string {
	if s.toolStage != "" {
		return s.toolStage
	}
	return s.id + "_tools"
}
