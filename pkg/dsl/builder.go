package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/graph"
)

// Builder manages the graph construction.
type Builder struct {
	order  []string
	stages map[string]*StageBuilder
	entry  string
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{
		stages: make(map[string]*StageBuilder),
	}
}

// Add creates a new stage in the graph.
// If the stage already exists, it returns the existing builder.
func (b *Builder) Add(id string) *StageBuilder {
	if sb, ok := b.stages[id]; ok {
		return sb
	}
	sb := &StageBuilder{
		id:     id,
		retry:  domain.NoRetry(),
		policy: graph.ToolsLoopBack,
	}
	b.stages[id] = sb
	b.order = append(b.order, id)
	return sb
}

// Entry overrides the entry stage. By default it is the first stage added.
func (b *Builder) Entry(id string) *Builder {
	b.entry = id
	return b
}

// Build compiles the stages into a validated graph.
func (b *Builder) Build() (*graph.Graph, error) {
	if len(b.order) == 0 {
		return nil, errors.New("dsl: graph has no stages")
	}

	g := &graph.Graph{
		Entry:      b.entry,
		Stages:     make(map[string]domain.StageDefinition, len(b.order)),
		ToolStages: make(map[string]graph.ToolStage),
	}
	if g.Entry == "" {
		g.Entry = b.order[0]
	}

	steps := make([]graph.PipelineStep, 0, len(b.order))
	for _, id := range b.order {
		sb := b.stages[id]
		g.Stages[id] = domain.StageDefinition{Name: id, Compute: sb.compute, Retry: sb.retry}

		step := graph.PipelineStep{Stage: id}
		if sb.tools != nil {
			step.ToolStage = sb.toolStageName()
			step.Tools = sb.policy
			g.ToolStages[step.ToolStage] = graph.ToolStage{Name: step.ToolStage, Owner: id, Tools: sb.tools}
		}
		steps = append(steps, step)
	}

	g.Routes = graph.Pipeline(steps...)
	for _, id := range b.order {
		if route := b.stages[id].route; route != nil {
			g.Routes[id] = route
		}
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("dsl: invalid graph: %w", err)
	}
	return g, nil
}

// MustBuild is like Build but panics on error. Intended for static graphs.
func (b *Builder) MustBuild() *graph.Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}
