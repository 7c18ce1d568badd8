// Package graph describes the static shape of a task graph: its compute stages,
// its tool stages and the conditional routes between them.
//
// A Graph is process-wide, read-only configuration. It is built once at startup
// (usually through package dsl) and can then be shared by any number of
// concurrent runs.
package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/ports"
)

// ToolStage is a pseudo-stage that invokes the tool-call requests carried by
// the last message of the log.
type ToolStage struct {
	Name string
	// Owner is the stage whose requests this tool stage serves.
	Owner string
	Tools ports.ToolProvider
}

// Graph is the complete definition executed by the engine.
type Graph struct {
	Entry      string
	Stages     map[string]domain.StageDefinition
	ToolStages map[string]ToolStage
	Routes     RouteTable
}

// NodeKind distinguishes compute stages from tool stages in introspection.
type NodeKind string

const (
	NodeStage NodeKind = "stage"
	NodeTools NodeKind = "tools"
	NodeEnd   NodeKind = "end"
)

// NodeInfo is an introspection view of a node and the targets it can route to.
type NodeInfo struct {
	ID      string   `json:"id"`
	Kind    NodeKind `json:"kind"`
	Entry   bool     `json:"entry,omitempty"`
	Targets []string `json:"targets,omitempty"`
	Tools   []string `json:"tools,omitempty"`
}

// Validate checks the structural integrity of the graph.
func (g *Graph) Validate() error {
	var errs []error
	if g.Entry == "" {
		errs = append(errs, errors.New("graph: entry stage is required"))
	} else if !g.Has(g.Entry) {
		errs = append(errs, fmt.Errorf("graph: entry %w: %s", domain.ErrUnknownStage, g.Entry))
	}

	for name, st := range g.Stages {
		if name == domain.End {
			errs = append(errs, fmt.Errorf("graph: stage name %q is reserved", name))
		}
		if st.Name != "" && st.Name != name {
			errs = append(errs, fmt.Errorf("graph: stage %q registered under %q", st.Name, name))
		}
		if st.Compute == nil {
			errs = append(errs, fmt.Errorf("graph: stage %q has no compute function", name))
		}
		if err := st.Retry.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("graph: stage %q: %w", name, err))
		}
		if _, ok := g.Routes[name]; !ok {
			errs = append(errs, fmt.Errorf("graph: %w: %s", domain.ErrNoRoute, name))
		}
	}

	for name, ts := range g.ToolStages {
		if name == domain.End {
			errs = append(errs, fmt.Errorf("graph: tool stage name %q is reserved", name))
		}
		if _, clash := g.Stages[name]; clash {
			errs = append(errs, fmt.Errorf("graph: %q is both a stage and a tool stage", name))
		}
		if ts.Tools == nil {
			errs = append(errs, fmt.Errorf("graph: tool stage %q has no tools", name))
		}
		if ts.Owner != "" {
			if _, ok := g.Stages[ts.Owner]; !ok {
				errs = append(errs, fmt.Errorf("graph: tool stage %q owner %w: %s", name, domain.ErrUnknownStage, ts.Owner))
			}
		}
		if _, ok := g.Routes[name]; !ok {
			errs = append(errs, fmt.Errorf("graph: %w: %s", domain.ErrNoRoute, name))
		}
	}

	for name := range g.Routes {
		if !g.Has(name) {
			errs = append(errs, fmt.Errorf("graph: route for %w: %s", domain.ErrUnknownStage, name))
		}
	}
	return errors.Join(errs...)
}

// Has reports whether name is a compute stage or a tool stage.
func (g *Graph) Has(name string) bool {
	if _, ok := g.Stages[name]; ok {
		return true
	}
	_, ok := g.ToolStages[name]
	return ok
}

// Nodes returns an introspection view of the graph, sorted by ID for stable output.
//
// Targets are discovered by probing each route with a content message and with a
// tool-call message; routes are pure, so probing has no side effects.
func (g *Graph) Nodes() []NodeInfo {
	probes := []domain.MessageLog{
		domain.NewMessageLog(domain.NewStageOutput("")),
		domain.NewMessageLog(domain.NewStageOutput("", domain.ToolCallRequest{Name: "probe"})),
	}

	nodes := make([]NodeInfo, 0, len(g.Stages)+len(g.ToolStages)+1)
	endReached := false
	add := func(id string, kind NodeKind, tools []string) {
		info := NodeInfo{ID: id, Kind: kind, Entry: id == g.Entry, Tools: tools}
		if route, ok := g.Routes[id]; ok && route != nil {
			for _, p := range probes {
				target := route(p)
				if target == domain.End {
					endReached = true
				}
				if !slices.Contains(info.Targets, target) {
					info.Targets = append(info.Targets, target)
				}
			}
		}
		nodes = append(nodes, info)
	}

	for name := range g.Stages {
		add(name, NodeStage, nil)
	}
	for name, ts := range g.ToolStages {
		var tools []string
		if ts.Tools != nil {
			for _, d := range ts.Tools.Definitions() {
				tools = append(tools, d.Name)
			}
		}
		add(name, NodeTools, tools)
	}
	slices.SortFunc(nodes, func(a, b NodeInfo) int {
		// Entry first, then alphabetical.
		if a.Entry != b.Entry {
			if a.Entry {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	if endReached {
		nodes = append(nodes, NodeInfo{ID: domain.End, Kind: NodeEnd})
	}
	return nodes
}
