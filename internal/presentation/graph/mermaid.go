// Package graph renders the introspection view of a quill graph.
package graph

import (
	"fmt"
	"strings"

	qgraph "github.com/aretw0/quill/pkg/graph"
)

// GraphOverlay contains run state to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid produces a Mermaid flowchart from the output of graph.Nodes.
// It applies semantic styling:
// - Entry: ((Circle))
// - Tool stage: [[Subroutine]]
// - END: ([Stadium])
// - Default: [Rectangle]
// A stage with two distinct targets gets "content" and "tool calls" edge labels.
func GenerateMermaid(nodes []qgraph.NodeInfo, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case node.Kind == qgraph.NodeEnd:
			opener, closer = "([", "])"
		case node.Entry:
			opener, closer = "((", "))"
		case node.Kind == qgraph.NodeTools:
			opener, closer = "[[", "]]"
		}

		label := node.ID
		if len(node.Tools) > 0 {
			label = fmt.Sprintf("%s <br/> %s", node.ID, strings.Join(node.Tools, ", "))
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)

		// Targets are ordered [on content, on tool calls].
		labelled := node.Kind == qgraph.NodeStage && len(node.Targets) == 2
		for i, target := range node.Targets {
			arrow := "-->"
			if labelled {
				cond := "content"
				if i == 1 {
					cond = "tool calls"
				}
				arrow = fmt.Sprintf("-- \"%s\" -->", cond)
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", safeID, arrow, sanitizeMermaidID(target))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
