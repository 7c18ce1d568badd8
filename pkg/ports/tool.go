package ports

import (
	"context"

	"github.com/aretw0/quill/pkg/domain"
)

// Tool is a named capability that a stage can request.
type Tool interface {
	// Definition describes the tool and its argument schema.
	Definition() domain.Tool

	// Invoke runs the tool. Errors are contained by the engine and turned into
	// tool-result content; they never abort a run.
	Invoke(ctx context.Context, args map[string]any) (string, error)
}

// ToolProvider resolves tool names for a tool stage.
// Implementations must be safe for concurrent reads.
type ToolProvider interface {
	Lookup(name string) (Tool, bool)
	Definitions() []domain.Tool
}
