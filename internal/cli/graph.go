package cli

import (
	"github.com/aretw0/quill/internal/config"
	"github.com/aretw0/quill/internal/logging"
	"github.com/aretw0/quill/internal/presentation/graph"
	"github.com/aretw0/quill/pkg/domain"
)

// GraphMermaid renders the research graph as a Mermaid flowchart.
// No credentials are needed: the graph is built but never run.
func GraphMermaid(configPath string) (string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	engine, err := createEngine(cfg, Deps{}, domain.LifecycleHooks{}, logging.NewNop())
	if err != nil {
		return "", err
	}
	return graph.GenerateMermaid(engine.Inspect(), nil), nil
}
