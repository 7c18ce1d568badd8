package tools

import (
	"github.com/aretw0/quill/pkg/ports"
	"github.com/aretw0/quill/pkg/registry"
)

// ResearchTools builds the registry of the research stage: web search and the
// calculator.
func ResearchTools(search ports.SearchProvider, maxResults int) (*registry.Registry, error) {
	r := registry.NewRegistry()
	if err := r.Register(SearchDefinition(), SearchHandler(search, maxResults)); err != nil {
		return nil, err
	}
	if err := r.Register(CalculatorDefinition(), Calculator); err != nil {
		return nil, err
	}
	return r, nil
}

// WriterTools builds the registry of the write stage: save_report, writing
// into outputDir.
func WriterTools(outputDir string) (*registry.Registry, error) {
	r := registry.NewRegistry()
	if err := r.Register(SaveReportDefinition(), NewReportWriter(outputDir).Handler); err != nil {
		return nil, err
	}
	return r, nil
}

// All builds a single registry with every tool, as served over MCP.
func All(search ports.SearchProvider, maxResults int, outputDir string) (*registry.Registry, error) {
	r := registry.NewRegistry()
	if err := r.Register(SearchDefinition(), SearchHandler(search, maxResults)); err != nil {
		return nil, err
	}
	if err := r.Register(CalculatorDefinition(), Calculator); err != nil {
		return nil, err
	}
	if err := r.Register(SaveReportDefinition(), NewReportWriter(outputDir).Handler); err != nil {
		return nil, err
	}
	return r, nil
}
