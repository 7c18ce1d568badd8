package cli

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/quill"
	"github.com/aretw0/quill/internal/config"
	"github.com/aretw0/quill/pkg/adapters/process"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/llm"
	"github.com/aretw0/quill/pkg/pipeline"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/aretw0/quill/pkg/tools"
)

// Deps are the external services of a research run. Nil fields are built from
// the configuration (Groq chat completions and Tavily search).
type Deps struct {
	Model       ports.ChatModel
	WriterModel ports.ChatModel
	Search      ports.SearchProvider
}

func (d Deps) resolve(cfg config.Config) Deps {
	if d.Model == nil {
		d.Model = llm.NewClient(cfg.Model.APIKey,
			llm.WithBaseURL(cfg.Model.BaseURL),
			llm.WithModel(cfg.Model.Name),
		)
	}
	if d.WriterModel == nil && cfg.WriterModel() != cfg.Model.Name {
		d.WriterModel = llm.NewClient(cfg.Model.APIKey,
			llm.WithBaseURL(cfg.Model.BaseURL),
			llm.WithModel(cfg.WriterModel()),
		)
	}
	if d.Search == nil {
		d.Search = tools.NewTavily(cfg.Search.APIKey, cfg.Search.BaseURL)
	}
	return d
}

// needsCredentials reports whether any service is built from the configuration.
func (d Deps) needsCredentials() bool {
	return d.Model == nil || d.Search == nil
}

// createEngine initializes the research engine with standard CLI conventions.
func createEngine(cfg config.Config, deps Deps, hooks domain.LifecycleHooks, logger *slog.Logger) (*quill.Engine, error) {
	deps = deps.resolve(cfg)

	retry, err := cfg.RetryPolicy()
	if err != nil {
		return nil, err
	}
	researchTools, err := tools.ResearchTools(deps.Search, cfg.Search.MaxResults)
	if err != nil {
		return nil, err
	}
	writerTools, err := tools.WriterTools(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	runner := process.NewRunner()
	if err := runner.Register(researchTools, cfg.CommandsFor(pipeline.StageResearch)...); err != nil {
		return nil, err
	}
	if err := runner.Register(writerTools, cfg.CommandsFor(pipeline.StageWrite)...); err != nil {
		return nil, err
	}

	g, err := pipeline.New(pipeline.Config{
		Model:         deps.Model,
		WriterModel:   deps.WriterModel,
		ResearchTools: researchTools,
		WriterTools:   writerTools,
		Retry:         retry,
	})
	if err != nil {
		return nil, err
	}

	engine, err := quill.New(g,
		quill.WithName("research"),
		quill.WithLogger(logger),
		quill.WithLifecycleHooks(hooks),
		quill.WithMaxSteps(cfg.MaxSteps),
		quill.WithParallelTools(cfg.ParallelTools),
	)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, nil
}
