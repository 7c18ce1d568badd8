package cli

import (
	"io"

	"github.com/aretw0/quill/internal/config"
	"github.com/aretw0/quill/pkg/adapters/mcp"
	"github.com/aretw0/quill/pkg/adapters/process"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/pipeline"
	"github.com/aretw0/quill/pkg/tools"
)

// MCPOptions configures the mcp command.
type MCPOptions struct {
	ConfigPath string
	Debug      bool
	// ToolsOnly serves the tools without the research tool (no model key needed).
	ToolsOnly bool
	Err       io.Writer
	Deps      Deps
}

// NewMCPServer builds the MCP server: every tool, plus the research tool and the
// graph resource unless ToolsOnly is set.
func NewMCPServer(opts MCPOptions) (*mcp.Server, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, failf("%w", err)
	}
	logger, err := createLogger(opts.Err, cfg.Log, opts.Debug)
	if err != nil {
		return nil, failf("%w", err)
	}
	if !opts.ToolsOnly && opts.Deps.needsCredentials() {
		if err := cfg.RequireCredentials(); err != nil {
			return nil, failf("%w", err)
		}
	}

	deps := opts.Deps
	if deps.Search == nil {
		deps.Search = tools.NewTavily(cfg.Search.APIKey, cfg.Search.BaseURL)
	}
	all, err := tools.All(deps.Search, cfg.Search.MaxResults, cfg.OutputDir)
	if err != nil {
		return nil, failf("%w", err)
	}
	if err := process.NewRunner().Register(all, cfg.Commands...); err != nil {
		return nil, failf("%w", err)
	}

	serverOpts := []mcp.Option{mcp.WithLogger(logger)}
	if !opts.ToolsOnly {
		engine, err := createEngine(cfg, deps, domain.LifecycleHooks{}, logger)
		if err != nil {
			return nil, failf("%w", err)
		}
		serverOpts = append(serverOpts, mcp.WithEngine(engine, pipeline.Seed))
	}
	return mcp.NewServer(all, serverOpts...), nil
}
