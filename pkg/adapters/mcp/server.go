// Package mcp exposes quill tools and the research pipeline as an MCP server.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/quill"
	"github.com/aretw0/quill/internal/logging"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/graph"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// GraphURI is the resource exposing the graph introspection view.
const GraphURI = "quill://graph"

// Engine defines what the MCP server needs from a quill engine.
type Engine interface {
	Run(ctx context.Context, initial domain.MessageLog) (domain.MessageLog, error)
	Inspect() []graph.NodeInfo
}

// SeedFunc builds the initial log of a run from a topic.
type SeedFunc func(topic string) domain.MessageLog

// Server wraps a tool provider (and optionally an engine) as an MCP server.
type Server struct {
	tools     ports.ToolProvider
	engine    Engine
	seed      SeedFunc
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithEngine adds the "research" tool, which runs a whole pipeline for a topic,
// and the graph resource.
func WithEngine(engine Engine, seed SeedFunc) Option {
	return func(s *Server) {
		s.engine = engine
		s.seed = seed
	}
}

// WithLogger sets the logger for tool failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance serving every tool of provider.
func NewServer(tools ports.ToolProvider, opts ...Option) *Server {
	s := &Server{
		tools:     tools,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("quill-mcp", strings.TrimSpace(quill.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.seed == nil {
		s.seed = func(topic string) domain.MessageLog {
			return domain.NewMessageLog(domain.NewUserMessage(topic))
		}
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// HandleMessage processes a single JSON-RPC message and returns the encoded reply.
func (s *Server) HandleMessage(ctx context.Context, raw []byte) ([]byte, error) {
	resp := s.mcpServer.HandleMessage(ctx, raw)
	if resp == nil {
		return nil, nil
	}
	return json.Marshal(resp)
}

func (s *Server) registerTools() {
	if s.tools != nil {
		for _, def := range s.tools.Definitions() {
			schema, err := json.Marshal(inputSchema(def))
			if err != nil {
				s.logger.Warn("skipping tool with unencodable schema", "tool", def.Name, "error", err)
				continue
			}
			name := def.Name
			s.mcpServer.AddTool(mcp.NewToolWithRawSchema(name, def.Description, schema),
				func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
					return s.handleTool(ctx, name, request.GetArguments()), nil
				})
		}
	}

	if s.engine == nil {
		return
	}

	// TOOL: research
	s.mcpServer.AddTool(mcp.NewTool("research",
		mcp.WithDescription("Research a topic end to end and return the final message of the run."),
		mcp.WithString("topic", mcp.Required(), mcp.Description("The topic to research")),
	), s.handleResearch)

	// TOOL: get_graph
	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the graph definition for introspection."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, _ := json.Marshal(s.engine.Inspect())
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

// handleTool invokes a tool with the same containment as the engine: errors and
// panics become error results, never protocol failures.
func (s *Server) handleTool(ctx context.Context, name string, args map[string]any) (result *mcp.CallToolResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("MCP tool panicked", "tool", name, "panic", r)
			result = mcp.NewToolResultError(fmt.Sprintf("Error: tool panicked: %v", r))
		}
	}()

	tool, ok := s.tools.Lookup(name)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Error: unknown tool %q", name))
	}
	out, err := tool.Invoke(ctx, args)
	if err != nil {
		s.logger.Warn("MCP tool failed", "tool", name, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err))
	}
	if strings.TrimSpace(out) == "" {
		out = "(no output)"
	}
	return mcp.NewToolResultText(out)
}

func (s *Server) handleResearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, _ := request.GetArguments()["topic"].(string)
	topic, err := domain.SanitizeInput(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if topic == "" {
		return mcp.NewToolResultError("topic is required"), nil
	}

	final, err := s.engine.Run(ctx, s.seed(topic))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run failed after %d messages: %v", final.Len(), err)), nil
	}
	last, _ := final.Last()
	return mcp.NewToolResultText(last.Content), nil
}

func (s *Server) registerResources() {
	if s.engine == nil {
		return
	}
	// EXPOSE: quill://graph
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Current Graph Definition",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.engine.Inspect())
		if err != nil {
			return nil, fmt.Errorf("failed to inspect graph: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GraphURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

// inputSchema returns a JSON schema object for def, defaulting to an empty object schema.
func inputSchema(def domain.Tool) map[string]any {
	if def.Parameters != nil {
		return def.Parameters
	}
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

var _ Engine = (*quill.Engine)(nil)
