package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/aretw0/quill/pkg/registry"
)

// SearchToolName is the name the model uses to request a web search.
const SearchToolName = "search"

// DefaultMaxResults is the number of hits returned per query.
const DefaultMaxResults = 4

type searchArgs struct {
	Query      string `mapstructure:"query"`
	MaxResults int    `mapstructure:"max_results"`
}

// SearchDefinition describes the search tool to the model.
func SearchDefinition() domain.Tool {
	return domain.Tool{
		Name:        SearchToolName,
		Description: "Search the web for up-to-date information. Returns a JSON list of results with title, url and content.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query string.",
				},
				"max_results": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results to return.",
					"minimum":     1,
					"maximum":     10,
				},
			},
			"required": []string{"query"},
		},
	}
}

// SearchHandler wraps a provider as a tool. maxResults applies when the model
// does not ask for a specific count; zero means DefaultMaxResults.
func SearchHandler(provider ports.SearchProvider, maxResults int) registry.ToolFunction {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return func(ctx context.Context, args map[string]any) (string, error) {
		var in searchArgs
		if err := registry.Decode(args, &in); err != nil {
			return "", err
		}
		if strings.TrimSpace(in.Query) == "" {
			return "", errors.New("search: query is required")
		}
		opts := ports.SearchOptions{MaxResults: maxResults}
		if in.MaxResults > 0 {
			opts.MaxResults = in.MaxResults
		}

		results, err := provider.Search(ctx, in.Query, opts)
		if err != nil {
			return "", err
		}
		if len(results) == 0 {
			return "No results found.", nil
		}

		// Return JSON for structured consumption by the model.
		out, err := json.Marshal(results)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}
