package ports

import "context"

// SearchResult is a single search hit.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// SearchOptions are optional parameters for a search query.
type SearchOptions struct {
	// MaxResults limits the number of hits. Zero means provider default.
	MaxResults int
}

// SearchProvider is the interface that search backends implement.
type SearchProvider interface {
	// Name returns the provider identifier (e.g. "tavily").
	Name() string

	// Search executes a query and returns results.
	Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error)
}
