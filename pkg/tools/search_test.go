package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/aretw0/quill/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider is a simple test provider.
type mockProvider struct {
	results []ports.SearchResult
	err     error
	query   string
	opts    ports.SearchOptions
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Search(_ context.Context, query string, opts ports.SearchOptions) ([]ports.SearchResult, error) {
	m.query, m.opts = query, opts
	return m.results, m.err
}

func TestTavily_Search(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer tvly-key", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &got))
		_, _ = io.WriteString(w, `{"query":"go","results":[
			{"title":"The Go Programming Language","url":"https://go.dev","content":"Build simple, secure, scalable systems.","score":0.98}
		]}`)
	}))
	defer srv.Close()

	p := tools.NewTavily("tvly-key", srv.URL)
	assert.Equal(t, "tavily", p.Name())

	results, err := p.Search(context.Background(), "go", ports.SearchOptions{MaxResults: 4})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://go.dev", results[0].URL)
	assert.InDelta(t, 0.98, results[0].Score, 1e-9)
	assert.Equal(t, "go", got["query"])
	assert.EqualValues(t, 4, got["max_results"])
}

func TestTavily_Errors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusTooManyRequests)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
		_, _ = io.WriteString(w, `{"detail":"slow down"}`)
	}))
	defer srv.Close()
	p := tools.NewTavily("k", srv.URL)

	_, err := p.Search(context.Background(), "go", ports.SearchOptions{})
	require.Error(t, err)
	assert.True(t, domain.RetryTransient(err))
	assert.Contains(t, err.Error(), "slow down")

	status.Store(http.StatusUnauthorized)
	_, err = p.Search(context.Background(), "go", ports.SearchOptions{})
	require.Error(t, err)
	assert.False(t, domain.RetryTransient(err))
}

func TestSearchHandler(t *testing.T) {
	mock := &mockProvider{results: []ports.SearchResult{{Title: "Test", URL: "https://example.com"}}}
	handler := tools.SearchHandler(mock, 0)

	out, err := handler(context.Background(), map[string]any{"query": "nvidia"})
	require.NoError(t, err)
	assert.Equal(t, "nvidia", mock.query)
	assert.Equal(t, tools.DefaultMaxResults, mock.opts.MaxResults)

	var decoded []ports.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "Test", decoded[0].Title)

	// JSON numbers arrive as float64.
	_, err = handler(context.Background(), map[string]any{"query": "x", "max_results": float64(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, mock.opts.MaxResults)
}

func TestSearchHandler_EdgeCases(t *testing.T) {
	handler := tools.SearchHandler(&mockProvider{}, 4)
	out, err := handler(context.Background(), map[string]any{"query": "nothing"})
	require.NoError(t, err)
	assert.Equal(t, "No results found.", out)

	_, err = handler(context.Background(), map[string]any{"query": "  "})
	assert.Error(t, err)

	failing := tools.SearchHandler(&mockProvider{err: errors.New("down")}, 4)
	_, err = failing(context.Background(), map[string]any{"query": "x"})
	assert.EqualError(t, err, "down")
}

func TestToolRegistries(t *testing.T) {
	research, err := tools.ResearchTools(&mockProvider{}, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{tools.CalculatorToolName, tools.SearchToolName}, research.Names())

	out, err := research.Execute(context.Background(), tools.CalculatorToolName, map[string]any{"expression": "6*7"})
	require.NoError(t, err)
	assert.Equal(t, "42", out)

	_, err = research.Execute(context.Background(), tools.SearchToolName, map[string]any{})
	assert.Error(t, err, "schema requires a query")

	writer, err := tools.WriterTools(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{tools.SaveReportToolName}, writer.Names())

	all, err := tools.All(&mockProvider{}, 4, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{tools.CalculatorToolName, tools.SaveReportToolName, tools.SearchToolName}, all.Names())
}
