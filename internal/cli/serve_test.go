package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quill.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_steps: 20\n"), 0o644))
	t.Setenv("QUILL_OUTPUT_DIR", t.TempDir())

	handler, closeStore, err := NewHTTPHandler(context.Background(), ServeOptions{
		ConfigPath: path,
		Err:        &bytes.Buffer{},
		Deps:       Deps{Model: researchModel(), Search: staticSearch{}},
	})
	require.NoError(t, err)
	defer closeStore()

	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/runs", "application/json", strings.NewReader(`{"topic":"Go"}`))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "event: done")
	assert.Contains(t, string(body), `"len":6`)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	metrics, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `quill_tool_calls_total{outcome="ok",tool="save_report"} 1`)
}
