package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphMermaid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quill.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output_dir: reports\n"), 0o644))

	out, err := GraphMermaid(path)
	require.NoError(t, err)
	assert.Contains(t, out, "research((\"research\"))")
	assert.Contains(t, out, "research -- \"tool calls\" --> research_tools")
	assert.Contains(t, out, "research -- \"content\" --> write")
	assert.Contains(t, out, "research_tools --> research")
	assert.Contains(t, out, "write_tools[[\"write_tools <br/> save_report\"]]")
	assert.Contains(t, out, "write_tools --> END")
}

func TestNewMCPServer_ToolsOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quill.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output_dir: reports\n"), 0o644))
	t.Setenv("GROQ_API_KEY", "")

	_, err := NewMCPServer(MCPOptions{ConfigPath: path, Err: &bytes.Buffer{}})
	assert.ErrorContains(t, err, "GROQ_API_KEY", "the research tool needs a model")

	srv, err := NewMCPServer(MCPOptions{ConfigPath: path, ToolsOnly: true, Err: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.NotNil(t, srv)

	srv, err = NewMCPServer(MCPOptions{ConfigPath: path, Err: &bytes.Buffer{}, Deps: Deps{Model: researchModel(), Search: staticSearch{}}})
	require.NoError(t, err)
	assert.NotNil(t, srv)
}

func TestGraphMermaid_Commands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quill.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
commands:
  - name: word_count
    command: wc
  - name: spell_check
    command: aspell
    stage: write
`), 0o644))

	out, err := GraphMermaid(path)
	require.NoError(t, err)
	assert.Contains(t, out, "research_tools <br/> calculator, search, word_count")
	assert.Contains(t, out, "write_tools <br/> save_report, spell_check")
}
