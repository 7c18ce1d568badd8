package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/quill/internal/config"
	"github.com/aretw0/quill/internal/presentation/tui"
	"github.com/aretw0/quill/pkg/adapters/memory"
	"github.com/aretw0/quill/pkg/adapters/redis"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/persistence/middleware"
	"github.com/aretw0/quill/pkg/pipeline"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel replays replies in order.
type scriptedModel struct {
	mu      sync.Mutex
	replies []domain.Message
	err     error
}

func (m *scriptedModel) Chat(context.Context, ports.ChatRequest) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.Message{}, m.err
	}
	if len(m.replies) == 0 {
		return domain.Message{}, errors.New("no more replies")
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

type staticSearch struct{}

func (staticSearch) Name() string { return "static" }

func (staticSearch) Search(context.Context, string, ports.SearchOptions) ([]ports.SearchResult, error) {
	return []ports.SearchResult{{Title: "Go", URL: "https://go.dev", Content: "Go was released in 2009."}}, nil
}

const reportMD = "# Executive Summary\n\nGo is **fast**."

func researchModel() *scriptedModel {
	return &scriptedModel{replies: []domain.Message{
		domain.NewStageOutput("", domain.ToolCallRequest{ID: "c1", Name: "search", Arguments: map[string]any{"query": "Go"}}),
		domain.NewStageOutput("Go was released in 2009."),
		domain.NewStageOutput("", domain.ToolCallRequest{ID: "c2", Name: "save_report", Arguments: map[string]any{
			"filename": "go_report", "content": reportMD,
		}}),
	}}
}

func testOptions(t *testing.T, model ports.ChatModel) (RunOptions, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "quill.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("max_steps: 20\n"), 0o644))
	t.Setenv(config.EnvOutputDir, dir)

	var out bytes.Buffer
	return RunOptions{
		ConfigPath: cfgPath,
		Topic:      "Go",
		Out:        &out,
		Err:        &bytes.Buffer{},
		Profile:    termenv.Ascii,
		Deps:       Deps{Model: model, Search: staticSearch{}},
	}, &out
}

func TestRun_HappyPath(t *testing.T) {
	opts, out := testOptions(t, researchModel())
	opts.Render = true

	require.NoError(t, Run(context.Background(), opts))

	text := out.String()
	assert.Contains(t, text, "USER: Research the topic 'Go'.")
	assert.Contains(t, text, "CALLING TOOL: search")
	assert.Contains(t, text, "STAGE_OUTPUT: Go was released in 2009....")
	assert.Contains(t, text, "CALLING TOOL: save_report")
	assert.Contains(t, text, "TOOL_RESULT: File saved successfully:")
	assert.Contains(t, text, "Executive Summary", "rendered report")
	assert.Contains(t, text, "Workflow finished")

	dir := os.Getenv(config.EnvOutputDir)
	assert.FileExists(t, filepath.Join(dir, "go_report.docx"))
}

func TestRun_FatalError(t *testing.T) {
	opts, out := testOptions(t, &scriptedModel{err: errors.New("401 invalid api key")})

	err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.ErrorIs(t, err, domain.ErrFatal)
	assert.Contains(t, out.String(), "Run failed after USER message: ")
	assert.Contains(t, out.String(), "401 invalid api key")
}

func TestRun_Cancelled(t *testing.T) {
	opts, out := testOptions(t, researchModel())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, opts)
	require.Error(t, err)
	assert.Equal(t, ExitCancelled, ExitCode(err))
	assert.Contains(t, out.String(), "Run failed after USER message")
}

func TestRun_ReadsTopicFromInput(t *testing.T) {
	opts, out := testOptions(t, researchModel())
	opts.Topic = ""
	opts.In = strings.NewReader("Go\n")

	require.NoError(t, Run(context.Background(), opts))
	assert.Contains(t, out.String(), "What should I research?")
	assert.Contains(t, out.String(), "Research the topic 'Go'.")
}

func TestRun_EmptyTopic(t *testing.T) {
	opts, _ := testOptions(t, researchModel())
	opts.Topic = ""
	opts.In = strings.NewReader("\n")

	err := Run(context.Background(), opts)
	assert.ErrorContains(t, err, "topic is required")
	assert.Equal(t, ExitFailure, ExitCode(err))
}

func TestRun_RequiresCredentials(t *testing.T) {
	opts, _ := testOptions(t, nil)
	opts.Deps = Deps{}
	t.Setenv(config.EnvModelAPIKey, "")
	t.Setenv(config.EnvSearchAPIKey, "")

	err := Run(context.Background(), opts)
	assert.ErrorContains(t, err, config.EnvModelAPIKey)
}

func TestRunResearch_RecordsTranscript(t *testing.T) {
	opts, _ := testOptions(t, researchModel())
	cfg, err := config.Load(opts.ConfigPath)
	require.NoError(t, err)
	engine, err := createEngine(cfg, opts.Deps, domain.LifecycleHooks{}, nil)
	require.NoError(t, err)

	store := memory.NewStore()
	var out bytes.Buffer
	final, err := RunResearch(context.Background(), engine, pipeline.Seed("Go"),
		tui.NewPrinter(&out, termenv.Ascii), NewRecorder(store, "run-1", nil))
	require.NoError(t, err)
	assert.Equal(t, 6, final.Len())
	assert.True(t, strings.HasPrefix(out.String(), "\nUSER: Research the topic 'Go'."),
		"the seed turn is printed before any streamed message: %q", out.String())

	saved, err := store.Load(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, final.Messages(), saved.Messages())

	var shown bytes.Buffer
	require.NoError(t, ShowTranscript(context.Background(), store, "run-1", &shown))
	assert.Contains(t, shown.String(), "CALLING TOOL: save_report")

	shown.Reset()
	require.NoError(t, ShowTranscript(context.Background(), store, "", &shown))
	assert.Equal(t, "run-1\n", shown.String())

	assert.ErrorIs(t, ShowTranscript(context.Background(), store, "nope", &shown), domain.ErrRunNotFound)
}

func TestReportMarkdown(t *testing.T) {
	log := pipeline.Seed("Go").Append(domain.Message{
		Role:  domain.RoleStageOutput,
		Stage: pipeline.StageWrite,
		ToolCalls: []domain.ToolCallRequest{
			{Name: "save_report", Arguments: map[string]any{"content": reportMD}},
		},
	})
	assert.Equal(t, reportMD, reportMarkdown(log))

	plain := pipeline.Seed("Go").Append(domain.Message{Role: domain.RoleStageOutput, Stage: pipeline.StageWrite, Content: "draft"})
	assert.Equal(t, "draft", reportMarkdown(plain))
	assert.Empty(t, reportMarkdown(pipeline.Seed("Go")))
}

func TestOpenTranscriptStore(t *testing.T) {
	ctx := context.Background()

	store, closeFn, err := OpenTranscriptStore(ctx, config.TranscriptConfig{URL: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)
	assert.NoError(t, closeFn())

	mr := miniredis.RunT(t)
	store, closeFn, err = OpenTranscriptStore(ctx, config.TranscriptConfig{URL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "r", pipeline.Seed("Go")))
	assert.NoError(t, closeFn())

	_, closeFn, err = OpenTranscriptStore(ctx, config.TranscriptConfig{URL: "postgres://x"})
	assert.Error(t, err)
	assert.NotNil(t, closeFn)
}

func TestOpenTranscriptStore_Protected(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := config.TranscriptConfig{
		URL:    "redis://" + mr.Addr() + "/0",
		Redact: []string{"(?i)query"},
		Key:    base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32))),
	}
	store, closeFn, err := OpenTranscriptStore(ctx, cfg)
	require.NoError(t, err)
	defer closeFn()

	log := pipeline.Seed("Go").Append(domain.NewStageOutput("", domain.ToolCallRequest{
		ID: "c1", Name: "search", Arguments: map[string]any{"query": "secret topic"},
	}))
	require.NoError(t, store.Save(ctx, "r", log))

	raw, err := mr.Get(redis.DefaultPrefix + "r")
	require.NoError(t, err)
	assert.NotContains(t, raw, "secret topic")
	assert.Contains(t, raw, string(middleware.EnvelopeRole))

	loaded, err := store.Load(ctx, "r")
	require.NoError(t, err)
	last, _ := loaded.Last()
	assert.Equal(t, middleware.Mask, last.ToolCalls[0].Arguments["query"])

	_, _, err = OpenTranscriptStore(ctx, config.TranscriptConfig{URL: "memory", Key: "not-base64!"})
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("x")))
	assert.Equal(t, ExitCancelled, ExitCode(context.Canceled))
	assert.Equal(t, 7, ExitCode(&ExitError{Code: 7, Err: errors.New("x")}))
}
