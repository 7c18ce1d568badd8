package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/quill"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/pipeline"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/aretw0/quill/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubModel replays replies in order and records every request.
type stubModel struct {
	mu       sync.Mutex
	replies  []domain.Message
	requests []ports.ChatRequest
	err      error
}

func (m *stubModel) Chat(_ context.Context, req ports.ChatRequest) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
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

func stubTools(t *testing.T) (*registry.Registry, *registry.Registry) {
	t.Helper()
	research := registry.NewRegistry()
	research.MustRegister(domain.Tool{Name: "search"}, func(context.Context, map[string]any) (string, error) {
		return "result-1", nil
	})
	research.MustRegister(domain.Tool{Name: "calculator"}, func(context.Context, map[string]any) (string, error) {
		return "4", nil
	})
	writer := registry.NewRegistry()
	writer.MustRegister(domain.Tool{Name: "save_report"}, func(_ context.Context, args map[string]any) (string, error) {
		return "File saved successfully: " + args["filename"].(string), nil
	})
	return research, writer
}

func toolCall(name string, args map[string]any) domain.Message {
	return domain.NewStageOutput("", domain.ToolCallRequest{ID: name + "-1", Name: name, Arguments: args})
}

func TestPipeline_EndToEnd(t *testing.T) {
	research, writer := stubTools(t)
	researcher := &stubModel{replies: []domain.Message{
		toolCall("search", map[string]any{"q": "X"}),
		domain.NewStageOutput("X is interesting."),
	}}
	writerModel := &stubModel{replies: []domain.Message{
		toolCall("save_report", map[string]any{"filename": "x.docx", "content": "# X"}),
	}}

	g, err := pipeline.New(pipeline.Config{
		Model: researcher, WriterModel: writerModel,
		ResearchTools: research, WriterTools: writer,
	})
	require.NoError(t, err)
	eng, err := quill.New(g)
	require.NoError(t, err)

	final, err := eng.Run(context.Background(), domain.NewMessageLog(domain.NewUserMessage("Research X")))
	require.NoError(t, err)
	require.Equal(t, 6, final.Len())

	last, _ := final.Last()
	assert.Equal(t, domain.RoleToolResult, last.Role)
	assert.Contains(t, last.Content, "File saved successfully")

	require.Len(t, researcher.requests, 2)
	assert.Equal(t, pipeline.ResearchTemperature, researcher.requests[0].Temperature)
	assert.Empty(t, researcher.requests[0].Instructions)
	assert.Len(t, researcher.requests[0].Tools, 2)
	assert.Len(t, researcher.requests[1].Messages, 3, "the researcher sees the tool result")

	require.Len(t, writerModel.requests, 1)
	assert.Equal(t, pipeline.WriterInstructions, writerModel.requests[0].Instructions)
	assert.Equal(t, pipeline.WriteTemperature, writerModel.requests[0].Temperature)
	assert.Equal(t, "save_report", writerModel.requests[0].Tools[0].Name)
	for _, m := range final.Messages() {
		assert.NotEqual(t, pipeline.WriterInstructions, m.Content, "instructions are never appended to the log")
	}
}

func TestPipeline_FatalModelError(t *testing.T) {
	research, writer := stubTools(t)
	model := &stubModel{err: errors.New("invalid api key")}
	g, err := pipeline.New(pipeline.Config{
		Model: model, ResearchTools: research, WriterTools: writer,
		Retry: domain.RetryPolicy{MaxAttempts: 3, BackoffFactor: 2, IsRetryable: domain.RetryTransient},
	})
	require.NoError(t, err)
	eng, err := quill.New(g)
	require.NoError(t, err)

	partial, err := eng.Run(context.Background(), pipeline.Seed("X"))
	assert.ErrorIs(t, err, domain.ErrFatal)
	assert.Equal(t, 1, partial.Len())
	assert.Len(t, model.requests, 1)
}

func TestPipeline_Shape(t *testing.T) {
	research, writer := stubTools(t)
	g, err := pipeline.New(pipeline.Config{Model: &stubModel{}, ResearchTools: research, WriterTools: writer})
	require.NoError(t, err)

	assert.Equal(t, pipeline.StageResearch, g.Entry)
	assert.Contains(t, g.ToolStages, pipeline.StageResearchTools)
	assert.Contains(t, g.ToolStages, pipeline.StageWriteTools)

	content := domain.NewMessageLog(domain.NewStageOutput("done"))
	next, err := g.Routes.Next(pipeline.StageResearchTools, content)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StageResearch, next)
	next, err = g.Routes.Next(pipeline.StageWriteTools, content)
	require.NoError(t, err)
	assert.Equal(t, domain.End, next)
}

func TestPipeline_RequiresDependencies(t *testing.T) {
	_, err := pipeline.New(pipeline.Config{})
	assert.Error(t, err)

	_, err = pipeline.New(pipeline.Config{Model: &stubModel{}})
	assert.Error(t, err)
}

func TestSeedMessage(t *testing.T) {
	msg := pipeline.SeedMessage("Nvidia Stock Performance 2024")
	assert.Equal(t, domain.RoleUser, msg.Role)
	assert.Equal(t, "Research the topic 'Nvidia Stock Performance 2024'. Use the calculator for any math. "+
		"Once you have enough info, pass it to the writer.", msg.Content)
}
