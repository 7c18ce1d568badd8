package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/quill"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/dsl"
	"github.com/aretw0/quill/pkg/observability"
	"github.com/aretw0/quill/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombine(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{
		OnStageEnter: func(context.Context, *domain.StageEvent) { calls = append(calls, "a.enter") },
		OnRetry:      func(context.Context, *domain.RetryEvent) { calls = append(calls, "a.retry") },
	}
	b := domain.LifecycleHooks{
		OnStageEnter: func(context.Context, *domain.StageEvent) { calls = append(calls, "b.enter") },
	}

	hooks := observability.Combine(a, domain.LifecycleHooks{}, b)
	require.NotNil(t, hooks.OnStageEnter)
	require.NotNil(t, hooks.OnRetry)
	assert.Nil(t, hooks.OnToolCall, "no source, no callback")

	hooks.OnStageEnter(context.Background(), &domain.StageEvent{})
	hooks.OnRetry(context.Background(), &domain.RetryEvent{})
	assert.Equal(t, []string{"a.enter", "b.enter", "a.retry"}, calls)
}

// flakyResearch fails once, then requests two tools, then answers.
func flakyResearch() domain.ComputeFunc {
	n := 0
	return func(context.Context, domain.MessageLog) (domain.Message, error) {
		n++
		switch n {
		case 1:
			return domain.Message{}, domain.Transient(errors.New("503"))
		case 2:
			return domain.NewStageOutput("",
				domain.ToolCallRequest{ID: "1", Name: "echo"},
				domain.ToolCallRequest{ID: "2", Name: "missing"},
			), nil
		}
		return domain.NewStageOutput("done"), nil
	}
}

func TestMetrics_RecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	tools := registry.NewRegistry()
	tools.MustRegister(domain.Tool{Name: "echo"}, func(context.Context, map[string]any) (string, error) {
		return "echo", nil
	})

	b := dsl.New()
	b.Add("research").Do(flakyResearch()).Retry(domain.RetryPolicy{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		BackoffFactor: 2,
		IsRetryable:   domain.RetryTransient,
	}).Tools(tools).LoopBack()
	g := b.MustBuild()

	eng, err := quill.New(g,
		quill.WithLifecycleHooks(metrics.Hooks()),
		quill.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
	require.NoError(t, err)

	final, err := eng.Run(context.Background(), domain.NewMessageLog(domain.NewUserMessage("topic")))
	require.NoError(t, err)
	assert.Equal(t, 5, final.Len())

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.StageAttempts.WithLabelValues("research")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StageRetries.WithLabelValues("research")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ToolCalls.WithLabelValues("echo", observability.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ToolCalls.WithLabelValues("missing", observability.OutcomeError)))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.StageDuration), "research/ok and research_tools/ok")

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "quill_tool_calls_total")
}

func TestMetrics_NilRegistry(t *testing.T) {
	m := observability.NewMetrics(nil)
	m.Hooks().OnRetry(context.Background(), &domain.RetryEvent{Stage: "write"})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageRetries.WithLabelValues("write")))
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hooks := observability.LogHooks(logger)

	ctx := context.Background()
	hooks.OnStageLeave(ctx, &domain.StageEvent{EventBase: domain.EventBase{RunID: "r1"}, Stage: "write", Err: errors.New("nope")})
	hooks.OnToolReturn(ctx, &domain.ToolEvent{Stage: "write_tools", ToolName: "save_report", IsError: true})

	out := buf.String()
	assert.Contains(t, out, "msg=stage_leave")
	assert.Contains(t, out, "run_id=r1")
	assert.Contains(t, out, "error=nope")
	assert.Contains(t, out, "tool_name=save_report")
	assert.Contains(t, out, "is_error=true")
}
