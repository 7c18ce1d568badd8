package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quill"

// Tool call outcomes used as the "outcome" label.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the Prometheus collectors fed by engine hooks.
type Metrics struct {
	StageAttempts *prometheus.CounterVec
	StageRetries  *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	ToolCalls     *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses a fresh prometheus.Registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		StageAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_attempts_total",
			Help:      "Total number of stage compute attempts.",
		}, []string{"stage"}),
		StageRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_retries_total",
			Help:      "Total number of retries scheduled after a failed attempt.",
		}, []string{"stage"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of stage executions, retries and backoff included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage", "status"}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool invocations by outcome.",
		}, []string{"tool", "outcome"}),
		gatherer: reg,
	}
	reg.MustRegister(m.StageAttempts, m.StageRetries, m.StageDuration, m.ToolCalls)
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageLeave: func(_ context.Context, e *domain.StageEvent) {
			status := "ok"
			if e.Err != nil {
				status = "error"
			}
			if !e.Tools {
				m.StageAttempts.WithLabelValues(e.Stage).Add(float64(e.Attempts))
			}
			m.StageDuration.WithLabelValues(e.Stage, status).Observe(e.Duration.Seconds())
		},
		OnRetry: func(_ context.Context, e *domain.RetryEvent) {
			m.StageRetries.WithLabelValues(e.Stage).Inc()
		},
		OnToolReturn: func(_ context.Context, e *domain.ToolEvent) {
			outcome := OutcomeOK
			if e.IsError {
				outcome = OutcomeError
			}
			m.ToolCalls.WithLabelValues(e.ToolName, outcome).Inc()
		},
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
