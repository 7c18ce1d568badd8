// Package pipeline assembles the research-then-write graph: a researcher that
// may call search and calculator tools until it is satisfied, followed by a
// writer that turns the findings into a report and saves it.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/dsl"
	"github.com/aretw0/quill/pkg/graph"
	"github.com/aretw0/quill/pkg/ports"
)

// Stage names of the research graph.
const (
	StageResearch      = "research"
	StageResearchTools = "research_tools"
	StageWrite         = "write"
	StageWriteTools    = "write_tools"
)

// Default sampling temperatures. The writer is fully deterministic.
const (
	ResearchTemperature = 0.1
	WriteTemperature    = 0.0
)

// WriterInstructions steers the writer towards a structured report saved with
// the save_report tool.
const WriterInstructions = "You are a Technical Writer. Summarize the research above into a professional, " +
	"detailed, and comprehensive report. \n\n" +
	"Structure the report with the following clearly defined sections using Markdown headers:\n" +
	"# Executive Summary\n" +
	"# Key Findings\n" +
	"# Detailed Analysis\n" +
	"# Implications\n" +
	"# Future Outlook\n\n" +
	"Use bullet points, bold text for emphasis, and clear paragraphs. " +
	"Ensure the content is rich, insightful, and not scanty. " +
	"THEN, you MUST use the 'save_report' tool to save it as a .docx file."

// Config wires the research graph.
type Config struct {
	// Model backs both stages unless WriterModel is set.
	Model       ports.ChatModel
	WriterModel ports.ChatModel

	ResearchTools ports.ToolProvider
	WriterTools   ports.ToolProvider

	// Retry applies to both compute stages. The zero value means domain.NoRetry.
	Retry domain.RetryPolicy
}

// New builds the research graph:
//
//	research --tool calls--> research_tools --> research
//	research --content-----> write
//	write    --tool calls--> write_tools --> END
//	write    --content-----> END
func New(cfg Config) (*graph.Graph, error) {
	if cfg.Model == nil {
		return nil, errors.New("pipeline: model is required")
	}
	if cfg.ResearchTools == nil || cfg.WriterTools == nil {
		return nil, errors.New("pipeline: research and writer tools are required")
	}
	writer := cfg.WriterModel
	if writer == nil {
		writer = cfg.Model
	}
	retry := cfg.Retry
	if retry.IsRetryable == nil && retry.MaxAttempts == 0 {
		retry = domain.NoRetry()
	}

	b := dsl.New()
	b.Add(StageResearch).
		Do(ModelStage(cfg.Model, cfg.ResearchTools, ResearchTemperature, "")).
		Retry(retry).
		Tools(cfg.ResearchTools).
		ToolStage(StageResearchTools).
		LoopBack()
	b.Add(StageWrite).
		Do(ModelStage(writer, cfg.WriterTools, WriteTemperature, WriterInstructions)).
		Retry(retry).
		Tools(cfg.WriterTools).
		ToolStage(StageWriteTools).
		Finalize()

	g, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return g, nil
}

// ModelStage adapts a chat model into a stage compute function. The model sees
// the whole log plus the tool definitions of provider. Instructions, when set,
// are sent after the conversation and never appended to the log.
func ModelStage(model ports.ChatModel, provider ports.ToolProvider, temperature float64, instructions string) domain.ComputeFunc {
	return func(ctx context.Context, log domain.MessageLog) (domain.Message, error) {
		req := ports.ChatRequest{
			Messages:     log.Messages(),
			Instructions: instructions,
			Temperature:  temperature,
		}
		if provider != nil {
			req.Tools = provider.Definitions()
		}
		return model.Chat(ctx, req)
	}
}

// SeedMessage builds the initial user message for a research topic.
func SeedMessage(topic string) domain.Message {
	return domain.NewUserMessage(fmt.Sprintf(
		"Research the topic '%s'. Use the calculator for any math. "+
			"Once you have enough info, pass it to the writer.", topic))
}

// Seed returns the initial log of a research run.
func Seed(topic string) domain.MessageLog {
	return domain.NewMessageLog(SeedMessage(topic))
}
