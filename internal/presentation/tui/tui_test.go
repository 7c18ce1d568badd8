package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinter_Message(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, termenv.Ascii)

	p.Message(domain.NewUserMessage("Research the topic 'Go'."))
	p.Message(domain.NewStageOutput("", domain.ToolCallRequest{Name: "search"}, domain.ToolCallRequest{Name: "calculator"}))
	p.Message(domain.NewStageOutput(strings.Repeat("x", 150)))

	out := buf.String()
	assert.Contains(t, out, "USER: Research the topic 'Go'....\n")
	assert.Contains(t, out, "CALLING TOOL: search\n")
	assert.NotContains(t, out, "calculator", "only the first request is announced")
	assert.Contains(t, out, "STAGE_OUTPUT: "+strings.Repeat("x", 100)+"...\n")
	assert.NotContains(t, out, "\x1b[", "ascii profile prints no escape codes")
}

func TestPrinter_Failure(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, termenv.Ascii)

	log := domain.NewMessageLog(domain.NewUserMessage("topic"))
	p.Failure(log, errors.New("rate limited"))
	assert.Equal(t, "\nRun failed after USER message: rate limited\n", buf.String())

	buf.Reset()
	p.Failure(domain.MessageLog{}, errors.New("boom"))
	assert.Contains(t, buf.String(), "after no message")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "héllo", Preview("héllo", 10))
	assert.Equal(t, "hé", Preview("héllo", 2), "counts characters, not bytes")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, termenv.Ascii)
	assert.Contains(t, buf.String(), "____")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestNewRenderer(t *testing.T) {
	render, err := NewRenderer(false, 80)
	require.NoError(t, err)

	out, err := render("# Executive Summary\n\nGo is **fast**.")
	require.NoError(t, err)
	assert.Contains(t, out, "Executive Summary")
	assert.Contains(t, out, "fast")
}
