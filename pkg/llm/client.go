// Package llm implements ports.ChatModel against an OpenAI-compatible chat
// completions endpoint (Groq by default).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/oklog/ulid/v2"
)

const (
	// DefaultBaseURL is Groq's OpenAI-compatible API.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel is the model used when none is configured.
	DefaultModel = "meta-llama/llama-4-scout-17b-16e-instruct"

	defaultTimeout = 2 * time.Minute
	maxBodyBytes   = 8 << 20
)

// Client is a chat completions client.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

var _ ports.ChatModel = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (e.g. an httptest server).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(u), "/")
	}
}

// WithModel sets the model name sent with every request.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient creates a client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Chat sends the conversation and returns the reply as a stage output.
//
// Transport failures and HTTP 408/429/5xx responses are transient (see
// domain.RetryTransient); other 4xx responses are permanent.
func (c *Client) Chat(ctx context.Context, req ports.ChatRequest) (domain.Message, error) {
	body, err := json.Marshal(toRequestBody(c.model, req))
	if err != nil {
		return domain.Message{}, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return domain.Message{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Message{}, ctx.Err()
		}
		return domain.Message{}, domain.Transient(fmt.Errorf("chat request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.Message{}, domain.Transient(fmt.Errorf("read chat response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Message{}, &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.Message{}, fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return domain.Message{}, errors.New("chat response has no choices")
	}
	return fromResponseMessage(out.Choices[0].Message), nil
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

type chatToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name string `json:"name"`
	// Arguments is a JSON document encoded as a string.
	Arguments string `json:"arguments"`
}

type chatTool struct {
	Type     string         `json:"type"`
	Function chatToolSchema `json:"function"`
}

type chatToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

func toRequestBody(model string, req ports.ChatRequest) chatRequest {
	body := chatRequest{
		Model:       model,
		Messages:    make([]chatMessage, 0, len(req.Messages)+1),
		Temperature: req.Temperature,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, toChatMessage(m))
	}
	if req.Instructions != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.Instructions})
	}
	for _, t := range req.Tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		body.Tools = append(body.Tools, chatTool{
			Type:     "function",
			Function: chatToolSchema{Name: t.Name, Description: t.Description, Parameters: params},
		})
	}
	return body
}

func toChatMessage(m domain.Message) chatMessage {
	switch m.Role {
	case domain.RoleStageOutput:
		out := chatMessage{Role: "assistant", Content: m.Content}
		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Arguments)
			if err != nil || tc.Arguments == nil {
				args = []byte("{}")
			}
			out.ToolCalls = append(out.ToolCalls, chatToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: chatFunction{Name: tc.Name, Arguments: string(args)},
			})
		}
		return out
	case domain.RoleToolResult:
		return chatMessage{Role: "tool", Content: m.Content, ToolCallID: m.ToolCallID, Name: m.Name}
	default:
		return chatMessage{Role: "user", Content: m.Content}
	}
}

func fromResponseMessage(m chatMessage) domain.Message {
	var calls []domain.ToolCallRequest
	for _, tc := range m.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + ulid.Make().String()
		}
		calls = append(calls, domain.ToolCallRequest{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: decodeArguments(tc.Function.Arguments),
		})
	}
	return domain.NewStageOutput(m.Content, calls...)
}

// decodeArguments parses the model's argument string. Malformed JSON is kept
// under "_raw" so schema validation rejects it as a contained tool error.
func decodeArguments(s string) map[string]any {
	s = strings.TrimSpace(s)
	if s == "" {
		return map[string]any{}
	}
	args := map[string]any{}
	if err := json.Unmarshal([]byte(s), &args); err != nil {
		return map[string]any{"_raw": s}
	}
	return args
}

func errorMessage(raw []byte) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	msg := strings.TrimSpace(string(raw))
	runes := 0
	for i := range msg {
		if runes == maxErrorRunes {
			return msg[:i]
		}
		runes++
	}
	return msg
}

// maxErrorRunes bounds an unstructured error body kept in APIError.Message.
const maxErrorRunes = 200
