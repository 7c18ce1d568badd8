package domain

// Role identifies who produced a message.
type Role string

const (
	// RoleUser is input seeded by the host (e.g. the research topic).
	RoleUser Role = "user"
	// RoleStageOutput is a message produced by a stage compute function.
	RoleStageOutput Role = "stage_output"
	// RoleToolResult is the outcome of a single tool invocation.
	RoleToolResult Role = "tool_result"
)

// MessageKind is the tagged union used by routers to dispatch on a message.
type MessageKind int

const (
	// KindContent is a message without tool-call requests.
	KindContent MessageKind = iota
	// KindToolCall is a stage output asking for one or more tools to be invoked.
	KindToolCall
)

func (k MessageKind) String() string {
	switch k {
	case KindToolCall:
		return "tool_call"
	default:
		return "content"
	}
}

// ToolCallRequest is a structured request, embedded in a stage output, to invoke a named tool.
type ToolCallRequest struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Message is a single turn of a run.
// Messages are values; once appended to a MessageLog they are never modified.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls is only populated on stage outputs.
	ToolCalls []ToolCallRequest `json:"tool_calls,omitempty"`

	// ToolCallID and Name correlate a tool result with its request.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`

	// Stage is the name of the stage (or tool stage) that produced the message.
	Stage string `json:"stage,omitempty"`

	// IsError marks tool results that carry a contained failure.
	IsError bool `json:"is_error,omitempty"`
}

// Kind reports whether the message requests tool calls.
// Only stage outputs can carry requests; any other role is content.
func (m Message) Kind() MessageKind {
	if m.Role == RoleStageOutput && len(m.ToolCalls) > 0 {
		return KindToolCall
	}
	return KindContent
}

// HasToolCalls is a shorthand for Kind() == KindToolCall.
func (m Message) HasToolCalls() bool {
	return m.Kind() == KindToolCall
}

// NewUserMessage creates a user turn.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewStageOutput creates a stage output, optionally carrying tool-call requests.
func NewStageOutput(content string, calls ...ToolCallRequest) Message {
	return Message{Role: RoleStageOutput, Content: content, ToolCalls: calls}
}

// NewToolResult creates a successful tool result for the given request.
func NewToolResult(req ToolCallRequest, content string) Message {
	return Message{
		Role:       RoleToolResult,
		Content:    content,
		ToolCallID: req.ID,
		Name:       req.Name,
	}
}

// NewToolError creates a tool result describing a contained failure.
func NewToolError(req ToolCallRequest, content string) Message {
	m := NewToolResult(req, content)
	m.IsError = true
	return m
}

// clone returns a deep copy so the log never shares mutable state with callers.
func (m Message) clone() Message {
	if len(m.ToolCalls) == 0 {
		m.ToolCalls = nil
		return m
	}
	calls := make([]ToolCallRequest, len(m.ToolCalls))
	for i, c := range m.ToolCalls {
		c.Arguments = cloneArguments(c.Arguments)
		calls[i] = c
	}
	m.ToolCalls = calls
	return m
}

// cloneArguments copies decoded JSON arguments all the way down, so nested
// objects and arrays are not shared with the caller.
func cloneArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneArguments(v)
	case []any:
		if v == nil {
			return v
		}
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), v...)
	default:
		return v
	}
}
