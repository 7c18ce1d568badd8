package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStageEnter EventType = "stage_enter"
	EventStageLeave EventType = "stage_leave"
	EventRetry      EventType = "retry"
	EventToolCall   EventType = "tool_call"
	EventToolReturn EventType = "tool_return"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
}

// StageEvent represents entry or exit from a stage.
type StageEvent struct {
	EventBase
	Stage    string        `json:"stage"`
	Tools    bool          `json:"tools,omitempty"` // true for tool stages
	Attempts int           `json:"attempts,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// RetryEvent is emitted before the supervisor waits for another attempt.
type RetryEvent struct {
	EventBase
	Stage   string        `json:"stage"`
	Attempt int           `json:"attempt"` // the attempt that failed
	Delay   time.Duration `json:"delay"`
	Err     error         `json:"-"`
}

// ToolEvent represents a tool execution.
type ToolEvent struct {
	EventBase
	Stage    string         `json:"stage"`
	ToolName string         `json:"tool_name"`
	CallID   string         `json:"call_id,omitempty"`
	Input    map[string]any `json:"input,omitempty"`
	Output   string         `json:"output,omitempty"`
	IsError  bool           `json:"is_error,omitempty"`
	Duration time.Duration  `json:"duration,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
// Any field may be nil. Hooks run synchronously on the run's goroutine
// (or the tool's goroutine when tools run in parallel) and must not block.
type LifecycleHooks struct {
	OnStageEnter func(context.Context, *StageEvent)
	OnStageLeave func(context.Context, *StageEvent)
	OnRetry      func(context.Context, *RetryEvent)
	OnToolCall   func(context.Context, *ToolEvent)
	OnToolReturn func(context.Context, *ToolEvent)
}
