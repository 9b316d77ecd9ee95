package domain

import (
	"encoding/json"
	"time"
)

// StreamEventKind enumerates the normalized streaming event taxonomy
// exposed to downstream consumers.
type StreamEventKind string

const (
	EventStreamStart    StreamEventKind = "stream_start"
	EventModelSelected  StreamEventKind = "model_selected"
	EventThinkingStart  StreamEventKind = "thinking_start"
	EventThinkingDelta  StreamEventKind = "thinking_delta"
	EventTextStart      StreamEventKind = "text_start"
	EventTextDelta      StreamEventKind = "text_delta"
	EventTextComplete   StreamEventKind = "text_complete"
	EventToolStart      StreamEventKind = "tool_start"
	EventToolInputDelta StreamEventKind = "tool_input_delta"
	EventToolComplete   StreamEventKind = "tool_complete"
	EventUsage          StreamEventKind = "usage"
	EventComplete       StreamEventKind = "complete"
	EventError          StreamEventKind = "error"
	EventDone           StreamEventKind = "done"
)

// StreamStartPayload opens a streaming session.
type StreamStartPayload struct {
	Agent AgentType `json:"agent"`
}

// ModelSelectedPayload reports the model choice for the session.
type ModelSelectedPayload struct {
	Model      string `json:"model"`
	Reason     string `json:"reason"`
	Complexity int    `json:"complexity"`
}

// TextPayload carries text/thinking deltas and completions. Accumulated is
// set on text_delta with the running concatenation so far.
type TextPayload struct {
	Text        string `json:"text"`
	Accumulated string `json:"accumulated,omitempty"`
}

// ToolPayload carries tool block lifecycle data. PartialJSON is set on
// tool_input_delta; Input (or Raw on parse failure) on tool_complete.
type ToolPayload struct {
	Name        string          `json:"name,omitempty"`
	ID          string          `json:"id,omitempty"`
	PartialJSON string          `json:"partial_json,omitempty"`
	Input       json.RawMessage `json:"input,omitempty"`
	Raw         string          `json:"raw,omitempty"`
}

// UsagePayload reports token usage for the session.
type UsagePayload struct {
	InputTokens     int    `json:"input_tokens"`
	OutputTokens    int    `json:"output_tokens"`
	Model           string `json:"model,omitempty"`
	ExecutionTimeMs int64  `json:"execution_time_ms,omitempty"`
}

// CompletePayload summarizes the full assistant turn.
type CompletePayload struct {
	Content         string     `json:"content"`
	Model           string     `json:"model"`
	Usage           TokenUsage `json:"usage"`
	ExecutionTimeMs int64      `json:"execution_time_ms"`
}

// ErrorPayload reports a stream fault.
type ErrorPayload struct {
	Message string `json:"message"`
}

// DonePayload terminates a session. Exactly one done event ends every
// stream, always last.
type DonePayload struct {
	Completed bool           `json:"completed"`
	Error     bool           `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// StreamEvent is a tagged variant over the event taxonomy. Exactly the
// payload matching Kind is non-nil.
type StreamEvent struct {
	Kind      StreamEventKind `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`

	Start    *StreamStartPayload   `json:"stream_start,omitempty"`
	Selected *ModelSelectedPayload `json:"model_selected,omitempty"`
	Text     *TextPayload          `json:"text,omitempty"`
	Tool     *ToolPayload          `json:"tool,omitempty"`
	Usage    *UsagePayload         `json:"usage,omitempty"`
	Complete *CompletePayload      `json:"complete,omitempty"`
	Error    *ErrorPayload         `json:"error,omitempty"`
	Done     *DonePayload          `json:"done,omitempty"`
}

// NewStreamEvent stamps an event with the current time.
func NewStreamEvent(kind StreamEventKind) StreamEvent {
	return StreamEvent{Kind: kind, Timestamp: time.Now()}
}
