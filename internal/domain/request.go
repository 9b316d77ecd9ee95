package domain

import "time"

// MapNode is a minimal view of a mind-map node used as request context.
type MapNode struct {
	ID      string `json:"id,omitempty"`
	Label   string `json:"label"`
	Content string `json:"content,omitempty"`
	Type    string `json:"type,omitempty"`
}

// MapEdge is a minimal view of a mind-map connection used as request context.
type MapEdge struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Type     string `json:"type,omitempty"`
	Label    string `json:"label,omitempty"`
}

// RequestOptions tunes selection and output shaping for one request.
type RequestOptions struct {
	Depth            int  `json:"depth,omitempty"`
	Count            int  `json:"count,omitempty"`
	IncludeSubtasks  bool `json:"include_subtasks,omitempty"`
	EstimatePriority bool `json:"estimate_priority,omitempty"`

	// PreferredTier pins a non-default tier; empty means scoring decides.
	PreferredTier           Tier `json:"preferred_tier,omitempty"`
	RequireVision           bool `json:"require_vision,omitempty"`
	RequireWebSearch        bool `json:"require_web_search,omitempty"`
	RequireExtendedThinking bool `json:"require_extended_thinking,omitempty"`

	CustomInstructions string `json:"custom_instructions,omitempty"`
}

// Request is one inbound execution request. Immutable for its lifetime.
type Request struct {
	Agent   AgentType `json:"agent"`
	Prompt  string    `json:"prompt,omitempty"`
	Message string    `json:"message,omitempty"`

	MapID     string `json:"map_id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`

	Nodes          []MapNode `json:"nodes,omitempty"`
	ExistingNodes  []MapNode `json:"existing_nodes,omitempty"`
	Edges          []MapEdge `json:"edges,omitempty"`
	SelectedNode   *MapNode  `json:"selected_node,omitempty"`
	MapTitle       string    `json:"map_title,omitempty"`
	MapDescription string    `json:"map_description,omitempty"`

	History []Message `json:"conversation_history,omitempty"`
	Tools   []string  `json:"tools,omitempty"`

	Options RequestOptions `json:"options"`
	Stream  bool           `json:"stream,omitempty"`
}

// Text returns the free-text instruction of the request, whichever of
// message/prompt the caller set.
func (r Request) Text() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Prompt
}

// ChatRequest is the shaped payload sent to the upstream provider.
type ChatRequest struct {
	Model         string          `json:"model"`
	System        []SystemSegment `json:"system,omitempty"`
	Messages      []Message       `json:"messages"`
	Tools         []ToolSchema    `json:"tools,omitempty"`
	ToolChoice    *ToolChoice     `json:"tool_choice,omitempty"`
	MaxTokens     int             `json:"max_tokens"`
	Temperature   float64         `json:"temperature,omitempty"`
	TopP          float64         `json:"top_p,omitempty"`
	TopK          int             `json:"top_k,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	UserID        string          `json:"user_id,omitempty"`
}

// TokenUsage tracks the four token classes the provider bills separately.
type TokenUsage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// CostEstimate breaks a request's cost down by token class.
type CostEstimate struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CachedTokens int     `json:"cached_tokens"`
	InputCost    float64 `json:"input_cost"`
	OutputCost   float64 `json:"output_cost"`
	CacheSavings float64 `json:"cache_savings"`
	TotalCost    float64 `json:"total_cost"`
	Currency     string  `json:"currency"`
}

// ChatResponse is the complete upstream reply for a standard request.
type ChatResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason,omitempty"`
	Content    []ContentBlock `json:"content"`
	Usage      TokenUsage     `json:"usage"`
	Cost       CostEstimate   `json:"cost"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Interpretation holds structured data extracted from tool calls or from
// a best-effort JSON parse of free-text content.
type Interpretation struct {
	GeneratedNodes []map[string]any `json:"generated_nodes,omitempty"`
	GeneratedEdges []map[string]any `json:"generated_edges,omitempty"`
	GeneratedTasks []map[string]any `json:"generated_tasks,omitempty"`
	Analysis       map[string]any   `json:"analysis,omitempty"`
}

// Empty reports whether nothing was extracted.
func (i *Interpretation) Empty() bool {
	return i == nil || (len(i.GeneratedNodes) == 0 && len(i.GeneratedEdges) == 0 &&
		len(i.GeneratedTasks) == 0 && len(i.Analysis) == 0)
}

// ResultMeta carries execution metadata alongside a Result.
type ResultMeta struct {
	Complexity      int  `json:"complexity"`
	ExecutionTimeMs int64 `json:"execution_time_ms"`
	Truncated       bool `json:"truncated"`
	Retries         int  `json:"retries"`
}

// Result is the standard-path outcome. Upstream failures are reported via
// Success=false and Content carrying a human-readable message, not an error.
type Result struct {
	Success   bool       `json:"success"`
	Agent     AgentType  `json:"agent"`
	Model     string     `json:"model"`
	Content   string     `json:"content"`
	Thinking  string     `json:"thinking,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls"`
	Usage     TokenUsage `json:"usage"`
	CostUSD   float64    `json:"cost_usd"`
	Meta      ResultMeta `json:"metadata"`

	Interpretation *Interpretation `json:"interpretation,omitempty"`
}
