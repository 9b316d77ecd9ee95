package domain

// Role constants for conversation message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Block kinds for typed message content.
const (
	BlockText       = "text"
	BlockThinking   = "thinking"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
	BlockImage      = "image"
	BlockDocument   = "document"
)

// CacheControl marks a prompt segment, tool, or content block as cacheable
// by the upstream provider.
type CacheControl struct {
	Type string `json:"type"` // "ephemeral"
	TTL  string `json:"ttl,omitempty"`
}

// MediaSource carries image/document payloads (base64 or URL reference).
type MediaSource struct {
	Type      string `json:"type"` // "base64" or "url"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// ContentBlock is a closed tagged variant over the block kinds above.
// Exactly the fields for the block's Kind are set; consumers switch on Kind.
type ContentBlock struct {
	Kind string `json:"kind"`

	// BlockText / BlockThinking
	Text string `json:"text,omitempty"`

	// BlockToolUse
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input []byte `json:"input,omitempty"`

	// BlockToolResult
	ToolUseID string `json:"tool_use_id,omitempty"`
	Result    string `json:"result,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`

	// BlockImage / BlockDocument
	Source *MediaSource `json:"source,omitempty"`

	Cache *CacheControl `json:"cache_control,omitempty"`
}

// Message is a single conversation turn. Content is either plain text
// (Blocks nil) or an ordered list of typed content blocks.
type Message struct {
	Role    string         `json:"role"`
	Content string         `json:"content,omitempty"`
	Blocks  []ContentBlock `json:"blocks,omitempty"`
}

// TextMessage builds a plain-text message.
func TextMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}

// IsText reports whether the message carries plain text rather than blocks.
func (m Message) IsText() bool { return m.Blocks == nil }

// SystemSegment is one segment of the system prompt, optionally cacheable.
type SystemSegment struct {
	Text  string        `json:"text"`
	Cache *CacheControl `json:"cache_control,omitempty"`
}
