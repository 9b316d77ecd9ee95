package domain

import "encoding/json"

// ToolSchema describes a tool for the upstream function-calling protocol.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
	Category    string          `json:"category,omitempty"`
	Cacheable   bool            `json:"cacheable,omitempty"`
}

// ToolCall is the model's request to invoke a tool. Input holds the parsed
// structured payload; Raw holds the accumulated fragment verbatim when the
// payload could not be parsed as JSON.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
	Raw   string          `json:"raw,omitempty"`
}

// ToolChoice controls how the upstream model may use tools.
type ToolChoice struct {
	Type string `json:"type"` // "auto", "any", "none", "tool"
	Name string `json:"name,omitempty"`
}

// ToolCatalog resolves tool schemas by name. Implementations are static
// configuration; the catalog content itself is not part of this subsystem.
type ToolCatalog interface {
	// Schema returns the definition for a tool name.
	Schema(name string) (ToolSchema, bool)
	// ForAgent returns the schemas for the given required and optional tool
	// names, preserving order and skipping unknown names.
	ForAgent(required, optional []string) []ToolSchema
	// Validate checks a tool input payload against the tool's JSON schema.
	Validate(name string, input json.RawMessage) error
}
