package domain

// AgentType names a task profile with its own default tools, token budget,
// and temperature.
type AgentType string

// All known agent types.
const (
	AgentGenerate    AgentType = "generate"
	AgentExpand      AgentType = "expand"
	AgentSummarize   AgentType = "summarize"
	AgentAnalyze     AgentType = "analyze"
	AgentOrganize    AgentType = "organize"
	AgentResearch    AgentType = "research"
	AgentHypothesize AgentType = "hypothesize"
	AgentTaskConvert AgentType = "task_convert"
	AgentChat        AgentType = "chat"
	AgentCritique    AgentType = "critique"
	AgentConnect     AgentType = "connect"
	AgentVisualize   AgentType = "visualize"
)

// AgentProfile is the static configuration for one agent type.
type AgentProfile struct {
	Type           AgentType `json:"type"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	DefaultTier    Tier      `json:"default_tier"`
	MaxTokens      int       `json:"max_tokens"`
	Temperature    float64   `json:"temperature"`
	TopP           float64   `json:"top_p,omitempty"`
	RequiredTools  []string  `json:"required_tools"`
	OptionalTools  []string  `json:"optional_tools"`
	BaseComplexity int       `json:"base_complexity"`
	// ForceTools makes the upstream request use tool_choice "any" so the
	// model must act through a tool instead of replying in free text.
	ForceTools bool `json:"force_tools,omitempty"`
}

// AgentRegistry resolves agent profiles. Implementations are static
// configuration, external to this subsystem.
type AgentRegistry interface {
	// Profile returns the profile for an agent type.
	Profile(t AgentType) (AgentProfile, bool)
	// Types returns all registered agent types in a stable order.
	Types() []AgentType
}
