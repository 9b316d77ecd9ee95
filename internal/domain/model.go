package domain

// Tier is an ordered cost/capability class of upstream model.
type Tier string

const (
	TierLightweight Tier = "lightweight"
	TierBalanced    Tier = "balanced"
	TierAdvanced    Tier = "advanced"
)

// ModelSpec describes one upstream model. Per-token rates are USD.
type ModelSpec struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Tier            Tier    `json:"tier"`
	InputRate       float64 `json:"input_rate"`
	OutputRate      float64 `json:"output_rate"`
	CachedRate      float64 `json:"cached_rate"`
	MaxContext      int     `json:"max_context_tokens"`
	MaxOutput       int     `json:"max_output_tokens"`
	Vision          bool    `json:"supports_vision"`
	WebSearch       bool    `json:"supports_web_search"`
	ExtendedThought bool    `json:"supports_extended_thinking"`
}

// ComplexityLevel buckets a complexity score.
type ComplexityLevel string

const (
	LevelTrivial  ComplexityLevel = "trivial"
	LevelSimple   ComplexityLevel = "simple"
	LevelModerate ComplexityLevel = "moderate"
	LevelComplex  ComplexityLevel = "complex"
	LevelExpert   ComplexityLevel = "expert"
)

// Rank orders levels for comparisons; higher is more complex.
func (l ComplexityLevel) Rank() int {
	switch l {
	case LevelTrivial:
		return 0
	case LevelSimple:
		return 1
	case LevelModerate:
		return 2
	case LevelComplex:
		return 3
	case LevelExpert:
		return 4
	}
	return -1
}

// ComplexityFactor is one weighted dimension of a complexity analysis.
type ComplexityFactor struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Value       float64 `json:"value"`
	Description string  `json:"description"`
}

// ComplexityAnalysis is the scored result of analyzing a request.
type ComplexityAnalysis struct {
	Score     int                `json:"score"` // 0-100
	Level     ComplexityLevel    `json:"level"`
	Factors   []ComplexityFactor `json:"factors"`
	Reasoning string             `json:"reasoning"`
}

// ModelSelection is a derived model choice for one request.
type ModelSelection struct {
	ModelID         string          `json:"model_id"`
	ModelName       string          `json:"model_name"`
	Tier            Tier            `json:"tier"`
	Reason          string          `json:"reason"`
	ComplexityScore int             `json:"complexity_score"`
	ComplexityLevel ComplexityLevel `json:"complexity_level"`
	EstimatedCost   float64         `json:"estimated_cost"`
}

// ContextBudget is the token allowance remaining for conversation content
// after fixed overheads are subtracted from a model's capacity.
type ContextBudget struct {
	SystemTokens   int `json:"system_tokens"`
	ToolTokens     int `json:"tool_tokens"`
	ReservedOutput int `json:"reserved_output_tokens"`
	TotalCapacity  int `json:"total_capacity"`
	Available      int `json:"available_for_content"`
}

// TruncationResult is the outcome of fitting a history into a token budget.
// When Truncated is false, Messages is the input slice unchanged.
type TruncationResult struct {
	Messages        []Message `json:"messages"`
	Truncated       bool      `json:"truncated"`
	RemovedCount    int       `json:"removed_count"`
	EstimatedTokens int       `json:"estimated_tokens"`
}

// TokenEstimator approximates token counts for pre-flight budgeting.
// Estimates are monotonically non-decreasing in input length.
type TokenEstimator interface {
	Text(s string) int
	Messages(msgs []Message) int
	Tools(tools []ToolSchema) int
}
