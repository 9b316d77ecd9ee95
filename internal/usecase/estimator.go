package usecase

import (
	"encoding/json"
	"math"

	"github.com/pkoukk/tiktoken-go"

	"mindhub/internal/domain"
)

// Per-message structural overhead (role framing and delimiters).
const messageOverheadTokens = 4

// Fixed token estimates for non-text content blocks.
const (
	imageBlockTokens    = 300
	documentBlockTokens = 600
)

// charsPerToken approximations by language. Portuguese runs denser
// per token because of accents and longer words.
const (
	charsPerTokenEN = 4.0
	charsPerTokenPT = 3.5
)

// toolOverheadFactor inflates the serialized schema size to account for
// the provider-side formatting of tool definitions.
const toolOverheadFactor = 1.3

// HeuristicEstimator estimates token counts from character length.
// It deliberately overestimates slightly so budget decisions stay safe.
type HeuristicEstimator struct {
	charsPerToken float64
}

// NewHeuristicEstimator creates an estimator for the given language
// ("pt" or "en"; anything else falls back to "en").
func NewHeuristicEstimator(language string) *HeuristicEstimator {
	cpt := charsPerTokenEN
	if language == "pt" {
		cpt = charsPerTokenPT
	}
	return &HeuristicEstimator{charsPerToken: cpt}
}

// Text estimates tokens for a plain string.
func (e *HeuristicEstimator) Text(s string) int {
	if s == "" {
		return 0
	}
	return int(math.Ceil(float64(len(s)) / e.charsPerToken))
}

// Messages estimates tokens for a conversation, including structural
// overhead and non-text content blocks.
func (e *HeuristicEstimator) Messages(messages []domain.Message) int {
	total := 0
	for _, msg := range messages {
		total += messageOverheadTokens
		total += e.Text(msg.Content)
		for _, block := range msg.Blocks {
			total += e.blockTokens(block)
		}
	}
	return total
}

func (e *HeuristicEstimator) blockTokens(block domain.ContentBlock) int {
	switch block.Kind {
	case domain.BlockText:
		return e.Text(block.Text)
	case domain.BlockToolUse:
		payload, _ := json.Marshal(map[string]any{
			"id": block.ID, "name": block.Name, "input": json.RawMessage(block.Input),
		})
		return e.Text(string(payload))
	case domain.BlockToolResult:
		payload, _ := json.Marshal(map[string]any{
			"tool_use_id": block.ToolUseID, "content": block.Result,
		})
		return e.Text(string(payload))
	case domain.BlockImage:
		return imageBlockTokens
	case domain.BlockDocument:
		return documentBlockTokens
	default:
		return 0
	}
}

// Tools estimates tokens for tool schemas: the serialized definitions
// plus provider formatting overhead.
func (e *HeuristicEstimator) Tools(tools []domain.ToolSchema) int {
	if len(tools) == 0 {
		return 0
	}
	payload, _ := json.Marshal(tools)
	return int(math.Ceil(float64(e.Text(string(payload))) * toolOverheadFactor))
}

// TiktokenEstimator estimates token counts with a real BPE tokenizer.
// More accurate than the heuristic, at the cost of encoder startup.
type TiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenEstimator creates an estimator backed by the named encoding
// (e.g. "cl100k_base").
func NewTiktokenEstimator(encoding string) (*TiktokenEstimator, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, domain.WrapOp("NewTiktokenEstimator", err)
	}
	return &TiktokenEstimator{enc: enc}, nil
}

// Text counts tokens for a plain string.
func (e *TiktokenEstimator) Text(s string) int {
	if s == "" {
		return 0
	}
	return len(e.enc.Encode(s, nil, nil))
}

// Messages counts tokens for a conversation, including structural
// overhead and non-text content blocks.
func (e *TiktokenEstimator) Messages(messages []domain.Message) int {
	total := 0
	for _, msg := range messages {
		total += messageOverheadTokens
		total += e.Text(msg.Content)
		for _, block := range msg.Blocks {
			total += e.blockTokens(block)
		}
	}
	return total
}

func (e *TiktokenEstimator) blockTokens(block domain.ContentBlock) int {
	switch block.Kind {
	case domain.BlockText:
		return e.Text(block.Text)
	case domain.BlockToolUse:
		payload, _ := json.Marshal(map[string]any{
			"id": block.ID, "name": block.Name, "input": json.RawMessage(block.Input),
		})
		return e.Text(string(payload))
	case domain.BlockToolResult:
		payload, _ := json.Marshal(map[string]any{
			"tool_use_id": block.ToolUseID, "content": block.Result,
		})
		return e.Text(string(payload))
	case domain.BlockImage:
		return imageBlockTokens
	case domain.BlockDocument:
		return documentBlockTokens
	default:
		return 0
	}
}

// Tools counts tokens for tool schemas.
func (e *TiktokenEstimator) Tools(tools []domain.ToolSchema) int {
	if len(tools) == 0 {
		return 0
	}
	payload, _ := json.Marshal(tools)
	return int(math.Ceil(float64(e.Text(string(payload))) * toolOverheadFactor))
}

// NewEstimator builds the estimator selected by config: "tiktoken" for
// BPE counting, anything else for the character heuristic.
func NewEstimator(kind, language, encoding string) (domain.TokenEstimator, error) {
	if kind == "tiktoken" {
		return NewTiktokenEstimator(encoding)
	}
	return NewHeuristicEstimator(language), nil
}
