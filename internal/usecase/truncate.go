package usecase

import (
	"fmt"
	"strings"

	"mindhub/internal/domain"
)

// Truncation strategies.
const (
	StrategySlidingWindow = "sliding_window"
	StrategySmart         = "smart"
	StrategyAggressive    = "aggressive"
)

// TruncateOptions controls how history is cut down to fit a budget.
type TruncateOptions struct {
	KeepFirst bool   // preserve the opening message (initial context)
	KeepLast  int    // how many trailing messages to favor
	Strategy  string // sliding_window, smart or aggressive
}

// HistoryTruncator shrinks conversation history to fit a token budget.
type HistoryTruncator struct {
	estimator domain.TokenEstimator
}

// NewHistoryTruncator creates a truncator using the given estimator.
func NewHistoryTruncator(estimator domain.TokenEstimator) *HistoryTruncator {
	return &HistoryTruncator{estimator: estimator}
}

// Truncate cuts messages down so their estimated tokens fit maxTokens.
// History that already fits is returned untouched.
func (t *HistoryTruncator) Truncate(messages []domain.Message, maxTokens int, opts TruncateOptions) domain.TruncationResult {
	if opts.KeepLast == 0 {
		opts.KeepLast = 10
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategySmart
	}

	if len(messages) == 0 {
		return domain.TruncationResult{Messages: []domain.Message{}}
	}

	totalTokens := t.estimator.Messages(messages)
	if totalTokens <= maxTokens {
		return domain.TruncationResult{Messages: messages, EstimatedTokens: totalTokens}
	}

	switch opts.Strategy {
	case StrategySlidingWindow:
		return t.slidingWindow(messages, maxTokens, opts.KeepLast)
	case StrategyAggressive:
		return t.aggressive(messages, maxTokens)
	default:
		return t.smart(messages, maxTokens, opts.KeepFirst, opts.KeepLast)
	}
}

// slidingWindow keeps up to keepLast trailing messages that fit.
func (t *HistoryTruncator) slidingWindow(messages []domain.Message, maxTokens, keepLast int) domain.TruncationResult {
	var result []domain.Message
	tokenCount := 0

	for i := len(messages) - 1; i >= 0 && len(result) < keepLast; i-- {
		msgTokens := t.estimator.Messages(messages[i : i+1])
		if tokenCount+msgTokens > maxTokens {
			break
		}
		result = append([]domain.Message{messages[i]}, result...)
		tokenCount += msgTokens
	}

	return domain.TruncationResult{
		Messages:        result,
		Truncated:       true,
		RemovedCount:    len(messages) - len(result),
		EstimatedTokens: tokenCount,
	}
}

// smart keeps the first message for context, inserts a bridge note where
// the middle was dropped, then fills with the most recent messages.
func (t *HistoryTruncator) smart(messages []domain.Message, maxTokens int, keepFirst bool, keepLast int) domain.TruncationResult {
	var result []domain.Message
	tokenCount := 0

	lastStart := len(messages) - keepLast
	if lastStart < 0 {
		lastStart = 0
	}
	lastMessages := messages[lastStart:]
	lastTokens := t.estimator.Messages(lastMessages)

	if keepFirst && len(messages) > keepLast {
		firstTokens := t.estimator.Messages(messages[:1])
		if firstTokens+lastTokens <= maxTokens {
			result = append(result, messages[0])
			tokenCount += firstTokens
		}
	}

	if len(messages) > keepLast+1 {
		middleCount := len(messages) - keepLast
		if keepFirst {
			middleCount--
		}
		if middleCount > 0 {
			bridge := domain.TextMessage(domain.RoleUser,
				fmt.Sprintf("[%d mensagens anteriores omitidas para otimização de contexto]", middleCount))
			bridgeTokens := t.estimator.Messages([]domain.Message{bridge})
			if tokenCount+bridgeTokens+lastTokens <= maxTokens {
				result = append(result, bridge)
				tokenCount += bridgeTokens
			}
		}
	}

	for _, msg := range lastMessages {
		msgTokens := t.estimator.Messages([]domain.Message{msg})
		if tokenCount+msgTokens > maxTokens {
			break
		}
		result = append(result, msg)
		tokenCount += msgTokens
	}

	// The bridge note counts as a removal so callers see how much real
	// history disappeared versus what the result slice holds.
	removed := len(messages) - len(result)
	for _, msg := range result {
		if strings.Contains(msg.Content, "omitidas") {
			removed++
			break
		}
	}

	return domain.TruncationResult{
		Messages:        result,
		Truncated:       true,
		RemovedCount:    removed,
		EstimatedTokens: tokenCount,
	}
}

// aggressive keeps only the last two messages, or one if two don't fit.
func (t *HistoryTruncator) aggressive(messages []domain.Message, maxTokens int) domain.TruncationResult {
	start := len(messages) - 2
	if start < 0 {
		start = 0
	}
	result := messages[start:]
	tokenCount := t.estimator.Messages(result)

	kept := result
	if tokenCount > maxTokens && len(result) > 1 {
		kept = result[len(result)-1:]
	}
	estimated := tokenCount
	if estimated > maxTokens {
		estimated = maxTokens
	}

	return domain.TruncationResult{
		Messages:        kept,
		Truncated:       true,
		RemovedCount:    len(messages) - len(result),
		EstimatedTokens: estimated,
	}
}
