package usecase

import (
	"encoding/json"

	"mindhub/internal/domain"
)

// Minimum token budget always reserved for conversation content.
const minContentTokens = 1000

// BudgetPlanner computes how much of a model's context window remains
// for conversation content after fixed costs are accounted for.
type BudgetPlanner struct {
	estimator domain.TokenEstimator
}

// NewBudgetPlanner creates a planner using the given estimator.
func NewBudgetPlanner(estimator domain.TokenEstimator) *BudgetPlanner {
	return &BudgetPlanner{estimator: estimator}
}

// Budget calculates the context window split for a model. desiredOutput
// reserves that many tokens for the response; zero reserves the model's
// maximum output size.
func (p *BudgetPlanner) Budget(model domain.ModelSpec, system []domain.SystemSegment, tools []domain.ToolSchema, desiredOutput int) domain.ContextBudget {
	systemTokens := p.systemTokens(system)
	toolTokens := p.estimator.Tools(tools)

	reserved := desiredOutput
	if reserved <= 0 {
		reserved = model.MaxOutput
	}

	available := model.MaxContext - systemTokens - toolTokens - reserved
	if available < minContentTokens {
		available = minContentTokens
	}

	return domain.ContextBudget{
		SystemTokens:   systemTokens,
		ToolTokens:     toolTokens,
		ReservedOutput: reserved,
		TotalCapacity:  model.MaxContext,
		Available:      available,
	}
}

func (p *BudgetPlanner) systemTokens(system []domain.SystemSegment) int {
	if len(system) == 0 {
		return 0
	}
	if len(system) == 1 && system[0].Cache == nil {
		return p.estimator.Text(system[0].Text)
	}
	payload, _ := json.Marshal(system)
	return p.estimator.Text(string(payload))
}
