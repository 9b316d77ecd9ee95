package usecase

import (
	"fmt"
	"math"

	"mindhub/internal/domain"
)

// Assumed output size when estimating the cost of a typical request.
const estimatedOutputTokens = 1000

// ModelSelector picks the cheapest model able to handle a request, given
// its complexity, feature requirements and the configured strategy.
type ModelSelector struct {
	models   []domain.ModelSpec
	strategy string
	analyzer *ComplexityAnalyzer
}

// NewModelSelector creates a selector over the given model specs.
// Strategy is one of "cheapest", "cost-biased" or "balanced".
func NewModelSelector(models []domain.ModelSpec, strategy string, analyzer *ComplexityAnalyzer) *ModelSelector {
	return &ModelSelector{models: models, strategy: strategy, analyzer: analyzer}
}

// Select chooses a model for the request. contextLength is the estimated
// size of the assembled context in chars.
func (s *ModelSelector) Select(agentType domain.AgentType, req domain.Request, contextLength int) (domain.ModelSelection, error) {
	complexity := s.analyzer.Analyze(agentType, req, contextLength)

	// An explicit non-balanced tier preference always wins.
	if tier := req.Options.PreferredTier; tier != "" && tier != domain.TierBalanced {
		model, ok := s.findTier(s.models, tier)
		if !ok {
			return domain.ModelSelection{}, domain.NewDomainError("ModelSelector.Select",
				domain.ErrNoCandidate, fmt.Sprintf("no model in preferred tier %q", tier))
		}
		return domain.ModelSelection{
			ModelID:         model.ID,
			ModelName:       model.Name,
			Tier:            model.Tier,
			Reason:          fmt.Sprintf("Modelo %s selecionado por preferência do usuário", model.Name),
			ComplexityScore: complexity.Score,
			ComplexityLevel: complexity.Level,
			EstimatedCost:   0,
		}, nil
	}

	candidates := s.filter(req.Options)
	if len(candidates) == 0 {
		return domain.ModelSelection{}, domain.NewDomainError("ModelSelector.Select",
			domain.ErrNoCandidate, "no model satisfies the feature requirements")
	}

	model := s.pick(candidates, complexity.Level)
	cost := s.estimateCost(model, contextLength)
	reason := s.reason(model, complexity.Level)

	return domain.ModelSelection{
		ModelID:         model.ID,
		ModelName:       model.Name,
		Tier:            model.Tier,
		Reason:          reason,
		ComplexityScore: complexity.Score,
		ComplexityLevel: complexity.Level,
		EstimatedCost:   cost,
	}, nil
}

// Complexity exposes the underlying analysis without selecting a model.
func (s *ModelSelector) Complexity(agentType domain.AgentType, req domain.Request, contextLength int) domain.ComplexityAnalysis {
	return s.analyzer.Analyze(agentType, req, contextLength)
}

// ModelByID returns the spec for a model ID.
func (s *ModelSelector) ModelByID(id string) (domain.ModelSpec, bool) {
	for _, m := range s.models {
		if m.ID == id {
			return m, true
		}
	}
	return domain.ModelSpec{}, false
}

func (s *ModelSelector) filter(opts domain.RequestOptions) []domain.ModelSpec {
	var out []domain.ModelSpec
	for _, m := range s.models {
		if opts.RequireVision && !m.Vision {
			continue
		}
		if opts.RequireWebSearch && !m.WebSearch {
			continue
		}
		if opts.RequireExtendedThinking && !m.ExtendedThought {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (s *ModelSelector) pick(candidates []domain.ModelSpec, level domain.ComplexityLevel) domain.ModelSpec {
	switch s.strategy {
	case "cheapest":
		return s.tierOrFirst(candidates, domain.TierLightweight)

	case "cost-biased":
		switch level {
		case domain.LevelExpert:
			if m, ok := s.findTier(candidates, domain.TierAdvanced); ok {
				return m
			}
			return s.tierOrFirst(candidates, domain.TierBalanced)
		case domain.LevelComplex:
			return s.tierOrFirst(candidates, domain.TierBalanced)
		default:
			return s.tierOrFirst(candidates, domain.TierLightweight)
		}

	default: // balanced
		switch level {
		case domain.LevelTrivial, domain.LevelSimple:
			return s.tierOrFirst(candidates, domain.TierLightweight)
		case domain.LevelModerate:
			return s.tierOrFirst(candidates, domain.TierBalanced)
		case domain.LevelComplex, domain.LevelExpert:
			if m, ok := s.findTier(candidates, domain.TierAdvanced); ok {
				return m
			}
			return s.tierOrFirst(candidates, domain.TierBalanced)
		default:
			return s.tierOrFirst(candidates, domain.TierBalanced)
		}
	}
}

// ModelByTier returns the first model of the given tier from the full set.
func (s *ModelSelector) ModelByTier(tier domain.Tier) (domain.ModelSpec, bool) {
	return s.findTier(s.models, tier)
}

func (s *ModelSelector) findTier(models []domain.ModelSpec, tier domain.Tier) (domain.ModelSpec, bool) {
	for _, m := range models {
		if m.Tier == tier {
			return m, true
		}
	}
	return domain.ModelSpec{}, false
}

func (s *ModelSelector) tierOrFirst(models []domain.ModelSpec, tier domain.Tier) domain.ModelSpec {
	if m, ok := s.findTier(models, tier); ok {
		return m
	}
	return models[0]
}

// estimateCost projects the cost of a typical request in USD, assuming
// a Portuguese text density and a 1000-token output.
func (s *ModelSelector) estimateCost(model domain.ModelSpec, contextLength int) float64 {
	if contextLength <= 0 {
		contextLength = 1000
	}
	inputTokens := math.Ceil(float64(contextLength) / charsPerTokenPT)
	return inputTokens*model.InputRate/1e6 + estimatedOutputTokens*model.OutputRate/1e6
}

func (s *ModelSelector) reason(model domain.ModelSpec, level domain.ComplexityLevel) string {
	// Savings ratio relative to the balanced-tier model.
	ratio := 1.0
	if balanced, ok := s.findTier(s.models, domain.TierBalanced); ok && model.InputRate > 0 {
		ratio = balanced.InputRate / model.InputRate
	}

	switch model.Tier {
	case domain.TierLightweight:
		return fmt.Sprintf("%s — tarefa %s, economia de %.1fx vs Sonnet", model.Name, level, ratio)
	case domain.TierAdvanced:
		return fmt.Sprintf("%s — tarefa %s requer raciocínio avançado", model.Name, level)
	default:
		return fmt.Sprintf("%s — equilíbrio ideal para tarefa %s", model.Name, level)
	}
}
