package usecase

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"mindhub/internal/domain"
)

// Base complexity assumed for agents missing from the registry.
const defaultAgentBaseComplexity = 30

// complexityKeywords maps keyword buckets to their per-hit score deltas.
var complexityKeywords = []struct {
	words  []string
	weight int
}{
	{
		words: []string{"architecture", "algorithm", "optimize", "security", "performance",
			"distributed", "concurrent", "enterprise", "compliance", "critical"},
		weight: 8,
	},
	{
		words: []string{"research", "analysis", "deep", "complex", "strategic",
			"comprehensive", "integration", "framework", "methodology"},
		weight: 5,
	},
	{
		words: []string{"create", "develop", "design", "plan", "organize",
			"structure", "evaluate", "compare"},
		weight: 3,
	},
	{
		words: []string{"list", "quick", "simple", "basic", "fast",
			"easy", "brief", "hello", "hi", "help"},
		weight: -3,
	},
}

// ComplexityAnalyzer scores request complexity from 0 to 100 across
// weighted dimensions: agent base, context size, keywords, structure
// and output requirements.
type ComplexityAnalyzer struct {
	agents domain.AgentRegistry
}

// NewComplexityAnalyzer creates an analyzer backed by the agent registry.
func NewComplexityAnalyzer(agents domain.AgentRegistry) *ComplexityAnalyzer {
	return &ComplexityAnalyzer{agents: agents}
}

// Analyze produces a multi-factor complexity analysis for the request.
// contextLength is the estimated size of the assembled context in chars.
func (a *ComplexityAnalyzer) Analyze(agentType domain.AgentType, req domain.Request, contextLength int) domain.ComplexityAnalysis {
	var factors []domain.ComplexityFactor
	totalScore := 0.0

	// Factor 1: agent base complexity (30%).
	agentBase := defaultAgentBaseComplexity
	if profile, ok := a.agents.Profile(agentType); ok {
		agentBase = profile.BaseComplexity
	}
	factors = append(factors, domain.ComplexityFactor{
		Name:        "agent_type",
		Weight:      0.30,
		Value:       float64(agentBase),
		Description: fmt.Sprintf("Agent %q base complexity", agentType),
	})
	totalScore += float64(agentBase) * 0.30

	// Factor 2: context length (20%).
	var contextScore int
	switch {
	case contextLength > 50000:
		contextScore = 90
	case contextLength > 20000:
		contextScore = 70
	case contextLength > 10000:
		contextScore = 50
	case contextLength > 5000:
		contextScore = 35
	case contextLength > 1000:
		contextScore = 20
	default:
		contextScore = 10
	}
	factors = append(factors, domain.ComplexityFactor{
		Name:        "context_length",
		Weight:      0.20,
		Value:       float64(contextScore),
		Description: fmt.Sprintf("Context of %d chars", contextLength),
	})
	totalScore += float64(contextScore) * 0.20

	// Factor 3: keyword analysis (25%). Starts from a neutral baseline and
	// moves per matched keyword, clamped to [0,100] after every hit.
	inputStr := requestKeywordText(req)
	keywordScore := 30
	for _, bucket := range complexityKeywords {
		for _, word := range bucket.words {
			if strings.Contains(inputStr, word) {
				keywordScore = clampInt(keywordScore+bucket.weight, 0, 100)
			}
		}
	}
	factors = append(factors, domain.ComplexityFactor{
		Name:        "keyword_analysis",
		Weight:      0.25,
		Value:       float64(keywordScore),
		Description: "Content keyword analysis",
	})
	totalScore += float64(keywordScore) * 0.25

	// Factor 4: structural complexity (15%).
	structuralScore := 20
	nodeCount := len(req.Nodes)
	if nodeCount == 0 {
		nodeCount = len(req.ExistingNodes)
	}
	switch {
	case nodeCount > 30:
		structuralScore = 80
	case nodeCount > 15:
		structuralScore = 60
	case nodeCount > 5:
		structuralScore = 40
	}
	toolReqs := len(req.Tools)
	if toolReqs > 3 {
		structuralScore += 15
	}
	structuralScore = min(100, structuralScore)
	factors = append(factors, domain.ComplexityFactor{
		Name:        "structural",
		Weight:      0.15,
		Value:       float64(structuralScore),
		Description: fmt.Sprintf("%d nodes, %d tools", nodeCount, toolReqs),
	})
	totalScore += float64(structuralScore) * 0.15

	// Factor 5: output requirements (10%).
	outputScore := 30
	depth := req.Options.Depth
	if depth == 0 {
		depth = 1
	}
	count := req.Options.Count
	if count == 0 {
		count = 5
	}
	if depth > 2 {
		outputScore += 20
	}
	if count > 10 {
		outputScore += 20
	}
	if req.Options.IncludeSubtasks || req.Options.EstimatePriority {
		outputScore += 10
	}
	outputScore = min(100, outputScore)
	factors = append(factors, domain.ComplexityFactor{
		Name:        "output_requirements",
		Weight:      0.10,
		Value:       float64(outputScore),
		Description: fmt.Sprintf("Depth: %d, Count: %d", depth, count),
	})
	totalScore += float64(outputScore) * 0.10

	score := int(math.Round(math.Min(100, math.Max(0, totalScore))))
	level, reasoning := levelForScore(score)

	return domain.ComplexityAnalysis{
		Score:     score,
		Level:     level,
		Factors:   factors,
		Reasoning: reasoning,
	}
}

// levelForScore maps a 0-100 score to a complexity level and its
// user-facing rationale.
func levelForScore(score int) (domain.ComplexityLevel, string) {
	switch {
	case score <= 15:
		return domain.LevelTrivial, "Tarefa trivial — resposta direta e imediata"
	case score <= 30:
		return domain.LevelSimple, "Tarefa simples — processamento básico sem raciocínio profundo"
	case score <= 50:
		return domain.LevelModerate, "Tarefa moderada — requer análise e criatividade balanceadas"
	case score <= 75:
		return domain.LevelComplex, "Tarefa complexa — análise profunda com múltiplas dimensões"
	default:
		return domain.LevelExpert, "Tarefa expert — raciocínio avançado, múltiplos fatores, alta criticidade"
	}
}

// requestKeywordText serializes the request for keyword scanning.
func requestKeywordText(req domain.Request) string {
	payload, err := json.Marshal(req)
	if err != nil {
		return strings.ToLower(req.Text())
	}
	return strings.ToLower(string(payload))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
