package usecase

import (
	"errors"
	"math"
	"strings"
	"testing"

	"mindhub/internal/domain"
)

func newTestSelector(strategy string) *ModelSelector {
	analyzer := NewComplexityAnalyzer(newTestRegistry())
	return NewModelSelector(testModels(), strategy, analyzer)
}

func TestSelectSimpleChatGetsLightweight(t *testing.T) {
	s := newTestSelector("balanced")

	req := domain.Request{Agent: domain.AgentChat, Message: "liste rapidamente 3 ideias simples"}
	sel, err := s.Select(domain.AgentChat, req, len(req.Message))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	if sel.ComplexityLevel != domain.LevelTrivial && sel.ComplexityLevel != domain.LevelSimple {
		t.Errorf("level = %s, want trivial or simple", sel.ComplexityLevel)
	}
	if sel.Tier != domain.TierLightweight {
		t.Errorf("tier = %s, want lightweight", sel.Tier)
	}
	if sel.ModelID != "claude-haiku-4-5" {
		t.Errorf("model = %s", sel.ModelID)
	}
}

func TestSelectExpertAnalysisGetsAdvanced(t *testing.T) {
	s := newTestSelector("balanced")

	nodes := make([]domain.MapNode, 35)
	for i := range nodes {
		nodes[i] = domain.MapNode{Label: "node"}
	}
	req := domain.Request{
		Agent:   domain.AgentAnalyze,
		Message: "deep analysis of the distributed architecture, security and performance compliance",
		Nodes:   nodes,
		Tools:   []string{"analyze_map", "find_patterns", "create_nodes", "create_edges"},
		Options: domain.RequestOptions{Depth: 3, Count: 12},
	}
	sel, err := s.Select(domain.AgentAnalyze, req, 60_000)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	if sel.ComplexityLevel != domain.LevelExpert {
		t.Errorf("level = %s, want expert", sel.ComplexityLevel)
	}
	if sel.Tier != domain.TierAdvanced {
		t.Errorf("tier = %s, want advanced", sel.Tier)
	}
}

func TestSelectPreferredTierPin(t *testing.T) {
	s := newTestSelector("balanced")

	req := domain.Request{
		Agent:   domain.AgentChat,
		Message: "oi",
		Options: domain.RequestOptions{PreferredTier: domain.TierAdvanced},
	}
	sel, err := s.Select(domain.AgentChat, req, 10)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	if sel.Tier != domain.TierAdvanced {
		t.Errorf("tier = %s, want advanced", sel.Tier)
	}
	if !strings.Contains(sel.Reason, "preferência do usuário") {
		t.Errorf("reason = %q", sel.Reason)
	}
	if sel.EstimatedCost != 0 {
		t.Errorf("pinned selection cost = %v, want 0", sel.EstimatedCost)
	}
}

func TestSelectPreferredBalancedTierIsNotAPin(t *testing.T) {
	s := newTestSelector("balanced")

	req := domain.Request{
		Agent:   domain.AgentChat,
		Message: "oi",
		Options: domain.RequestOptions{PreferredTier: domain.TierBalanced},
	}
	sel, err := s.Select(domain.AgentChat, req, 10)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	// Balanced preference falls through to scoring; a trivial chat still
	// lands on the lightweight tier.
	if sel.Tier != domain.TierLightweight {
		t.Errorf("tier = %s, want lightweight", sel.Tier)
	}
}

func TestSelectPinnedTierMissing(t *testing.T) {
	analyzer := NewComplexityAnalyzer(newTestRegistry())
	models := testModels()[:2] // no advanced tier
	s := NewModelSelector(models, "balanced", analyzer)

	req := domain.Request{Options: domain.RequestOptions{PreferredTier: domain.TierAdvanced}}
	_, err := s.Select(domain.AgentChat, req, 10)
	if !errors.Is(err, domain.ErrNoCandidate) {
		t.Errorf("err = %v, want ErrNoCandidate", err)
	}
}

func TestSelectFeatureFilters(t *testing.T) {
	analyzer := NewComplexityAnalyzer(newTestRegistry())
	models := testModels()
	models[0].Vision = false // haiku loses vision
	s := NewModelSelector(models, "balanced", analyzer)

	req := domain.Request{
		Agent:   domain.AgentChat,
		Message: "oi",
		Options: domain.RequestOptions{RequireVision: true},
	}
	sel, err := s.Select(domain.AgentChat, req, 10)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.ModelID == "claude-haiku-4-5" {
		t.Error("selected a model without the required vision support")
	}
}

func TestSelectNoCandidateAfterFilters(t *testing.T) {
	analyzer := NewComplexityAnalyzer(newTestRegistry())
	models := testModels()
	for i := range models {
		models[i].WebSearch = false
	}
	s := NewModelSelector(models, "balanced", analyzer)

	req := domain.Request{Options: domain.RequestOptions{RequireWebSearch: true}}
	_, err := s.Select(domain.AgentChat, req, 10)
	if !errors.Is(err, domain.ErrNoCandidate) {
		t.Errorf("err = %v, want ErrNoCandidate", err)
	}
}

func TestSelectStrategies(t *testing.T) {
	expertNodes := make([]domain.MapNode, 35)
	for i := range expertNodes {
		expertNodes[i] = domain.MapNode{Label: "node"}
	}
	expertReq := domain.Request{
		Agent:   domain.AgentResearch,
		Message: "comprehensive research on distributed security architecture performance compliance",
		Nodes:   expertNodes,
		Options: domain.RequestOptions{Depth: 4, Count: 15, IncludeSubtasks: true},
	}
	trivialReq := domain.Request{Agent: domain.AgentChat, Message: "oi"}

	tests := []struct {
		strategy string
		req      domain.Request
		agent    domain.AgentType
		length   int
		wantTier domain.Tier
	}{
		{"cheapest", expertReq, domain.AgentResearch, 60_000, domain.TierLightweight},
		{"cheapest", trivialReq, domain.AgentChat, 10, domain.TierLightweight},
		{"cost-biased", expertReq, domain.AgentResearch, 60_000, domain.TierAdvanced},
		{"cost-biased", trivialReq, domain.AgentChat, 10, domain.TierLightweight},
		{"balanced", trivialReq, domain.AgentChat, 10, domain.TierLightweight},
		{"balanced", expertReq, domain.AgentResearch, 60_000, domain.TierAdvanced},
	}
	for _, tt := range tests {
		s := newTestSelector(tt.strategy)
		sel, err := s.Select(tt.agent, tt.req, tt.length)
		if err != nil {
			t.Fatalf("%s: Select: %v", tt.strategy, err)
		}
		if sel.Tier != tt.wantTier {
			t.Errorf("%s/%s: tier = %s, want %s (level %s)", tt.strategy, tt.agent, sel.Tier, tt.wantTier, sel.ComplexityLevel)
		}
	}
}

func TestEstimateCost(t *testing.T) {
	s := newTestSelector("balanced")
	haiku := testModels()[0]

	// 3500 chars / 3.5 = 1000 input tokens at $1/MTok plus 1000 output
	// tokens at $5/MTok.
	got := s.estimateCost(haiku, 3500)
	want := 1000*1.0/1e6 + 1000*5.0/1e6
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("cost = %v, want %v", got, want)
	}

	// Zero context falls back to 1000 chars.
	got = s.estimateCost(haiku, 0)
	want = math.Ceil(1000/3.5)*1.0/1e6 + 1000*5.0/1e6
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("cost(0) = %v, want %v", got, want)
	}
}

func TestSelectionReasons(t *testing.T) {
	s := newTestSelector("balanced")

	tests := []struct {
		tier domain.Tier
		frag string
	}{
		{domain.TierLightweight, "economia de 3.0x"},
		{domain.TierBalanced, "equilíbrio ideal"},
		{domain.TierAdvanced, "raciocínio avançado"},
	}
	for _, tt := range tests {
		model, ok := s.ModelByTier(tt.tier)
		if !ok {
			t.Fatalf("missing tier %s", tt.tier)
		}
		reason := s.reason(model, domain.LevelModerate)
		if !strings.Contains(reason, tt.frag) {
			t.Errorf("%s reason = %q, want fragment %q", tt.tier, reason, tt.frag)
		}
	}
}

func TestModelByID(t *testing.T) {
	s := newTestSelector("balanced")
	if _, ok := s.ModelByID("claude-sonnet-4-5"); !ok {
		t.Error("expected to find sonnet by id")
	}
	if _, ok := s.ModelByID("gpt-nope"); ok {
		t.Error("unexpected model found")
	}
}
