package usecase

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"mindhub/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubRegistry is a fixed agent registry for tests.
type stubRegistry struct {
	profiles map[domain.AgentType]domain.AgentProfile
}

func (r *stubRegistry) Profile(t domain.AgentType) (domain.AgentProfile, bool) {
	p, ok := r.profiles[t]
	return p, ok
}

func (r *stubRegistry) Types() []domain.AgentType {
	out := make([]domain.AgentType, 0, len(r.profiles))
	for t := range r.profiles {
		out = append(out, t)
	}
	return out
}

func newTestRegistry() *stubRegistry {
	base := map[domain.AgentType]int{
		domain.AgentChat:        15,
		domain.AgentGenerate:    30,
		domain.AgentExpand:      35,
		domain.AgentSummarize:   25,
		domain.AgentAnalyze:     60,
		domain.AgentOrganize:    40,
		domain.AgentResearch:    65,
		domain.AgentHypothesize: 55,
		domain.AgentTaskConvert: 30,
		domain.AgentCritique:    55,
		domain.AgentConnect:     50,
		domain.AgentVisualize:   25,
	}
	profiles := make(map[domain.AgentType]domain.AgentProfile, len(base))
	for t, b := range base {
		profiles[t] = domain.AgentProfile{
			Type:           t,
			Name:           string(t),
			MaxTokens:      4096,
			Temperature:    0.7,
			BaseComplexity: b,
		}
	}
	return &stubRegistry{profiles: profiles}
}

func testModels() []domain.ModelSpec {
	return []domain.ModelSpec{
		{
			ID: "claude-haiku-4-5", Name: "Claude Haiku 4.5", Tier: domain.TierLightweight,
			InputRate: 1, OutputRate: 5, CachedRate: 0.10,
			MaxContext: 200_000, MaxOutput: 64_000,
			Vision: true, WebSearch: true, ExtendedThought: true,
		},
		{
			ID: "claude-sonnet-4-5", Name: "Claude Sonnet 4.5", Tier: domain.TierBalanced,
			InputRate: 3, OutputRate: 15, CachedRate: 0.30,
			MaxContext: 200_000, MaxOutput: 64_000,
			Vision: true, WebSearch: true, ExtendedThought: true,
		},
		{
			ID: "claude-opus-4-6", Name: "Claude Opus 4.6", Tier: domain.TierAdvanced,
			InputRate: 5, OutputRate: 25, CachedRate: 0.50,
			MaxContext: 200_000, MaxOutput: 128_000,
			Vision: true, WebSearch: true, ExtendedThought: true,
		},
	}
}

// stubCatalog resolves a fixed tool set. Tools listed in invalid fail
// input validation with the given error.
type stubCatalog struct {
	schemas map[string]domain.ToolSchema
	invalid map[string]error
}

func (c *stubCatalog) Schema(name string) (domain.ToolSchema, bool) {
	s, ok := c.schemas[name]
	return s, ok
}

func (c *stubCatalog) ForAgent(required, optional []string) []domain.ToolSchema {
	var out []domain.ToolSchema
	for _, name := range append(append([]string{}, required...), optional...) {
		if s, ok := c.schemas[name]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (c *stubCatalog) Validate(name string, input json.RawMessage) error {
	return c.invalid[name]
}

func newTestCatalog(names ...string) *stubCatalog {
	schemas := make(map[string]domain.ToolSchema, len(names))
	for _, name := range names {
		schemas[name] = domain.ToolSchema{
			Name:        name,
			Description: "test tool",
			InputSchema: json.RawMessage(`{"type":"object"}`),
		}
	}
	return &stubCatalog{schemas: schemas}
}

// stubProvider returns canned responses or events.
type stubProvider struct {
	sendCalls   int
	lastRequest domain.ChatRequest
	response    *domain.ChatResponse
	sendErr     error
	events      []domain.ProviderEvent
	streamErr   error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Send(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	p.sendCalls++
	p.lastRequest = req
	if p.sendErr != nil {
		return nil, p.sendErr
	}
	return p.response, nil
}

func (p *stubProvider) Stream(ctx context.Context, req domain.ChatRequest) (<-chan domain.ProviderEvent, error) {
	p.lastRequest = req
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	ch := make(chan domain.ProviderEvent, len(p.events))
	for _, ev := range p.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

// passthroughTranslator emits a fixed event sequence, ignoring input.
type passthroughTranslator struct {
	events []domain.StreamEvent
}

func (t *passthroughTranslator) Translate(ctx context.Context, events <-chan domain.ProviderEvent) <-chan domain.StreamEvent {
	out := make(chan domain.StreamEvent, len(t.events))
	go func() {
		defer close(out)
		for range events {
		}
		for _, ev := range t.events {
			out <- ev
		}
	}()
	return out
}
