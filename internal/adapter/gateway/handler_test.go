package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mindhub/internal/adapter/catalog"
	"mindhub/internal/domain"
	"mindhub/internal/infra/middleware"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubPipeline is a canned orchestrator for handler tests.
type stubPipeline struct {
	lastReq      domain.Request
	result       *domain.Result
	err          error
	events       []domain.StreamEvent
	streamErr    error
	clearSession string
	clearMap     string
}

func (s *stubPipeline) Execute(_ context.Context, req domain.Request) (*domain.Result, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubPipeline) ExecuteStream(_ context.Context, req domain.Request) (<-chan domain.StreamEvent, error) {
	s.lastReq = req
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	ch := make(chan domain.StreamEvent, len(s.events))
	for _, ev := range s.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (s *stubPipeline) Stats() domain.MemoryStats {
	return domain.MemoryStats{Sessions: 2, TotalMessages: 8}
}

func (s *stubPipeline) ClearSession(sessionID, mapID string) {
	s.clearSession = sessionID
	s.clearMap = mapID
}

// flatEstimator reports a fixed token count for any input.
type flatEstimator struct{ n int }

func (f flatEstimator) Text(string) int               { return f.n }
func (f flatEstimator) Messages([]domain.Message) int { return f.n }
func (f flatEstimator) Tools([]domain.ToolSchema) int { return f.n }

type stubUsage struct{}

func (stubUsage) SessionStats() (int, float64) { return 7, 0.42 }

type handlerFixture struct {
	handler  *Handler
	pipeline *stubPipeline
	ledger   *middleware.CostLedger
	mux      *http.ServeMux
}

func newTestHandler(t *testing.T, mutate func(*HandlerDeps)) *handlerFixture {
	t.Helper()

	pipeline := &stubPipeline{
		result: &domain.Result{
			Success: true,
			Agent:   domain.AgentChat,
			Model:   "claude-sonnet-4-5",
			Content: "olá",
			CostUSD: 0.003,
		},
	}
	ledger := middleware.NewCostLedger(10, 100)
	deps := HandlerDeps{
		Pipeline:  pipeline,
		Agents:    catalog.NewAgentRegistry(),
		Limiter:   middleware.NewUserLimiter(50, 100_000),
		Ledger:    ledger,
		Estimator: flatEstimator{n: 100},
		Usage:     stubUsage{},
		Logger:    newTestLogger(),
	}
	if mutate != nil {
		mutate(&deps)
	}

	mux := http.NewServeMux()
	h := NewHandler(deps)
	h.Register(mux)
	return &handlerFixture{handler: h, pipeline: pipeline, ledger: ledger, mux: mux}
}

func (f *handlerFixture) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func TestExecuteEndpoint(t *testing.T) {
	f := newTestHandler(t, nil)

	rec := f.post(t, "/api/ai/execute", `{"agent":"chat","message":"oi","user_id":"u1","map_id":"m1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result domain.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Success || result.Content != "olá" {
		t.Errorf("result = %+v", result)
	}
	if f.pipeline.lastReq.Agent != domain.AgentChat || f.pipeline.lastReq.Message != "oi" {
		t.Errorf("pipeline request = %+v", f.pipeline.lastReq)
	}

	daily, _ := f.ledger.Usage("u1")
	if daily != 0.003 {
		t.Errorf("ledger daily = %v, want 0.003", daily)
	}
}

func TestExecuteEndpointBadJSON(t *testing.T) {
	f := newTestHandler(t, nil)

	rec := f.post(t, "/api/ai/execute", `{"agent":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != domain.CodeInvalidRequest {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestExecuteEndpointUnknownAgent(t *testing.T) {
	f := newTestHandler(t, nil)
	f.pipeline.err = domain.NewDomainError("Orchestrator.Execute", domain.ErrUnknownAgent, "agente desconhecido: mystery")

	rec := f.post(t, "/api/ai/execute", `{"agent":"mystery","message":"oi"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != domain.CodeUnknownAgent {
		t.Errorf("code = %s", resp.Code)
	}
	if !strings.Contains(resp.Error, "mystery") {
		t.Errorf("error message = %q", resp.Error)
	}
}

func TestExecuteEndpointRequestRateLimit(t *testing.T) {
	f := newTestHandler(t, func(d *HandlerDeps) {
		d.Limiter = middleware.NewUserLimiter(1, 100_000)
	})

	body := `{"agent":"chat","message":"oi","user_id":"u1"}`
	if rec := f.post(t, "/api/ai/execute", body); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec := f.post(t, "/api/ai/execute", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != domain.CodeRateLimited || resp.RetryAfter == 0 {
		t.Errorf("resp = %+v", resp)
	}
	if !strings.Contains(resp.Error, "requisições por minuto") {
		t.Errorf("error message = %q", resp.Error)
	}
}

func TestExecuteEndpointTokenBudget(t *testing.T) {
	f := newTestHandler(t, func(d *HandlerDeps) {
		d.Estimator = flatEstimator{n: 200_000}
	})

	rec := f.post(t, "/api/ai/execute", `{"agent":"chat","message":"oi","user_id":"u1"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tokens por minuto") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestExecuteEndpointCostLimit(t *testing.T) {
	f := newTestHandler(t, nil)
	f.ledger.Record("u1", 25) // past the daily cap

	rec := f.post(t, "/api/ai/execute", `{"agent":"chat","message":"oi","user_id":"u1"}`)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != domain.CodeCostLimit {
		t.Errorf("code = %s", resp.Code)
	}
}

func streamFixtureEvents() []domain.StreamEvent {
	start := domain.NewStreamEvent(domain.EventStreamStart)
	start.Start = &domain.StreamStartPayload{Agent: domain.AgentChat}
	delta := domain.NewStreamEvent(domain.EventTextDelta)
	delta.Text = &domain.TextPayload{Text: "olá", Accumulated: "olá"}
	complete := domain.NewStreamEvent(domain.EventComplete)
	complete.Complete = &domain.CompletePayload{
		Content: "olá",
		Model:   "claude-sonnet-4-5",
		Usage:   domain.TokenUsage{InputTokens: 30, OutputTokens: 12},
	}
	done := domain.NewStreamEvent(domain.EventDone)
	done.Done = &domain.DonePayload{Completed: true}
	return []domain.StreamEvent{start, delta, complete, done}
}

func TestStreamEndpoint(t *testing.T) {
	f := newTestHandler(t, nil)
	f.pipeline.events = streamFixtureEvents()

	rec := f.post(t, "/api/ai/stream", `{"agent":"chat","message":"oi","user_id":"u1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, ":ok\n\n") {
		t.Errorf("missing :ok preamble, body starts %q", body[:min(len(body), 20)])
	}
	for _, want := range []string{
		"event: stream_start\n",
		`"agent":"chat"`,
		"event: text_delta\n",
		`"accumulated":"olá"`,
		"event: complete\n",
		"event: done\n",
		`"completed":true`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q\nbody:\n%s", want, body)
		}
	}
	if !f.pipeline.lastReq.Stream {
		t.Error("stream endpoint should force Stream=true")
	}
}

func TestExecuteEndpointStreamFlag(t *testing.T) {
	f := newTestHandler(t, nil)
	f.pipeline.events = streamFixtureEvents()

	rec := f.post(t, "/api/ai/execute", `{"agent":"chat","message":"oi","stream":true}`)
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q, body = %s", ct, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "event: done\n") {
		t.Errorf("body missing done event:\n%s", rec.Body.String())
	}
}

func TestStreamEndpointRejectsUnknownAgent(t *testing.T) {
	f := newTestHandler(t, nil)
	f.pipeline.streamErr = domain.NewDomainError("Orchestrator.ExecuteStream", domain.ErrUnknownAgent, "agente desconhecido: mystery")

	rec := f.post(t, "/api/ai/stream", `{"agent":"mystery","message":"oi"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("rejection should be JSON, got %q", ct)
	}
}

func TestAgentsEndpoint(t *testing.T) {
	f := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ai/agents", nil)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Agents []domain.AgentProfile `json:"agents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Agents) != 12 {
		t.Errorf("agents = %d, want 12", len(resp.Agents))
	}
	if resp.Agents[0].Type != domain.AgentGenerate {
		t.Errorf("first agent = %s", resp.Agents[0].Type)
	}
}

func TestStatsEndpoint(t *testing.T) {
	f := newTestHandler(t, nil)
	f.ledger.Record("u1", 1.5)

	req := httptest.NewRequest(http.MethodGet, "/api/ai/stats?user_id=u1", nil)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats map[string]map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats["memory"]["sessions"].(float64) != 2 {
		t.Errorf("memory stats = %v", stats["memory"])
	}
	if stats["session"]["requests"].(float64) != 7 {
		t.Errorf("session stats = %v", stats["session"])
	}
	if stats["user"]["daily_usd"].(float64) != 1.5 {
		t.Errorf("user stats = %v", stats["user"])
	}
}

func TestClearSessionEndpoint(t *testing.T) {
	f := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/ai/sessions/sess-9?map_id=m1", nil)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if f.pipeline.clearSession != "sess-9" || f.pipeline.clearMap != "m1" {
		t.Errorf("clear = (%q, %q)", f.pipeline.clearSession, f.pipeline.clearMap)
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
