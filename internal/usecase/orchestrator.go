package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"mindhub/internal/domain"
	"mindhub/internal/infra/tracer"
)

const defaultMaxOutputTokens = 4096

// Orchestrator runs the full agent pipeline: validate, detect, select,
// budget, truncate, dispatch, interpret.
type Orchestrator struct {
	agents     domain.AgentRegistry
	tools      domain.ToolCatalog
	selector   *ModelSelector
	planner    *BudgetPlanner
	truncator  *HistoryTruncator
	estimator  domain.TokenEstimator
	memory     *ConversationMemory
	provider   domain.StreamProvider
	translator domain.StreamTranslator

	// pinStreamingTier, when set, forces all streaming requests onto one
	// model tier regardless of complexity scoring.
	pinStreamingTier domain.Tier

	log *slog.Logger
	now func() time.Time
}

// OrchestratorDeps bundles the collaborators an Orchestrator needs.
type OrchestratorDeps struct {
	Agents     domain.AgentRegistry
	Tools      domain.ToolCatalog
	Selector   *ModelSelector
	Planner    *BudgetPlanner
	Truncator  *HistoryTruncator
	Estimator  domain.TokenEstimator
	Memory     *ConversationMemory
	Provider   domain.StreamProvider
	Translator domain.StreamTranslator

	PinStreamingTier domain.Tier
	Logger           *slog.Logger
}

// NewOrchestrator wires the pipeline together.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		agents:           deps.Agents,
		tools:            deps.Tools,
		selector:         deps.Selector,
		planner:          deps.Planner,
		truncator:        deps.Truncator,
		estimator:        deps.Estimator,
		memory:           deps.Memory,
		provider:         deps.Provider,
		translator:       deps.Translator,
		pinStreamingTier: deps.PinStreamingTier,
		log:              log,
		now:              time.Now,
	}
}

// ulidEntropy is shared across the process so IDs minted in the same
// millisecond stay unique and strictly increasing.
var ulidEntropy = &ulid.LockedMonotonicReader{
	MonotonicReader: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
}

func generateULID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulidEntropy).String()
}

// resolveAgent auto-detects the agent when unset and validates it against
// the registry. Unknown agents are a hard rejection, not a failed Result.
func (o *Orchestrator) resolveAgent(req domain.Request) (domain.AgentType, domain.AgentProfile, error) {
	agent := req.Agent
	if agent == "" {
		agent = DetectAgentType(req.Text())
	}
	profile, ok := o.agents.Profile(agent)
	if !ok {
		known := o.agents.Types()
		names := make([]string, len(known))
		for i, t := range known {
			names[i] = string(t)
		}
		detail := fmt.Sprintf("agente desconhecido: %s. Disponíveis: %s", agent, strings.Join(names, ", "))
		return "", domain.AgentProfile{}, domain.NewDomainError("Orchestrator", domain.ErrUnknownAgent, detail)
	}
	return agent, profile, nil
}

// preparedCall is the fully shaped upstream request plus the selection
// metadata the response processing needs.
type preparedCall struct {
	request   domain.ChatRequest
	selection domain.ModelSelection
	truncated bool
}

func (o *Orchestrator) prepare(agent domain.AgentType, profile domain.AgentProfile, req domain.Request, pin domain.Tier) (preparedCall, error) {
	contextLength := requestContextLength(req)

	selection, err := o.selector.Select(agent, req, contextLength)
	if err != nil {
		return preparedCall{}, err
	}
	if pin != "" {
		if model, ok := o.selector.ModelByTier(pin); ok {
			selection.ModelID = model.ID
			selection.ModelName = model.Name
			selection.Tier = model.Tier
			selection.Reason = fmt.Sprintf("Modelo %s fixado para streaming", model.Name)
		}
	}

	model, ok := o.selector.ModelByID(selection.ModelID)
	if !ok {
		return preparedCall{}, domain.NewDomainError("Orchestrator.prepare", domain.ErrUnknownModel, selection.ModelID)
	}

	system := BuildSystemPrompt(agent, req.Options.CustomInstructions)
	toolSchemas := o.tools.ForAgent(profile.RequiredTools, profile.OptionalTools)

	maxTokens := profile.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxOutputTokens
	}

	budget := o.planner.Budget(model, system, toolSchemas, maxTokens)
	userPrompt := BuildUserPrompt(agent, req)
	availableForHistory := budget.Available - o.estimator.Text(userPrompt)

	history := req.History
	if len(history) == 0 && req.SessionID != "" && agent == domain.AgentChat {
		history = o.memory.Get(req.SessionID, req.MapID)
	}

	var messages []domain.Message
	truncated := false
	if len(history) > 0 && availableForHistory > 0 {
		result := o.truncator.Truncate(history, availableForHistory, TruncateOptions{})
		messages = append(messages, result.Messages...)
		truncated = result.Truncated
	}
	messages = append(messages, domain.TextMessage(domain.RoleUser, userPrompt))

	var toolChoice *domain.ToolChoice
	if len(toolSchemas) > 0 {
		toolChoice = &domain.ToolChoice{Type: "auto"}
		if profile.ForceTools {
			toolChoice.Type = "any"
		}
	}

	return preparedCall{
		request: domain.ChatRequest{
			Model:       model.ID,
			System:      system,
			Messages:    messages,
			Tools:       toolSchemas,
			ToolChoice:  toolChoice,
			MaxTokens:   maxTokens,
			Temperature: profile.Temperature,
			UserID:      req.UserID,
		},
		selection: selection,
		truncated: truncated,
	}, nil
}

// Execute runs the standard (non-streaming) path. Upstream failures come
// back as a Result with Success=false; only invalid requests return an error.
func (o *Orchestrator) Execute(ctx context.Context, req domain.Request) (*domain.Result, error) {
	agent, profile, err := o.resolveAgent(req)
	if err != nil {
		return nil, err
	}

	start := o.now()
	requestID := generateULID(start)
	ctx = domain.ContextWithRequestID(ctx, requestID)

	ctx, span := tracer.StartSpan(ctx, "orchestrator.execute",
		trace.WithAttributes(
			tracer.StringAttr("agent.type", string(agent)),
			tracer.StringAttr("request.id", requestID),
		),
	)
	defer span.End()

	o.log.Info("executing agent",
		"agent", agent,
		"request_id", requestID,
		"map_id", req.MapID,
		"user_id", req.UserID,
		"node_count", len(req.Nodes),
	)

	prepared, err := o.prepare(agent, profile, req, "")
	if err != nil {
		tracer.RecordError(span, err)
		return o.failedResult(agent, "", err, start), nil
	}

	resp, err := o.provider.Send(ctx, prepared.request)
	if err != nil {
		tracer.RecordError(span, err)
		o.log.Error("agent execution failed", "agent", agent, "request_id", requestID, "error", err)
		return o.failedResult(agent, prepared.selection.ModelID, err, start), nil
	}

	result := o.buildResult(agent, prepared, resp, start)
	o.updateMemory(agent, req, result.Content)

	span.SetAttributes(
		tracer.IntAttr("tokens.input", result.Usage.InputTokens),
		tracer.IntAttr("tokens.output", result.Usage.OutputTokens),
	)
	tracer.SetOK(span)
	return result, nil
}

func (o *Orchestrator) failedResult(agent domain.AgentType, modelID string, err error, start time.Time) *domain.Result {
	return &domain.Result{
		Success:   false,
		Agent:     agent,
		Model:     modelID,
		Content:   fmt.Sprintf("Erro ao executar agente %s: %v", agent, err),
		ToolCalls: []domain.ToolCall{},
		Meta: domain.ResultMeta{
			ExecutionTimeMs: o.now().Sub(start).Milliseconds(),
		},
	}
}

func (o *Orchestrator) buildResult(agent domain.AgentType, prepared preparedCall, resp *domain.ChatResponse, start time.Time) *domain.Result {
	var content, thinking strings.Builder
	toolCalls := []domain.ToolCall{}

	for _, block := range resp.Content {
		switch block.Kind {
		case domain.BlockText:
			content.WriteString(block.Text)
		case domain.BlockThinking:
			thinking.WriteString(block.Text)
		case domain.BlockToolUse:
			toolCalls = append(toolCalls, domain.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: block.Input,
			})
		}
	}

	result := &domain.Result{
		Success:   true,
		Agent:     agent,
		Model:     resp.Model,
		Content:   content.String(),
		Thinking:  thinking.String(),
		ToolCalls: toolCalls,
		Usage:     resp.Usage,
		CostUSD:   resp.Cost.TotalCost,
		Meta: domain.ResultMeta{
			Complexity:      prepared.selection.ComplexityScore,
			ExecutionTimeMs: o.now().Sub(start).Milliseconds(),
			Truncated:       prepared.truncated,
		},
	}

	if interp := InterpretToolCalls(o.interpretable(toolCalls), result.Content); !interp.Empty() {
		result.Interpretation = &interp
	}
	return result
}

// interpretable drops tool calls whose inputs fail schema validation, so a
// malformed payload never reaches the frontend as a map mutation. The raw
// call stays visible in the result either way.
func (o *Orchestrator) interpretable(toolCalls []domain.ToolCall) []domain.ToolCall {
	valid := make([]domain.ToolCall, 0, len(toolCalls))
	for _, call := range toolCalls {
		if err := o.tools.Validate(call.Name, call.Input); err != nil {
			o.log.Warn("tool call failed schema validation", "tool", call.Name, "error", err)
			continue
		}
		valid = append(valid, call)
	}
	return valid
}

func (o *Orchestrator) updateMemory(agent domain.AgentType, req domain.Request, content string) {
	if agent != domain.AgentChat || req.SessionID == "" {
		return
	}
	o.memory.Append(req.SessionID, req.MapID,
		domain.TextMessage(domain.RoleUser, req.Text()),
		domain.TextMessage(domain.RoleAssistant, content),
	)
}

// ExecuteStream runs the streaming path. The returned channel carries the
// normalized event sequence and is closed after the terminal done event.
// Unknown agents are rejected before any event is emitted.
func (o *Orchestrator) ExecuteStream(ctx context.Context, req domain.Request) (<-chan domain.StreamEvent, error) {
	agent, profile, err := o.resolveAgent(req)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.StreamEvent, 16)
	go o.runStream(ctx, agent, profile, req, out)
	return out, nil
}

func (o *Orchestrator) runStream(ctx context.Context, agent domain.AgentType, profile domain.AgentProfile, req domain.Request, out chan<- domain.StreamEvent) {
	defer close(out)

	start := o.now()
	requestID := generateULID(start)
	ctx = domain.ContextWithRequestID(ctx, requestID)

	ctx, span := tracer.StartSpan(ctx, "orchestrator.execute_stream",
		trace.WithAttributes(
			tracer.StringAttr("agent.type", string(agent)),
			tracer.StringAttr("request.id", requestID),
		),
	)
	defer span.End()

	emit := func(ev domain.StreamEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	startEvent := domain.NewStreamEvent(domain.EventStreamStart)
	startEvent.Start = &domain.StreamStartPayload{Agent: agent}
	if !emit(startEvent) {
		return
	}

	prepared, err := o.prepare(agent, profile, req, o.pinStreamingTier)
	if err != nil {
		tracer.RecordError(span, err)
		o.emitFailure(emit, err)
		return
	}

	selectedEvent := domain.NewStreamEvent(domain.EventModelSelected)
	selectedEvent.Selected = &domain.ModelSelectedPayload{
		Model:      prepared.selection.ModelID,
		Reason:     prepared.selection.Reason,
		Complexity: prepared.selection.ComplexityScore,
	}
	if !emit(selectedEvent) {
		return
	}

	raw, err := o.provider.Stream(ctx, prepared.request)
	if err != nil {
		tracer.RecordError(span, err)
		o.log.Error("stream dispatch failed", "agent", agent, "request_id", requestID, "error", err)
		o.emitFailure(emit, err)
		return
	}

	var content string
	failed := false
	for ev := range o.translator.Translate(ctx, raw) {
		switch ev.Kind {
		case domain.EventComplete:
			if ev.Complete != nil {
				ev.Complete.Model = prepared.selection.ModelID
				ev.Complete.ExecutionTimeMs = o.now().Sub(start).Milliseconds()
				content = ev.Complete.Content
			}
		case domain.EventError:
			failed = true
		case domain.EventUsage:
			if ev.Usage != nil {
				ev.Usage.Model = prepared.selection.ModelID
				ev.Usage.ExecutionTimeMs = o.now().Sub(start).Milliseconds()
				span.SetAttributes(
					tracer.IntAttr("tokens.input", ev.Usage.InputTokens),
					tracer.IntAttr("tokens.output", ev.Usage.OutputTokens),
				)
			}
		}
		if !emit(ev) {
			return
		}
	}

	if !failed {
		o.updateMemory(agent, req, content)
		tracer.SetOK(span)
	}
}

// emitFailure ends a stream that broke before or during dispatch: exactly
// one error event, then the terminal done.
func (o *Orchestrator) emitFailure(emit func(domain.StreamEvent) bool, err error) {
	errEvent := domain.NewStreamEvent(domain.EventError)
	errEvent.Error = &domain.ErrorPayload{Message: err.Error()}
	if !emit(errEvent) {
		return
	}
	doneEvent := domain.NewStreamEvent(domain.EventDone)
	doneEvent.Done = &domain.DonePayload{Completed: false, Error: true}
	emit(doneEvent)
}

// Stats reports session-level usage for the stats endpoint.
func (o *Orchestrator) Stats() domain.MemoryStats {
	return o.memory.Stats()
}

// ClearSession drops conversation memory for a session, optionally scoped
// to one map.
func (o *Orchestrator) ClearSession(sessionID, mapID string) {
	o.memory.Clear(sessionID, mapID)
}

// requestContextLength measures the serialized request, the same size
// signal the complexity scorer uses.
func requestContextLength(req domain.Request) int {
	data, err := json.Marshal(req)
	if err != nil {
		return len(req.Text())
	}
	return len(data)
}
