package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"mindhub/internal/domain"
	"mindhub/internal/infra/config"
	"mindhub/internal/infra/tracer"
)

const defaultAPIVersion = "2023-06-01"

// cacheWriteMultiplier is the upstream surcharge on cache-creation tokens
// relative to the base input rate.
const cacheWriteMultiplier = 1.25

// AnthropicClient talks to a Claude-style Messages API. It implements
// domain.StreamProvider and keeps per-session cost accounting.
type AnthropicClient struct {
	baseURL string
	apiKey  string
	version string
	client  *http.Client
	logger  *slog.Logger
	retry   config.RetryConfig
	rates   map[string]domain.ModelSpec

	mu              sync.Mutex
	sessionRequests int
	sessionCost     float64
}

// NewAnthropicClient creates the upstream client. models supplies the
// per-token rates used for cost accounting.
func NewAnthropicClient(cfg config.ProviderConfig, retry config.RetryConfig, models []domain.ModelSpec, logger *slog.Logger) *AnthropicClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	version := cfg.Version
	if version == "" {
		version = defaultAPIVersion
	}

	rates := make(map[string]domain.ModelSpec, len(models))
	for _, m := range models {
		rates[m.ID] = m
	}

	return &AnthropicClient{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		version: version,
		client:  NewHTTPClient(cfg),
		logger:  logger,
		retry:   retry,
		rates:   rates,
	}
}

// Name implements domain.Provider.
func (c *AnthropicClient) Name() string { return "anthropic" }

// Send implements domain.Provider. Transient upstream failures are retried
// with exponential backoff; the attempt that exhausts the budget returns the
// last error wrapped with ErrRetryExhausted.
func (c *AnthropicClient) Send(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, span := tracer.StartSpan(ctx, "llm.chat",
		trace.WithAttributes(
			tracer.StringAttr("llm.model", req.Model),
		),
	)
	defer span.End()

	body, err := json.Marshal(toWireRequest(req, false))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxRetries+1; attempt++ {
		respBody, err := doJSONRequest(ctx, c.client, c.baseURL+"/v1/messages", body, c.headers())
		if err == nil {
			var resp wireResponse
			if err := json.Unmarshal(respBody, &resp); err != nil {
				tracer.RecordError(span, err)
				return nil, fmt.Errorf("unmarshal response: %w", err)
			}
			result := c.fromWireResponse(resp)
			c.recordUsage(result.Cost.TotalCost)

			span.SetAttributes(
				tracer.IntAttr("llm.input_tokens", result.Usage.InputTokens),
				tracer.IntAttr("llm.output_tokens", result.Usage.OutputTokens),
			)
			tracer.SetOK(span)
			c.logger.Debug("chat completed",
				"model", result.Model,
				"input_tokens", result.Usage.InputTokens,
				"output_tokens", result.Usage.OutputTokens,
				"cost_usd", result.Cost.TotalCost,
				"attempt", attempt,
			)
			return result, nil
		}

		lastErr = err
		if !domain.IsRetryable(err) || attempt > c.retry.MaxRetries {
			break
		}

		delay := c.backoffDelay(attempt)
		c.logger.Warn("upstream request failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		if err := sleepCtx(ctx, delay); err != nil {
			tracer.RecordError(span, err)
			return nil, err
		}
	}

	tracer.RecordError(span, lastErr)
	if domain.IsRetryable(lastErr) {
		return nil, fmt.Errorf("%w: %v", domain.ErrRetryExhausted, lastErr)
	}
	return nil, lastErr
}

// Stream implements domain.StreamProvider. Streams are not retried; a broken
// stream surfaces as a provider error event for the translator to terminate.
func (c *AnthropicClient) Stream(ctx context.Context, req domain.ChatRequest) (<-chan domain.ProviderEvent, error) {
	body, err := json.Marshal(toWireRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpResp, err := doStreamRequest(ctx, c.client, c.baseURL+"/v1/messages", body, c.headers())
	if err != nil {
		return nil, err
	}

	c.recordUsage(0)
	return parseSSEStream(ctx, httpResp.Body, parseWireEvent), nil
}

// SessionStats returns the request count and cumulative cost since startup.
func (c *AnthropicClient) SessionStats() (requests int, costUSD float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionRequests, c.sessionCost
}

func (c *AnthropicClient) recordUsage(cost float64) {
	c.mu.Lock()
	c.sessionRequests++
	c.sessionCost += cost
	c.mu.Unlock()
}

func (c *AnthropicClient) headers() map[string]string {
	return map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": c.version,
	}
}

// backoffDelay is min(base × 2^(attempt−1), max).
func (c *AnthropicClient) backoffDelay(attempt int) time.Duration {
	delay := c.retry.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.retry.MaxDelay {
			return c.retry.MaxDelay
		}
	}
	if delay > c.retry.MaxDelay {
		return c.retry.MaxDelay
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// estimateCost prices a usage breakdown with the model's rates: regular input
// at the base rate, cache writes at 1.25× base, cache reads at the cached
// rate, output at the output rate. Rates are USD per million tokens.
func (c *AnthropicClient) estimateCost(model string, usage domain.TokenUsage) domain.CostEstimate {
	spec, ok := c.rates[model]
	if !ok {
		return domain.CostEstimate{Currency: "USD"}
	}

	inputCost := float64(usage.InputTokens)*spec.InputRate/1e6 +
		float64(usage.CacheCreationTokens)*spec.InputRate*cacheWriteMultiplier/1e6 +
		float64(usage.CacheReadTokens)*spec.CachedRate/1e6
	outputCost := float64(usage.OutputTokens) * spec.OutputRate / 1e6
	savings := float64(usage.CacheReadTokens) * (spec.InputRate - spec.CachedRate) / 1e6

	return domain.CostEstimate{
		InputTokens:  usage.InputTokens + usage.CacheCreationTokens,
		OutputTokens: usage.OutputTokens,
		CachedTokens: usage.CacheReadTokens,
		InputCost:    inputCost,
		OutputCost:   outputCost,
		CacheSavings: savings,
		TotalCost:    inputCost + outputCost,
		Currency:     "USD",
	}
}

// --- Messages API wire types ---

type wireRequest struct {
	Model         string          `json:"model"`
	System        []wireSystem    `json:"system,omitempty"`
	Messages      []wireMessage   `json:"messages"`
	MaxTokens     int             `json:"max_tokens"`
	Temperature   float64         `json:"temperature,omitempty"`
	TopP          float64         `json:"top_p,omitempty"`
	TopK          int             `json:"top_k,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Tools         []wireTool      `json:"tools,omitempty"`
	ToolChoice    *wireToolChoice `json:"tool_choice,omitempty"`
	Metadata      *wireMetadata   `json:"metadata,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
}

type wireSystem struct {
	Type         string     `json:"type"`
	Text         string     `json:"text"`
	CacheControl *wireCache `json:"cache_control,omitempty"`
}

type wireCache struct {
	Type string `json:"type"`
	TTL  string `json:"ttl,omitempty"`
}

type wireMetadata struct {
	UserID string `json:"user_id,omitempty"`
}

type wireMessage struct {
	Role    string        `json:"role"`
	Content []wireContent `json:"content"`
}

type wireContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	// thinking
	Thinking string `json:"thinking,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`

	// image / document
	Source *wireSource `json:"source,omitempty"`

	CacheControl *wireCache `json:"cache_control,omitempty"`
}

type wireSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type wireTool struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"input_schema"`
	CacheControl *wireCache      `json:"cache_control,omitempty"`
}

type wireToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type wireUsage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_input_tokens"`
	CacheReadTokens     int `json:"cache_read_input_tokens"`
}

type wireResponse struct {
	ID         string        `json:"id"`
	Model      string        `json:"model"`
	StopReason string        `json:"stop_reason"`
	Content    []wireContent `json:"content"`
	Usage      wireUsage     `json:"usage"`
}

type wireError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func toWireRequest(req domain.ChatRequest, stream bool) wireRequest {
	out := wireRequest{
		Model:         req.Model,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		StopSequences: req.StopSequences,
		Stream:        stream,
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = 4096
	}

	for _, seg := range req.System {
		ws := wireSystem{Type: "text", Text: seg.Text}
		if seg.Cache != nil {
			ws.CacheControl = &wireCache{Type: seg.Cache.Type, TTL: seg.Cache.TTL}
		}
		out.System = append(out.System, ws)
	}

	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, toWireMessage(msg))
	}

	for _, tool := range req.Tools {
		wt := wireTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}
		if tool.Cacheable {
			wt.CacheControl = &wireCache{Type: "ephemeral"}
		}
		out.Tools = append(out.Tools, wt)
	}

	if req.ToolChoice != nil {
		out.ToolChoice = &wireToolChoice{Type: req.ToolChoice.Type, Name: req.ToolChoice.Name}
	}
	if req.UserID != "" {
		out.Metadata = &wireMetadata{UserID: req.UserID}
	}

	return out
}

func toWireMessage(msg domain.Message) wireMessage {
	out := wireMessage{Role: msg.Role}
	if msg.IsText() {
		out.Content = []wireContent{{Type: "text", Text: msg.Content}}
		return out
	}

	for _, block := range msg.Blocks {
		wc := wireContent{Type: block.Kind}
		switch block.Kind {
		case domain.BlockText:
			wc.Text = block.Text
		case domain.BlockThinking:
			wc.Thinking = block.Text
		case domain.BlockToolUse:
			wc.ID = block.ID
			wc.Name = block.Name
			wc.Input = block.Input
		case domain.BlockToolResult:
			wc.ToolUseID = block.ToolUseID
			wc.Content = block.Result
			wc.IsError = block.IsError
		case domain.BlockImage, domain.BlockDocument:
			if block.Source != nil {
				wc.Source = &wireSource{
					Type:      block.Source.Type,
					MediaType: block.Source.MediaType,
					Data:      block.Source.Data,
					URL:       block.Source.URL,
				}
			}
		}
		if block.Cache != nil {
			wc.CacheControl = &wireCache{Type: block.Cache.Type, TTL: block.Cache.TTL}
		}
		out.Content = append(out.Content, wc)
	}
	return out
}

func (c *AnthropicClient) fromWireResponse(resp wireResponse) *domain.ChatResponse {
	usage := domain.TokenUsage{
		InputTokens:         resp.Usage.InputTokens,
		OutputTokens:        resp.Usage.OutputTokens,
		CacheCreationTokens: resp.Usage.CacheCreationTokens,
		CacheReadTokens:     resp.Usage.CacheReadTokens,
	}

	out := &domain.ChatResponse{
		ID:         resp.ID,
		Model:      resp.Model,
		StopReason: resp.StopReason,
		Usage:      usage,
		Cost:       c.estimateCost(resp.Model, usage),
		CreatedAt:  time.Now(),
	}

	for _, block := range resp.Content {
		cb := domain.ContentBlock{Kind: block.Type}
		switch block.Type {
		case "text":
			cb.Text = block.Text
		case "thinking":
			cb.Text = block.Thinking
		case "tool_use":
			cb.ID = block.ID
			cb.Name = block.Name
			cb.Input = block.Input
		default:
			continue
		}
		out.Content = append(out.Content, cb)
	}
	return out
}

// --- streaming wire decoding ---

type wireStreamEvent struct {
	Type         string          `json:"type"`
	Index        int             `json:"index"`
	ContentBlock *wireContent    `json:"content_block,omitempty"`
	Delta        json.RawMessage `json:"delta,omitempty"`
	Usage        *wireUsage      `json:"usage,omitempty"`
	Message      *wireResponse   `json:"message,omitempty"`
	Error        *wireError      `json:"error,omitempty"`
}

type wireDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

// parseWireEvent decodes one SSE data payload into a provider event. Unknown
// event types return nil and are skipped.
func parseWireEvent(data []byte) (*domain.ProviderEvent, error) {
	var evt wireStreamEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}

	switch evt.Type {
	case "message_start":
		out := &domain.ProviderEvent{Type: domain.ProviderMessageStart}
		if evt.Message != nil {
			out.Usage = &domain.TokenUsage{
				InputTokens:         evt.Message.Usage.InputTokens,
				CacheCreationTokens: evt.Message.Usage.CacheCreationTokens,
				CacheReadTokens:     evt.Message.Usage.CacheReadTokens,
			}
		}
		return out, nil

	case "content_block_start":
		out := &domain.ProviderEvent{Type: domain.ProviderContentBlockStart, Index: evt.Index}
		if evt.ContentBlock != nil {
			out.Block = &domain.ContentBlock{
				Kind: evt.ContentBlock.Type,
				ID:   evt.ContentBlock.ID,
				Name: evt.ContentBlock.Name,
				Text: evt.ContentBlock.Text,
			}
		}
		return out, nil

	case "content_block_delta":
		var delta wireDelta
		if err := json.Unmarshal(evt.Delta, &delta); err != nil {
			return nil, err
		}
		out := &domain.ProviderEvent{Type: domain.ProviderContentBlockDelta, Index: evt.Index}
		switch delta.Type {
		case "text_delta":
			out.TextDelta = delta.Text
		case "thinking_delta":
			out.ThinkingDelta = delta.Thinking
		case "input_json_delta":
			out.PartialJSON = delta.PartialJSON
		default:
			return nil, nil
		}
		return out, nil

	case "content_block_stop":
		return &domain.ProviderEvent{Type: domain.ProviderContentBlockStop, Index: evt.Index}, nil

	case "message_delta":
		out := &domain.ProviderEvent{Type: domain.ProviderMessageDelta}
		if evt.Usage != nil {
			out.Usage = &domain.TokenUsage{OutputTokens: evt.Usage.OutputTokens}
		}
		var delta wireDelta
		if len(evt.Delta) > 0 {
			if err := json.Unmarshal(evt.Delta, &delta); err == nil {
				out.StopReason = delta.StopReason
			}
		}
		return out, nil

	case "message_stop":
		return &domain.ProviderEvent{Type: domain.ProviderMessageStop}, nil

	case "error":
		msg := "unknown upstream error"
		if evt.Error != nil {
			msg = evt.Error.Type + ": " + evt.Error.Message
		}
		return &domain.ProviderEvent{Type: domain.ProviderError, ErrMessage: msg}, nil

	case "ping":
		return nil, nil

	default:
		return nil, nil
	}
}
