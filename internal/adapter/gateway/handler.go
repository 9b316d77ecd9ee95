package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"mindhub/internal/domain"
	"mindhub/internal/infra/middleware"
)

const maxRequestBytes = 1 << 20 // 1 MiB

// Pipeline is the orchestrator surface the gateway depends on.
type Pipeline interface {
	Execute(ctx context.Context, req domain.Request) (*domain.Result, error)
	ExecuteStream(ctx context.Context, req domain.Request) (<-chan domain.StreamEvent, error)
	Stats() domain.MemoryStats
	ClearSession(sessionID, mapID string)
}

// UsageReporter exposes provider-side session counters for the stats endpoint.
type UsageReporter interface {
	SessionStats() (requests int, costUSD float64)
}

// Handler serves the agent API: execute, stream, agents, stats, sessions.
type Handler struct {
	pipeline     Pipeline
	agents       domain.AgentRegistry
	limiter      *middleware.UserLimiter
	ledger       *middleware.CostLedger
	estimator    domain.TokenEstimator
	usage        UsageReporter
	logger       *slog.Logger
	pingInterval time.Duration
}

// HandlerDeps bundles the collaborators a Handler needs. Usage may be nil
// when the provider does not report session counters.
type HandlerDeps struct {
	Pipeline     Pipeline
	Agents       domain.AgentRegistry
	Limiter      *middleware.UserLimiter
	Ledger       *middleware.CostLedger
	Estimator    domain.TokenEstimator
	Usage        UsageReporter
	Logger       *slog.Logger
	PingInterval time.Duration
}

// NewHandler wires the API handler.
func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		pipeline:     deps.Pipeline,
		agents:       deps.Agents,
		limiter:      deps.Limiter,
		ledger:       deps.Ledger,
		estimator:    deps.Estimator,
		usage:        deps.Usage,
		logger:       deps.Logger,
		pingInterval: deps.PingInterval,
	}
}

// Register attaches all API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ai/execute", h.handleExecute)
	mux.HandleFunc("POST /api/ai/stream", h.handleStream)
	mux.HandleFunc("GET /api/ai/agents", h.handleAgents)
	mux.HandleFunc("GET /api/ai/stats", h.handleStats)
	mux.HandleFunc("DELETE /api/ai/sessions/{session}", h.handleClearSession)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	if !h.admit(w, r, req) {
		return
	}
	if req.Stream {
		h.stream(w, r, req)
		return
	}

	result, err := h.pipeline.Execute(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.ledger != nil && result.CostUSD > 0 {
		h.ledger.Record(userID(req), result.CostUSD)
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	if !h.admit(w, r, req) {
		return
	}
	req.Stream = true
	h.stream(w, r, req)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, req domain.Request) {
	events, err := h.pipeline.ExecuteStream(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	sse, err := NewSSEWriter(w, h.pingInterval, h.logger)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer sse.Close()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("client disconnected mid-stream", "agent", req.Agent)
			return
		case ev, open := <-events:
			if !open {
				return
			}
			sse.Send(ev)
			if ev.Kind == domain.EventComplete && ev.Complete != nil && h.limiter != nil {
				h.limiter.ConsumeTokens(userID(req), ev.Complete.Usage.OutputTokens)
			}
		}
	}
}

func (h *Handler) handleAgents(w http.ResponseWriter, r *http.Request) {
	types := h.agents.Types()
	profiles := make([]domain.AgentProfile, 0, len(types))
	for _, t := range types {
		if p, ok := h.agents.Profile(t); ok {
			profiles = append(profiles, p)
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"agents": profiles})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"memory": h.pipeline.Stats(),
	}
	if h.usage != nil {
		requests, costUSD := h.usage.SessionStats()
		stats["session"] = map[string]any{
			"requests": requests,
			"cost_usd": costUSD,
		}
	}
	if user := r.URL.Query().Get("user_id"); user != "" && h.ledger != nil {
		daily, monthly := h.ledger.Usage(user)
		stats["user"] = map[string]any{
			"user_id":     user,
			"daily_usd":   daily,
			"monthly_usd": monthly,
		}
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleClearSession(w http.ResponseWriter, r *http.Request) {
	session := r.PathValue("session")
	if session == "" {
		h.writeErrorStatus(w, http.StatusBadRequest, domain.CodeInvalidRequest, "session ID é obrigatório")
		return
	}
	h.pipeline.ClearSession(session, r.URL.Query().Get("map_id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (domain.Request, bool) {
	var req domain.Request
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		h.writeErrorStatus(w, http.StatusBadRequest, domain.CodeInvalidRequest, "corpo da requisição inválido: "+err.Error())
		return domain.Request{}, false
	}
	return req, true
}

// admit runs the pre-flight gates: per-user request rate, token budget and
// cost caps. The token charge is a pre-flight estimate of the request body;
// streams top it up when the complete event reports output tokens.
func (h *Handler) admit(w http.ResponseWriter, r *http.Request, req domain.Request) bool {
	user := userID(req)

	if h.limiter != nil {
		if !h.limiter.AllowRequest(user) {
			h.writeRateLimited(w, "Limite de requisições por minuto atingido. Tente novamente em instantes.")
			return false
		}
		if h.estimator != nil {
			serialized, _ := json.Marshal(req)
			if !h.limiter.ConsumeTokens(user, h.estimator.Text(string(serialized))) {
				h.writeRateLimited(w, "Limite de tokens por minuto atingido. Aguarde um momento.")
				return false
			}
		}
	}

	if h.ledger != nil {
		if err := h.ledger.Check(user); err != nil {
			h.writeErrorStatus(w, http.StatusPaymentRequired, domain.CodeCostLimit,
				"Limite de custo diário ou mensal atingido.")
			return false
		}
	}
	return true
}

func userID(req domain.Request) string {
	if req.UserID != "" {
		return req.UserID
	}
	return "anonymous"
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response encode failed", "error", err)
	}
}

type errorResponse struct {
	Error      string           `json:"error"`
	Code       domain.ErrorCode `json:"code"`
	RetryAfter int              `json:"retry_after,omitempty"`
}

// writeError maps domain errors onto HTTP statuses. Validation problems are
// the caller's fault; everything else surfaces as an upstream failure.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, domain.ErrUnknownAgent), errors.Is(err, domain.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrCostLimit):
		status = http.StatusPaymentRequired
	case errors.Is(err, domain.ErrAuthInvalid):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrContextOverflow):
		status = http.StatusRequestEntityTooLarge
	}
	h.writeErrorStatus(w, status, domain.ErrorCodeOf(err), err.Error())
}

func (h *Handler) writeErrorStatus(w http.ResponseWriter, status int, code domain.ErrorCode, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func (h *Handler) writeRateLimited(w http.ResponseWriter, msg string) {
	w.Header().Set("Retry-After", "30")
	h.writeJSON(w, http.StatusTooManyRequests, errorResponse{
		Error:      msg,
		Code:       domain.CodeRateLimited,
		RetryAfter: 30,
	})
}
