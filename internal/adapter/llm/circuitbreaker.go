package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"mindhub/internal/domain"
	"mindhub/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// CircuitBreakerClient wraps a StreamProvider with circuit breaker
// protection. When the upstream fails repeatedly, the circuit opens and
// subsequent calls fail fast without reaching the provider, preventing
// retry storms during sustained outages.
type CircuitBreakerClient struct {
	inner   domain.StreamProvider
	breaker *gobreaker.CircuitBreaker[*domain.ChatResponse]
	logger  *slog.Logger
}

// NewCircuitBreakerClient wraps inner with a circuit breaker. Zero-valued
// config fields fall back to defaults.
func NewCircuitBreakerClient(inner domain.StreamProvider, cfg config.BreakerConfig, logger *slog.Logger) *CircuitBreakerClient {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[*domain.ChatResponse](gobreaker.Settings{
		Name:        "llm:" + inner.Name(),
		MaxRequests: 1, // one probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &CircuitBreakerClient{inner: inner, breaker: cb, logger: logger}
}

// Name implements domain.Provider.
func (c *CircuitBreakerClient) Name() string { return c.inner.Name() }

// Send implements domain.Provider. Calls are routed through the breaker.
func (c *CircuitBreakerClient) Send(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	resp, err := c.breaker.Execute(func() (*domain.ChatResponse, error) {
		return c.inner.Send(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", domain.ErrBreakerOpen, err)
		}
		return nil, err
	}
	return resp, nil
}

// Stream implements domain.StreamProvider. The breaker protects the initial
// connection only; faults after the stream opens flow through the event
// channel and do not trip it.
func (c *CircuitBreakerClient) Stream(ctx context.Context, req domain.ChatRequest) (<-chan domain.ProviderEvent, error) {
	var ch <-chan domain.ProviderEvent
	_, err := c.breaker.Execute(func() (*domain.ChatResponse, error) {
		var streamErr error
		ch, streamErr = c.inner.Stream(ctx, req)
		return nil, streamErr
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", domain.ErrBreakerOpen, err)
		}
		return nil, err
	}
	return ch, nil
}
