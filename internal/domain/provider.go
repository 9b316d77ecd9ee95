package domain

import "context"

// Provider event types, mirroring the upstream wire protocol's lifecycle.
const (
	ProviderMessageStart      = "message_start"
	ProviderContentBlockStart = "content_block_start"
	ProviderContentBlockDelta = "content_block_delta"
	ProviderContentBlockStop  = "content_block_stop"
	ProviderMessageDelta      = "message_delta"
	ProviderMessageStop       = "message_stop"
	ProviderError             = "error"
)

// ProviderEvent is one low-level event from the upstream streaming protocol,
// decoded but not yet normalized. The Streaming Translator consumes these.
type ProviderEvent struct {
	Type  string
	Index int

	// ProviderContentBlockStart
	Block *ContentBlock

	// ProviderContentBlockDelta — exactly one of these is set.
	TextDelta     string
	ThinkingDelta string
	PartialJSON   string

	// ProviderMessageStart / ProviderMessageDelta
	Usage      *TokenUsage
	StopReason string

	// ProviderError
	ErrMessage string
}

// Provider is the blocking interface to the upstream model API.
type Provider interface {
	// Send dispatches a request and blocks until the full response arrives.
	Send(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Name returns the provider's identifier.
	Name() string
}

// StreamProvider extends Provider with a raw event stream. The returned
// channel is closed when the stream ends or ctx is cancelled.
type StreamProvider interface {
	Provider
	Stream(ctx context.Context, req ChatRequest) (<-chan ProviderEvent, error)
}

// StreamTranslator converts raw provider events into the normalized event
// taxonomy. The output channel is closed after the terminal done event.
type StreamTranslator interface {
	Translate(ctx context.Context, events <-chan ProviderEvent) <-chan StreamEvent
}
