package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"mindhub/internal/domain"
)

// Translator converts raw provider events into the normalized stream event
// taxonomy. It implements domain.StreamTranslator.
//
// Per session it tracks the currently open content block, accumulates tool
// input fragments until the block stops, and guarantees the terminal
// contract: any fault produces exactly one error event followed by exactly
// one done event, and the output channel closes only after done.
type Translator struct {
	logger *slog.Logger
}

// NewTranslator creates a translator.
func NewTranslator(logger *slog.Logger) *Translator {
	return &Translator{logger: logger}
}

// blockKind tracks which content block is currently open.
type blockKind int

const (
	blockNone blockKind = iota
	blockText
	blockThinking
	blockTool
)

// session is the per-stream translation state.
type session struct {
	current        blockKind
	textStarted    bool
	thinkStarted   bool
	accumulated    string
	toolID         string
	toolName       string
	toolFragments  string
	usage          domain.TokenUsage
	stopReason     string
	doneEmitted    bool
	sawMessageStop bool
}

// Translate implements domain.StreamTranslator.
func (t *Translator) Translate(ctx context.Context, events <-chan domain.ProviderEvent) <-chan domain.StreamEvent {
	out := make(chan domain.StreamEvent, 16)

	go func() {
		defer close(out)

		s := &session{}
		emit := func(ev domain.StreamEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		// A panic mid-translation must still honor the terminal contract.
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error("translator panic", "panic", r)
				if !s.doneEmitted {
					t.terminate(emit, s, fmt.Sprintf("translator panic: %v", r))
				}
			}
		}()

		for ev := range events {
			if !t.handle(emit, s, ev) {
				return
			}
		}

		if s.doneEmitted {
			return
		}
		if s.sawMessageStop {
			t.finish(emit, s)
			return
		}
		// Raw stream closed without a terminal event: the connection dropped.
		t.terminate(emit, s, "stream closed before completion")
	}()

	return out
}

// handle processes one provider event. Returns false when the session is
// finished (done emitted or consumer gone).
func (t *Translator) handle(emit func(domain.StreamEvent) bool, s *session, ev domain.ProviderEvent) bool {
	switch ev.Type {
	case domain.ProviderMessageStart:
		if ev.Usage != nil {
			s.usage.InputTokens = ev.Usage.InputTokens
			s.usage.CacheCreationTokens = ev.Usage.CacheCreationTokens
			s.usage.CacheReadTokens = ev.Usage.CacheReadTokens
		}
		return true

	case domain.ProviderContentBlockStart:
		return t.openBlock(emit, s, ev.Block)

	case domain.ProviderContentBlockDelta:
		return t.applyDelta(emit, s, ev)

	case domain.ProviderContentBlockStop:
		return t.closeBlock(emit, s)

	case domain.ProviderMessageDelta:
		if ev.Usage != nil {
			s.usage.OutputTokens = ev.Usage.OutputTokens
		}
		if ev.StopReason != "" {
			s.stopReason = ev.StopReason
		}
		return true

	case domain.ProviderMessageStop:
		s.sawMessageStop = true
		t.finish(emit, s)
		return false

	case domain.ProviderError:
		t.terminate(emit, s, ev.ErrMessage)
		return false

	default:
		return true
	}
}

func (t *Translator) openBlock(emit func(domain.StreamEvent) bool, s *session, block *domain.ContentBlock) bool {
	if block == nil {
		return true
	}
	switch block.Kind {
	case "text":
		s.current = blockText
		if !s.textStarted {
			s.textStarted = true
			return emit(domain.NewStreamEvent(domain.EventTextStart))
		}
	case "thinking":
		s.current = blockThinking
		if !s.thinkStarted {
			s.thinkStarted = true
			return emit(domain.NewStreamEvent(domain.EventThinkingStart))
		}
	case "tool_use":
		s.current = blockTool
		s.toolID = block.ID
		s.toolName = block.Name
		s.toolFragments = ""
		ev := domain.NewStreamEvent(domain.EventToolStart)
		ev.Tool = &domain.ToolPayload{ID: block.ID, Name: block.Name}
		return emit(ev)
	}
	return true
}

func (t *Translator) applyDelta(emit func(domain.StreamEvent) bool, s *session, pe domain.ProviderEvent) bool {
	switch {
	case pe.TextDelta != "":
		s.accumulated += pe.TextDelta
		ev := domain.NewStreamEvent(domain.EventTextDelta)
		ev.Text = &domain.TextPayload{Text: pe.TextDelta, Accumulated: s.accumulated}
		return emit(ev)

	case pe.ThinkingDelta != "":
		ev := domain.NewStreamEvent(domain.EventThinkingDelta)
		ev.Text = &domain.TextPayload{Text: pe.ThinkingDelta}
		return emit(ev)

	case pe.PartialJSON != "":
		s.toolFragments += pe.PartialJSON
		ev := domain.NewStreamEvent(domain.EventToolInputDelta)
		ev.Tool = &domain.ToolPayload{ID: s.toolID, Name: s.toolName, PartialJSON: pe.PartialJSON}
		return emit(ev)
	}
	return true
}

func (t *Translator) closeBlock(emit func(domain.StreamEvent) bool, s *session) bool {
	defer func() { s.current = blockNone }()

	switch s.current {
	case blockText:
		ev := domain.NewStreamEvent(domain.EventTextComplete)
		ev.Text = &domain.TextPayload{Text: s.accumulated}
		return emit(ev)

	case blockTool:
		ev := domain.NewStreamEvent(domain.EventToolComplete)
		payload := &domain.ToolPayload{ID: s.toolID, Name: s.toolName}
		if json.Valid([]byte(s.toolFragments)) && s.toolFragments != "" {
			payload.Input = json.RawMessage(s.toolFragments)
		} else {
			// Keep the fragment verbatim so the caller can decide what to
			// do with a payload the model never finished.
			payload.Raw = s.toolFragments
			t.logger.Warn("tool input did not parse as JSON", "tool", s.toolName)
		}
		ev.Tool = payload
		return emit(ev)
	}
	return true
}

// finish ends a successful session: usage, complete, done — in that order.
func (t *Translator) finish(emit func(domain.StreamEvent) bool, s *session) {
	usageEv := domain.NewStreamEvent(domain.EventUsage)
	usageEv.Usage = &domain.UsagePayload{
		InputTokens:  s.usage.InputTokens,
		OutputTokens: s.usage.OutputTokens,
	}
	if !emit(usageEv) {
		return
	}

	completeEv := domain.NewStreamEvent(domain.EventComplete)
	completeEv.Complete = &domain.CompletePayload{
		Content: s.accumulated,
		Usage:   s.usage,
	}
	if !emit(completeEv) {
		return
	}

	doneEv := domain.NewStreamEvent(domain.EventDone)
	doneEv.Done = &domain.DonePayload{Completed: true}
	if emit(doneEv) {
		s.doneEmitted = true
	}
}

// terminate ends a failed session: exactly one error event, then done.
func (t *Translator) terminate(emit func(domain.StreamEvent) bool, s *session, msg string) {
	errEv := domain.NewStreamEvent(domain.EventError)
	errEv.Error = &domain.ErrorPayload{Message: msg}
	if !emit(errEv) {
		return
	}

	doneEv := domain.NewStreamEvent(domain.EventDone)
	doneEv.Done = &domain.DonePayload{Completed: false, Error: true}
	if emit(doneEv) {
		s.doneEmitted = true
	}
}
