// Package gateway exposes the agent pipeline over HTTP. Streaming responses
// use Server-Sent Events; everything else is plain JSON.
package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"mindhub/internal/domain"
)

// SSEWriter frames stream events as Server-Sent Events on an HTTP response.
// Writes after Close are silently dropped; Close is idempotent.
type SSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	logger  *slog.Logger
	closed  bool
	stop    chan struct{}
}

// NewSSEWriter configures the response for SSE and emits the :ok preamble.
// A keepalive comment is written every pingInterval until Close. Returns an
// error when the ResponseWriter cannot flush.
func NewSSEWriter(w http.ResponseWriter, pingInterval time.Duration, logger *slog.Logger) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &SSEWriter{
		w:       w,
		flusher: flusher,
		logger:  logger,
		stop:    make(chan struct{}),
	}
	s.comment("ok")

	if pingInterval > 0 {
		go s.keepalive(pingInterval)
	}
	return s, nil
}

func (s *SSEWriter) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.comment("ping")
		case <-s.stop:
			return
		}
	}
}

// Send writes one stream event as `event: <kind>` plus a JSON data line.
func (s *SSEWriter) Send(ev domain.StreamEvent) {
	data, err := json.Marshal(eventData(ev))
	if err != nil {
		s.logger.Error("sse marshal failed", "kind", ev.Kind, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
		s.logger.Debug("sse write failed, closing", "error", err)
		s.closeLocked()
		return
	}
	s.flusher.Flush()
}

func (s *SSEWriter) comment(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, err := fmt.Fprintf(s.w, ":%s\n\n", text); err != nil {
		s.closeLocked()
		return
	}
	s.flusher.Flush()
}

// Close stops the keepalive and drops all further writes.
func (s *SSEWriter) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *SSEWriter) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.stop)
}

// eventData picks the payload matching the event kind so the wire carries
// just the data object, not the whole tagged variant. Marker events without
// a payload serialize as an empty object.
func eventData(ev domain.StreamEvent) any {
	var payload any
	switch ev.Kind {
	case domain.EventStreamStart:
		if ev.Start != nil {
			payload = ev.Start
		}
	case domain.EventModelSelected:
		if ev.Selected != nil {
			payload = ev.Selected
		}
	case domain.EventThinkingStart, domain.EventThinkingDelta,
		domain.EventTextStart, domain.EventTextDelta, domain.EventTextComplete:
		if ev.Text != nil {
			payload = ev.Text
		}
	case domain.EventToolStart, domain.EventToolInputDelta, domain.EventToolComplete:
		if ev.Tool != nil {
			payload = ev.Tool
		}
	case domain.EventUsage:
		if ev.Usage != nil {
			payload = ev.Usage
		}
	case domain.EventComplete:
		if ev.Complete != nil {
			payload = ev.Complete
		}
	case domain.EventError:
		if ev.Error != nil {
			payload = ev.Error
		}
	case domain.EventDone:
		if ev.Done != nil {
			payload = ev.Done
		}
	}
	if payload == nil {
		return struct{}{}
	}
	return payload
}
