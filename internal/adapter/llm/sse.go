package llm

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"mindhub/internal/domain"
)

// parseSSEStream reads SSE-formatted lines from body and converts each data
// payload into a provider event using parseData. Blank lines, ":" comments,
// and "event:" lines are skipped; the data JSON already carries the event
// type. The channel is closed when the stream ends or ctx is cancelled.
func parseSSEStream(ctx context.Context, body io.ReadCloser, parseData func(data []byte) (*domain.ProviderEvent, error)) <-chan domain.ProviderEvent {
	ch := make(chan domain.ProviderEvent, 16)
	go func() {
		defer close(ch)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Bytes()
			if len(line) == 0 || line[0] == ':' {
				continue
			}
			if !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			data := bytes.TrimPrefix(line, []byte("data: "))

			if bytes.Equal(data, []byte("[DONE]")) {
				sendEvent(ctx, ch, domain.ProviderEvent{Type: domain.ProviderMessageStop})
				return
			}

			event, err := parseData(data)
			if err != nil || event == nil {
				// Skip unparseable or irrelevant lines.
				continue
			}

			if !sendEvent(ctx, ch, *event) {
				return
			}
			if event.Type == domain.ProviderMessageStop || event.Type == domain.ProviderError {
				return
			}
		}
		// A scanner error means the connection dropped mid-stream. Surface it
		// so the translator can terminate the session cleanly.
		if err := scanner.Err(); err != nil {
			sendEvent(ctx, ch, domain.ProviderEvent{
				Type:       domain.ProviderError,
				ErrMessage: "stream read: " + err.Error(),
			})
		}
	}()
	return ch
}

func sendEvent(ctx context.Context, ch chan<- domain.ProviderEvent, ev domain.ProviderEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
