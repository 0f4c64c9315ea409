package streaming

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Stream is the event channel for one in-flight turn. The turn goroutine
// publishes; the HTTP handler drains and relays over SSE.
type Stream struct {
	events chan Event

	mu     sync.Mutex
	closed bool
}

// NewStream creates a buffered event stream.
func NewStream() *Stream {
	return &Stream{events: make(chan Event, 64)}
}

// Publish sends an event to the consumer. Events published after Close are
// dropped; a slow consumer past the buffer also loses events rather than
// stalling the turn.
func (s *Stream) Publish(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- event:
	default:
	}
}

// Events returns the receive side of the stream.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Close ends the stream. Safe to call more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

// WriteSSE writes one event in text/event-stream framing.
func WriteSSE(w io.Writer, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type(), err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type(), data); err != nil {
		return fmt.Errorf("write sse frame: %w", err)
	}
	return nil
}
