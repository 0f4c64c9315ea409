package streaming

import (
	"strings"
	"testing"
)

func TestStream_PublishAndDrain(t *testing.T) {
	s := NewStream()
	s.Publish(&AgentSelectedEvent{Agent: "finance"})
	s.Publish(&TextDeltaEvent{Delta: "hello"})
	s.Close()

	var got []EventType
	for ev := range s.Events() {
		got = append(got, ev.Type())
	}
	want := []EventType{EventTypeAgentSelected, EventTypeTextDelta}
	if len(got) != len(want) {
		t.Fatalf("drained %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestStream_PublishAfterCloseIsDropped(t *testing.T) {
	s := NewStream()
	s.Close()
	s.Publish(&TextDeltaEvent{Delta: "late"}) // must not panic

	if _, ok := <-s.Events(); ok {
		t.Error("expected closed channel with no events")
	}
}

func TestStream_CloseTwice(t *testing.T) {
	s := NewStream()
	s.Close()
	s.Close() // must not panic
}

func TestWriteSSE(t *testing.T) {
	var sb strings.Builder
	err := WriteSSE(&sb, &HandoffEvent{From: "onboarding", To: "supervisor", Back: true})
	if err != nil {
		t.Fatalf("WriteSSE() error = %v", err)
	}

	out := sb.String()
	if !strings.HasPrefix(out, "event: handoff\n") {
		t.Errorf("frame should start with event line, got %q", out)
	}
	if !strings.Contains(out, `"back":true`) {
		t.Errorf("frame should carry the payload, got %q", out)
	}
	if !strings.HasSuffix(out, "\n\n") {
		t.Errorf("frame should end with a blank line, got %q", out)
	}
}
