package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fintalk/fintalk/summarizer"
	"github.com/fintalk/fintalk/types"
)

func TestOnBeforeTurn(t *testing.T) {
	r := NewRegistry()
	var capturedSession string

	r.OnBeforeTurn(func(ctx context.Context, sessionID string, msg *types.Message) error {
		capturedSession = sessionID
		return nil
	})

	if err := r.TriggerBeforeTurn(context.Background(), "session-123", nil); err != nil {
		t.Errorf("TriggerBeforeTurn returned error: %v", err)
	}
	if capturedSession != "session-123" {
		t.Errorf("expected sessionID 'session-123', got %q", capturedSession)
	}
}

func TestOnAfterTurn(t *testing.T) {
	r := NewRegistry()
	var captured *types.Message

	r.OnAfterTurn(func(ctx context.Context, sessionID string, reply *types.Message) error {
		captured = reply
		return nil
	})

	reply := &types.Message{ID: "m1", Role: types.RoleAssistant}
	if err := r.TriggerAfterTurn(context.Background(), "s1", reply); err != nil {
		t.Errorf("TriggerAfterTurn returned error: %v", err)
	}
	if captured != reply {
		t.Error("reply was not passed to hook")
	}
}

func TestLoggingHooksTolerateNilUsage(t *testing.T) {
	r := NewRegistry()
	RegisterLogging(r, zerolog.Nop())

	// Replies from embedder-provided chat paths may carry no usage data.
	reply := &types.Message{ID: "m1", Role: types.RoleAssistant, Content: types.PlainText("done")}
	if err := r.TriggerAfterTurn(context.Background(), "s1", reply); err != nil {
		t.Errorf("TriggerAfterTurn with nil usage returned error: %v", err)
	}

	if err := r.TriggerAfterTurn(context.Background(), "s1", nil); err != nil {
		t.Errorf("TriggerAfterTurn with nil reply returned error: %v", err)
	}
}

func TestOnToolCall(t *testing.T) {
	r := NewRegistry()
	var capturedName, capturedOutput string

	r.OnToolCall(func(ctx context.Context, name string, input json.RawMessage, output string, err error) error {
		capturedName = name
		capturedOutput = output
		return nil
	})

	if err := r.TriggerToolCall(context.Background(), "project_savings", nil, "After 12 months: 600.00", nil); err != nil {
		t.Errorf("TriggerToolCall returned error: %v", err)
	}
	if capturedName != "project_savings" {
		t.Errorf("expected name 'project_savings', got %q", capturedName)
	}
	if capturedOutput != "After 12 months: 600.00" {
		t.Errorf("unexpected output %q", capturedOutput)
	}
}

func TestOnAfterCompaction(t *testing.T) {
	r := NewRegistry()
	var captured *summarizer.Result

	r.OnAfterCompaction(func(ctx context.Context, sessionID string, result *summarizer.Result) error {
		captured = result
		return nil
	})

	result := &summarizer.Result{Messages: []types.Message{{ID: "m1"}}}
	if err := r.TriggerAfterCompaction(context.Background(), "s1", result); err != nil {
		t.Errorf("TriggerAfterCompaction returned error: %v", err)
	}
	if captured != result {
		t.Error("result was not passed to hook")
	}
}

func TestHookStopsOnError(t *testing.T) {
	r := NewRegistry()
	var called []int
	expectedErr := errors.New("stop here")

	r.OnBeforeTurn(func(ctx context.Context, sessionID string, msg *types.Message) error {
		called = append(called, 1)
		return nil
	})
	r.OnBeforeTurn(func(ctx context.Context, sessionID string, msg *types.Message) error {
		called = append(called, 2)
		return expectedErr
	})
	r.OnBeforeTurn(func(ctx context.Context, sessionID string, msg *types.Message) error {
		called = append(called, 3)
		return nil
	})

	err := r.TriggerBeforeTurn(context.Background(), "s1", nil)
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	if len(called) != 2 {
		t.Errorf("expected 2 hooks called before error, got %d", len(called))
	}
}

func TestHooksCalledInOrder(t *testing.T) {
	r := NewRegistry()
	var callOrder []int

	for i := 1; i <= 3; i++ {
		n := i
		r.OnBeforeCompaction(func(ctx context.Context, sessionID string) error {
			callOrder = append(callOrder, n)
			return nil
		})
	}

	if err := r.TriggerBeforeCompaction(context.Background(), "s1"); err != nil {
		t.Errorf("TriggerBeforeCompaction returned error: %v", err)
	}
	for i, v := range callOrder {
		if v != i+1 {
			t.Errorf("expected call order %d at index %d, got %d", i+1, i, v)
		}
	}
}

func TestConcurrentRegistrationAndTrigger(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	wg.Add(200)
	for i := 0; i < 100; i++ {
		go func() {
			defer wg.Done()
			r.OnBeforeTurn(func(ctx context.Context, sessionID string, msg *types.Message) error {
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = r.TriggerBeforeTurn(context.Background(), "s1", nil)
		}()
	}
	wg.Wait()
}
