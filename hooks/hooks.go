// Package hooks lets embedders observe the turn lifecycle: before and after
// each turn, around tool calls, and around history compaction.
package hooks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fintalk/fintalk/summarizer"
	"github.com/fintalk/fintalk/types"
)

// BeforeTurnHook is called before a turn is routed to an agent.
type BeforeTurnHook func(ctx context.Context, sessionID string, userMessage *types.Message) error

// AfterTurnHook is called after the agent's reply is persisted.
type AfterTurnHook func(ctx context.Context, sessionID string, reply *types.Message) error

// ToolCallHook is called after a tool executes, with its input, output and
// error if any.
type ToolCallHook func(ctx context.Context, toolName string, input json.RawMessage, output string, err error) error

// BeforeCompactionHook is called before history compaction runs.
type BeforeCompactionHook func(ctx context.Context, sessionID string) error

// AfterCompactionHook is called after compaction rewrote the history. It is
// not called when compaction was a no-op.
type AfterCompactionHook func(ctx context.Context, sessionID string, result *summarizer.Result) error

// Registry holds all registered hooks.
type Registry struct {
	mu               sync.RWMutex
	beforeTurn       []BeforeTurnHook
	afterTurn        []AfterTurnHook
	toolCall         []ToolCallHook
	beforeCompaction []BeforeCompactionHook
	afterCompaction  []AfterCompactionHook
}

// NewRegistry creates an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// OnBeforeTurn registers a hook called before each turn.
func (r *Registry) OnBeforeTurn(hook BeforeTurnHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeTurn = append(r.beforeTurn, hook)
}

// OnAfterTurn registers a hook called after each turn.
func (r *Registry) OnAfterTurn(hook AfterTurnHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterTurn = append(r.afterTurn, hook)
}

// OnToolCall registers a hook called after each tool execution.
func (r *Registry) OnToolCall(hook ToolCallHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolCall = append(r.toolCall, hook)
}

// OnBeforeCompaction registers a hook called before compaction.
func (r *Registry) OnBeforeCompaction(hook BeforeCompactionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeCompaction = append(r.beforeCompaction, hook)
}

// OnAfterCompaction registers a hook called after compaction rewrote history.
func (r *Registry) OnAfterCompaction(hook AfterCompactionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterCompaction = append(r.afterCompaction, hook)
}

// TriggerBeforeTurn calls all before-turn hooks, stopping at the first error.
func (r *Registry) TriggerBeforeTurn(ctx context.Context, sessionID string, userMessage *types.Message) error {
	r.mu.RLock()
	hooks := make([]BeforeTurnHook, len(r.beforeTurn))
	copy(hooks, r.beforeTurn)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, sessionID, userMessage); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterTurn calls all after-turn hooks, stopping at the first error.
func (r *Registry) TriggerAfterTurn(ctx context.Context, sessionID string, reply *types.Message) error {
	r.mu.RLock()
	hooks := make([]AfterTurnHook, len(r.afterTurn))
	copy(hooks, r.afterTurn)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, sessionID, reply); err != nil {
			return err
		}
	}
	return nil
}

// TriggerToolCall calls all tool-call hooks, stopping at the first error.
func (r *Registry) TriggerToolCall(ctx context.Context, toolName string, input json.RawMessage, output string, err error) error {
	r.mu.RLock()
	hooks := make([]ToolCallHook, len(r.toolCall))
	copy(hooks, r.toolCall)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if hookErr := hook(ctx, toolName, input, output, err); hookErr != nil {
			return hookErr
		}
	}
	return nil
}

// TriggerBeforeCompaction calls all before-compaction hooks, stopping at the
// first error.
func (r *Registry) TriggerBeforeCompaction(ctx context.Context, sessionID string) error {
	r.mu.RLock()
	hooks := make([]BeforeCompactionHook, len(r.beforeCompaction))
	copy(hooks, r.beforeCompaction)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, sessionID); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterCompaction calls all after-compaction hooks, stopping at the
// first error.
func (r *Registry) TriggerAfterCompaction(ctx context.Context, sessionID string, result *summarizer.Result) error {
	r.mu.RLock()
	hooks := make([]AfterCompactionHook, len(r.afterCompaction))
	copy(hooks, r.afterCompaction)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, sessionID, result); err != nil {
			return err
		}
	}
	return nil
}
