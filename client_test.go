package fintalk

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/fintalk/fintalk/llm"
	"github.com/fintalk/fintalk/memory"
	"github.com/fintalk/fintalk/store"
	"github.com/fintalk/fintalk/streaming"
	"github.com/fintalk/fintalk/summarizer"
	"github.com/fintalk/fintalk/tools"
	"github.com/fintalk/fintalk/types"
)

// fakeChat replays scripted replies in order and records what it was asked.
type fakeChat struct {
	replies []types.Message
	calls   int
	systems []string
}

func (f *fakeChat) Complete(_ context.Context, system string, _ []types.Message, _ []llm.ToolDef, onDelta llm.TextDelta) (types.Message, error) {
	f.systems = append(f.systems, system)
	if f.calls >= len(f.replies) {
		return types.Message{}, errors.New("no scripted reply left")
	}
	reply := f.replies[f.calls]
	f.calls++
	if onDelta != nil {
		onDelta(reply.Content.Text())
	}
	return reply, nil
}

// fakeSummary returns a fixed summary.
type fakeSummary struct {
	output string
}

func (f *fakeSummary) Invoke(_ context.Context, _ string) (types.Content, error) {
	return types.PlainText(f.output), nil
}

func textReply(text string) types.Message {
	return types.Message{Role: types.RoleAssistant, Content: types.PlainText(text)}
}

func charCounter(messages []types.Message) int {
	total := 0
	for _, msg := range messages {
		total += (len(msg.Content.Text()) + 3) / 4
	}
	return total
}

func newTestClient(t *testing.T, chat ChatModel, opts ...Option) (*Client, *store.MemStore, *memory.MemStore) {
	t.Helper()
	sessions := store.NewMemStore()
	memories := memory.NewMemStore()
	client, err := NewClient(Config{
		Store:    sessions,
		Memories: memories,
		Chat:     chat,
	}, append([]Option{WithAutoCompaction(false), WithTokenCounter(charCounter)}, opts...)...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client, sessions, memories
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewClient(empty) error = %v, want ErrInvalidConfig", err)
	}
}

func TestRunTurn_EmptyMessage(t *testing.T) {
	ClearRegistry()
	defer ClearRegistry()
	RegisterDefaultAgents()

	client, sessions, _ := newTestClient(t, &fakeChat{})
	session, _ := sessions.CreateSession(context.Background(), "u1")

	_, err := client.RunTurn(context.Background(), session.ID, "   ", nil)
	if !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("error = %v, want ErrEmptyMessage", err)
	}
}

func TestRunTurn_RoutesAndPersists(t *testing.T) {
	ClearRegistry()
	defer ClearRegistry()
	RegisterDefaultAgents()

	chat := &fakeChat{replies: []types.Message{
		textReply("guest"), // supervisor routing
		textReply("An index fund pools many stocks into one purchase."),
	}}
	client, sessions, _ := newTestClient(t, chat)
	ctx := context.Background()
	session, _ := sessions.CreateSession(ctx, "u1")

	reply, err := client.RunTurn(ctx, session.ID, "What is an index fund?", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if !strings.Contains(reply.Content.Text(), "index fund") {
		t.Errorf("unexpected reply %q", reply.Content.Text())
	}

	history, _ := sessions.GetMessages(ctx, session.ID)
	if len(history) != 2 {
		t.Fatalf("history has %d messages, want 2 (user + reply)", len(history))
	}
	if history[0].Role != types.RoleUser || history[1].Role != types.RoleAssistant {
		t.Errorf("unexpected roles %s, %s", history[0].Role, history[1].Role)
	}

	updated, _ := sessions.GetSession(ctx, session.ID)
	if updated.ActiveAgent != AgentGuest {
		t.Errorf("ActiveAgent = %q, want %q", updated.ActiveAgent, AgentGuest)
	}
}

func TestRunTurn_StickyActiveAgentSkipsRouting(t *testing.T) {
	ClearRegistry()
	defer ClearRegistry()
	RegisterDefaultAgents()

	chat := &fakeChat{replies: []types.Message{
		textReply("Let's continue: what is your monthly income?"),
	}}
	client, sessions, _ := newTestClient(t, chat)
	ctx := context.Background()
	session, _ := sessions.CreateSession(ctx, "u1")
	sessions.SetActiveAgent(ctx, session.ID, AgentOnboarding)

	if _, err := client.RunTurn(ctx, session.ID, "I'm ready", nil); err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	// Exactly one model call: the onboarding agent, no supervisor routing.
	if chat.calls != 1 {
		t.Errorf("model calls = %d, want 1", chat.calls)
	}
}

func TestRunTurn_ToolLoop(t *testing.T) {
	ClearRegistry()
	defer ClearRegistry()
	MustRegisterTool(tools.NewProjectSavingsTool())
	RegisterDefaultAgents()

	toolCall := types.Message{
		Role: types.RoleAssistant,
		Content: types.Blocks(types.ContentBlock{
			Type:      types.ContentTypeToolUse,
			ToolUseID: "tu1",
			ToolName:  "project_savings",
			ToolInput: json.RawMessage(`{"starting_amount":100,"monthly_amount":50,"months":4}`),
		}),
	}
	chat := &fakeChat{replies: []types.Message{
		textReply("wealth"), // supervisor routing
		toolCall,
		textReply("After 4 months you'd have 300.00."),
	}}
	client, sessions, memories := newTestClient(t, chat)
	ctx := context.Background()
	memories.Add(ctx, "u1", "profile", "Profile risk_tolerance: low")
	session, _ := sessions.CreateSession(ctx, "u1")

	stream := streaming.NewStream()
	reply, err := client.RunTurn(ctx, session.ID, "How do my investments compound?", stream)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if !strings.Contains(reply.Content.Text(), "300.00") {
		t.Errorf("unexpected reply %q", reply.Content.Text())
	}
	if chat.calls != 3 {
		t.Errorf("model calls = %d, want 3 (routing + tool turn + final)", chat.calls)
	}

	var sawToolEvent bool
	for ev := range stream.Events() {
		if ev.Type() == streaming.EventTypeToolCall {
			sawToolEvent = true
		}
	}
	if !sawToolEvent {
		t.Error("expected a tool_call event on the stream")
	}
}

func TestRunTurn_HandoffBackClearsActiveAgent(t *testing.T) {
	ClearRegistry()
	defer ClearRegistry()
	RegisterDefaultAgents()

	handoff := types.Message{
		Role: types.RoleAssistant,
		Content: types.Blocks(types.ContentBlock{
			Type:      types.ContentTypeToolUse,
			ToolUseID: "tu1",
			ToolName:  "handoff_back",
			ToolInput: json.RawMessage(`{"reason":"investing question"}`),
		}),
	}
	chat := &fakeChat{replies: []types.Message{
		handoff,
		textReply("Handing you back to the supervisor."),
	}}
	client, sessions, _ := newTestClient(t, chat)
	ctx := context.Background()
	session, _ := sessions.CreateSession(ctx, "u1")
	sessions.SetActiveAgent(ctx, session.ID, AgentOnboarding)

	reply, err := client.RunTurn(ctx, session.ID, "Actually, what stocks should I buy?", nil)
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if !reply.IsHandoffBack() {
		t.Error("reply should carry the handoff-back flag")
	}

	updated, _ := sessions.GetSession(ctx, session.ID)
	if updated.ActiveAgent != "" {
		t.Errorf("ActiveAgent = %q, want cleared", updated.ActiveAgent)
	}
}

func TestRunTurn_PostTurnCompaction(t *testing.T) {
	ClearRegistry()
	defer ClearRegistry()
	RegisterDefaultAgents()

	chat := &fakeChat{replies: []types.Message{
		textReply("guest"),
		textReply("A diversified portfolio spreads risk across many holdings at once."),
	}}

	sessions := store.NewMemStore()
	memories := memory.NewMemStore()
	client, err := NewClient(Config{
		Store:    sessions,
		Memories: memories,
		Chat:     chat,
		Summary:  &fakeSummary{output: "User asked about diversification."},
	},
		WithTokenCounter(charCounter),
		WithTailTokenBudget(3),
		WithSummaryMaxTokens(100),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	ctx := context.Background()
	session, _ := sessions.CreateSession(ctx, "u1")

	if _, err := client.RunTurn(ctx, session.ID, "Why should I diversify my portfolio?", nil); err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}

	// Both turn messages exceed the 3-token tail budget, so the whole
	// history collapses into one summary message.
	history, _ := sessions.GetMessages(ctx, session.ID)
	if len(history) != 1 {
		t.Fatalf("history has %d messages after compaction, want 1", len(history))
	}
	if history[0].Role != types.RoleSystem {
		t.Errorf("summary role = %s, want system", history[0].Role)
	}
	if !strings.HasPrefix(history[0].Content.Text(), "Summary of the conversation so far:\n") {
		t.Errorf("summary content %q lacks the header", history[0].Content.Text())
	}

	updated, _ := sessions.GetSession(ctx, session.ID)
	if _, ok := updated.Context[summarizer.ContextKeyRunningSummary]; !ok {
		t.Error("session context should carry the running summary")
	}
}
