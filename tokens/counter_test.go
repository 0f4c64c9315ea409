package tokens

import (
	"testing"

	"github.com/fintalk/fintalk/types"
)

func TestApproximate(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"12345678", 2},
	}

	for _, tt := range tests {
		if got := Approximate(tt.text); got != tt.want {
			t.Errorf("Approximate(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestCount_Deterministic(t *testing.T) {
	c := NewApproximateCounter()
	msgs := []types.Message{
		{Role: types.RoleUser, Content: types.PlainText("How much should I save each month?")},
		{Role: types.RoleAssistant, Content: types.PlainText("That depends on your income and goals.")},
	}

	first := c.Count(msgs)
	if first <= 0 {
		t.Fatalf("Count() = %d, want positive", first)
	}
	for i := 0; i < 5; i++ {
		if got := c.Count(msgs); got != first {
			t.Fatalf("Count() not deterministic: %d vs %d", got, first)
		}
	}
}

func TestCount_MonotonicInMessages(t *testing.T) {
	c := NewApproximateCounter()
	short := []types.Message{
		{Role: types.RoleUser, Content: types.PlainText("Hi")},
	}
	longer := append(short, types.Message{
		Role:    types.RoleAssistant,
		Content: types.PlainText("Hello! How can I help with your finances today?"),
	})

	if c.Count(longer) <= c.Count(short) {
		t.Errorf("Count(longer) = %d, want > Count(short) = %d", c.Count(longer), c.Count(short))
	}
}

func TestCount_ToolBlocks(t *testing.T) {
	c := NewApproximateCounter()
	msg := types.Message{
		Role: types.RoleAssistant,
		Content: types.Blocks(
			types.ContentBlock{Type: types.ContentTypeToolUse, ToolName: "savings_projection", ToolInput: []byte(`{"monthly":500}`)},
			types.ContentBlock{Type: types.ContentTypeToolResult, ToolContent: "projected balance: 31,000"},
		),
	}

	if got := c.Count([]types.Message{msg}); got <= messageOverhead {
		t.Errorf("Count() = %d, want tool block content counted", got)
	}
}
