package summarizer

import (
	"testing"

	"github.com/fintalk/fintalk/types"
)

func TestDefaultPredicates(t *testing.T) {
	tests := []struct {
		name string
		msg  types.Message
		want bool
	}{
		{
			name: "plain user message",
			msg:  types.Message{Role: types.RoleUser, Content: types.PlainText("hello")},
			want: true,
		},
		{
			name: "plain assistant message",
			msg:  types.Message{Role: types.RoleAssistant, Content: types.PlainText("hi there")},
			want: true,
		},
		{
			name: "system message",
			msg:  types.Message{Role: types.RoleSystem, Content: types.PlainText("You are an assistant")},
			want: false,
		},
		{
			name: "context profile banner",
			msg:  types.Message{Role: types.RoleUser, Content: types.PlainText(ContextProfileMarker + " name=Sam")},
			want: false,
		},
		{
			name: "memory preamble",
			msg:  types.Message{Role: types.RoleUser, Content: types.PlainText(MemoryPreambleMarker + " prefers ETFs")},
			want: false,
		},
		{
			name: "marker mid-content is not noise",
			msg:  types.Message{Role: types.RoleUser, Content: types.PlainText("tell me about CONTEXT_PROFILE: markers")},
			want: true,
		},
		{
			name: "handoff flag true",
			msg: types.Message{
				Role:             types.RoleAssistant,
				Content:          types.PlainText("returning control"),
				ResponseMetadata: map[string]any{types.MetadataHandoffBack: true},
			},
			want: false,
		},
		{
			name: "handoff flag as decoded number",
			msg: types.Message{
				Role:             types.RoleAssistant,
				Content:          types.PlainText("returning control"),
				ResponseMetadata: map[string]any{types.MetadataHandoffBack: float64(1)},
			},
			want: false,
		},
		{
			name: "handoff flag false",
			msg: types.Message{
				Role:             types.RoleAssistant,
				Content:          types.PlainText("normal reply"),
				ResponseMetadata: map[string]any{types.MetadataHandoffBack: false},
			},
			want: true,
		},
		{
			name: "block content with noise prefix",
			msg: types.Message{
				Role:    types.RoleUser,
				Content: types.Blocks(types.TextBlock(ContextProfileMarker + " age=34")),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultIncludeInSummary(tt.msg); got != tt.want {
				t.Errorf("DefaultIncludeInSummary() = %v, want %v", got, tt.want)
			}
			if got := DefaultIncludeInTail(tt.msg); got != tt.want {
				t.Errorf("DefaultIncludeInTail() = %v, want %v", got, tt.want)
			}
		})
	}
}
