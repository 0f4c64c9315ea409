// Package tokens provides token counting for conversation messages.
//
// The primary counter uses tiktoken's cl100k_base encoding locally, with a
// character-based approximation fallback when the encoding is unavailable.
// An Anthropic count-tokens API path exists for accurate offline stats; the
// hot path never blocks on the network.
package tokens

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/pkoukk/tiktoken-go"

	"github.com/fintalk/fintalk/types"
)

const encodingName = "cl100k_base"

// messageOverhead approximates per-message chat framing tokens.
const messageOverhead = 4

// Counter counts tokens for ordered message sequences. Count is pure and
// deterministic for a given counter, which makes it usable as a
// summarizer.TokenCounter.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter creates a Counter backed by the cl100k_base encoding.
func NewCounter() (*Counter, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encodingName, err)
	}
	return &Counter{enc: enc}, nil
}

// NewApproximateCounter creates a Counter that uses character-based
// approximation only (~4 characters per token). Used when the encoding
// cannot be loaded and in tests.
func NewApproximateCounter() *Counter {
	return &Counter{}
}

// Count returns the token count for the given messages in order.
func (c *Counter) Count(messages []types.Message) int {
	total := 0
	for _, msg := range messages {
		total += c.countMessage(msg)
	}
	return total
}

func (c *Counter) countMessage(msg types.Message) int {
	var sb strings.Builder
	if msg.Role != "" {
		sb.WriteString(string(msg.Role))
		sb.WriteString("\n")
	}
	for _, block := range msg.Content.Blocks() {
		switch block.Type {
		case types.ContentTypeText:
			sb.WriteString(block.Text)
		case types.ContentTypeToolUse:
			sb.WriteString(block.ToolName)
			sb.WriteString("\n")
			sb.Write(block.ToolInput)
		case types.ContentTypeToolResult:
			sb.WriteString(block.ToolContent)
		default:
			sb.WriteString(block.Text)
		}
		sb.WriteString("\n")
	}

	text := sb.String()
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil)) + messageOverhead
	}
	return Approximate(text) + messageOverhead
}

// Approximate estimates token count from character count, ~4 characters per
// token with a minimum of 1 for non-empty text.
func Approximate(text string) int {
	if len(text) == 0 {
		return 0
	}
	n := (len(text) + 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// CountWithAPI counts tokens using the Anthropic count-tokens endpoint.
// Intended for stats and reporting, not the compaction hot path.
func CountWithAPI(ctx context.Context, client *anthropic.Client, model string, messages []types.Message) (int, error) {
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		text := msg.Content.Text()
		if text == "" {
			continue
		}
		switch msg.Role {
		case types.RoleAssistant:
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(text)))
		default:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
		}
	}
	if len(params) == 0 {
		return 0, nil
	}

	result, err := client.Messages.CountTokens(ctx, anthropic.MessageCountTokensParams{
		Model:    anthropic.Model(model),
		Messages: params,
	})
	if err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return int(result.InputTokens), nil
}
