// Package llm adapts the Anthropic API to the interfaces the rest of the
// backend consumes: a chat completion call for agent turns and a
// summarizer.Model implementation for history compaction.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/fintalk/fintalk/types"
)

// Client wraps an Anthropic client with a fixed chat model.
type Client struct {
	anthropic *anthropic.Client
	model     string
	maxTokens int64
}

// NewClient creates a chat client for the given model.
func NewClient(client *anthropic.Client, model string, maxTokens int64) *Client {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{anthropic: client, model: model, maxTokens: maxTokens}
}

// TextDelta is invoked for each text fragment while a reply streams.
type TextDelta func(text string)

// ToolDef describes one tool exposed to the model for a turn.
type ToolDef struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// Complete runs one chat turn over the given history and returns the
// assistant reply. onDelta may be nil; when set it receives text fragments
// as they arrive, for SSE relay. The reply may contain tool_use blocks when
// tools are provided; the caller runs the tool loop.
func (c *Client) Complete(ctx context.Context, system string, history []types.Message, tools []ToolDef, onDelta TextDelta) (types.Message, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  toMessageParams(history),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = toToolParams(tools)
	}

	stream := c.anthropic.Messages.NewStreaming(ctx, params)
	var message anthropic.Message
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return types.Message{}, fmt.Errorf("accumulate stream: %w", err)
		}
		if onDelta != nil {
			if e, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if delta, ok := e.Delta.AsAny().(anthropic.TextDelta); ok {
					onDelta(delta.Text)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return types.Message{}, fmt.Errorf("streaming: %w", err)
	}

	reply := types.Message{
		Role:    types.RoleAssistant,
		Content: types.Blocks(toContentBlocks(message.Content)...),
		Usage: &types.Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
		},
	}
	return reply, nil
}

// SummaryModel implements summarizer.Model on the streaming API. The whole
// compaction prompt travels as a single user message; the summary comes back
// as ordered text blocks.
type SummaryModel struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewSummaryModel creates a summarization model callable. A smaller, faster
// model than the chat model is recommended.
func NewSummaryModel(client *anthropic.Client, model string, maxTokens int64) *SummaryModel {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &SummaryModel{client: client, model: model, maxTokens: maxTokens}
}

// Invoke sends the compaction prompt and returns the accumulated response
// content.
func (m *SummaryModel) Invoke(ctx context.Context, prompt string) (types.Content, error) {
	stream := m.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: m.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})

	var message anthropic.Message
	for stream.Next() {
		if err := message.Accumulate(stream.Current()); err != nil {
			return types.Content{}, fmt.Errorf("accumulate stream: %w", err)
		}
	}
	if err := stream.Err(); err != nil {
		return types.Content{}, fmt.Errorf("summarization: %w", err)
	}

	return types.Blocks(toContentBlocks(message.Content)...), nil
}

func toToolParams(tools []ToolDef) []anthropic.ToolUnionParam {
	params := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type:       "object",
			Properties: t.Properties,
		}
		if len(t.Required) > 0 {
			inputSchema.Required = t.Required
		}
		params = append(params, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: inputSchema,
		}})
	}
	return params
}

func toMessageParams(history []types.Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(history))
	for _, msg := range history {
		// System summary messages ride along with the user role.
		role := anthropic.MessageParamRoleUser
		if msg.Role == types.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}

		blocks := msg.Content.Blocks()
		content := make([]anthropic.ContentBlockParamUnion, 0, len(blocks))
		for _, block := range blocks {
			switch block.Type {
			case types.ContentTypeText:
				content = append(content, anthropic.NewTextBlock(block.Text))
			case types.ContentTypeToolUse:
				var input any
				if len(block.ToolInput) > 0 {
					if err := json.Unmarshal(block.ToolInput, &input); err != nil {
						// Malformed stored input cannot be replayed; drop
						// the block rather than send a nil input.
						continue
					}
				}
				content = append(content, anthropic.NewToolUseBlock(block.ToolUseID, input, block.ToolName))
			case types.ContentTypeToolResult:
				content = append(content, anthropic.NewToolResultBlock(block.ToolResultID, block.ToolContent, block.IsError))
			}
		}

		if len(content) > 0 {
			params = append(params, anthropic.MessageParam{Role: role, Content: content})
		}
	}
	return params
}

func toContentBlocks(content []anthropic.ContentBlockUnion) []types.ContentBlock {
	blocks := make([]types.ContentBlock, 0, len(content))
	for _, block := range content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			blocks = append(blocks, types.TextBlock(b.Text))
		case anthropic.ToolUseBlock:
			cb := types.ContentBlock{
				Type:      types.ContentTypeToolUse,
				ToolUseID: b.ID,
				ToolName:  b.Name,
			}
			if inputBytes, err := json.Marshal(b.Input); err == nil {
				cb.ToolInput = inputBytes
			}
			blocks = append(blocks, cb)
		}
	}
	return blocks
}
