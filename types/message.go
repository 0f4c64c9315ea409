package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role represents the message role
type Role string

const (
	// RoleUser represents a user message
	RoleUser Role = "user"

	// RoleAssistant represents an assistant message
	RoleAssistant Role = "assistant"

	// RoleSystem represents a system message
	RoleSystem Role = "system"

	// RoleRemove marks a removal instruction emitted by history compaction.
	// It is never stored; callers apply it to their live history and discard it.
	RoleRemove Role = "remove"
)

// Metadata keys recognized across the pipeline.
const (
	// MetadataHandoffBack marks a message as an internal supervisor
	// handoff-back marker. Such messages are stripped from compaction.
	MetadataHandoffBack = "handoff_back"
)

// Message represents a conversation message with metadata.
//
// ID may be empty: synthetic messages (injected context, handoff markers)
// are not always persisted and carry no identifier.
type Message struct {
	ID        string    `json:"id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Role      Role      `json:"role"`
	Content   Content   `json:"content"`
	Usage     *Usage    `json:"usage,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`

	// ResponseMetadata carries provider- or pipeline-supplied annotations,
	// e.g. the handoff-back flag.
	ResponseMetadata map[string]any `json:"response_metadata,omitempty"`
}

// IsHandoffBack reports whether the message carries a truthy handoff-back
// flag in its response metadata. The flag is boolean-like: JSON decoding may
// surface it as bool, string, or number depending on the producer.
func (m Message) IsHandoffBack() bool {
	if m.ResponseMetadata == nil {
		return false
	}
	return truthy(m.ResponseMetadata[MetadataHandoffBack])
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1"
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return false
	}
}

// ContentType represents the type of content block
type ContentType string

const (
	// ContentTypeText represents text content
	ContentTypeText ContentType = "text"

	// ContentTypeToolUse represents a tool use block
	ContentTypeToolUse ContentType = "tool_use"

	// ContentTypeToolResult represents a tool result block
	ContentTypeToolResult ContentType = "tool_result"
)

// ContentBlock represents a piece of content in a message
type ContentBlock struct {
	Type ContentType `json:"type"`

	// Text content
	Text string `json:"text,omitempty"`

	// Tool use content
	ToolUseID string          `json:"id,omitempty"`
	ToolName  string          `json:"name,omitempty"`
	ToolInput json.RawMessage `json:"input,omitempty"`

	// Tool result content
	ToolResultID string `json:"tool_use_id,omitempty"`
	ToolContent  string `json:"content,omitempty"`
	IsError      bool   `json:"is_error,omitempty"`
}

// Content is the message payload: either a plain string or an ordered
// sequence of typed blocks. Both shapes occur on the wire; normalizing
// happens once here instead of at each use site.
type Content struct {
	plain  string
	blocks []ContentBlock
	isList bool
}

// PlainText returns Content holding a plain string payload.
func PlainText(s string) Content {
	return Content{plain: s}
}

// Blocks returns Content holding an ordered block sequence.
func Blocks(blocks ...ContentBlock) Content {
	return Content{blocks: blocks, isList: true}
}

// TextBlock is a convenience constructor for a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentTypeText, Text: text}
}

// Text normalizes the payload to a string. Plain content is returned as-is;
// block content concatenates the text field of each block in order, joined
// without separators. Block boundaries are not line or bullet boundaries.
func (c Content) Text() string {
	if !c.isList {
		return c.plain
	}
	var sb strings.Builder
	for _, b := range c.blocks {
		sb.WriteString(b.Text)
	}
	return sb.String()
}

// Blocks returns the block sequence, or a single synthesized text block for
// plain content.
func (c Content) Blocks() []ContentBlock {
	if c.isList {
		return c.blocks
	}
	if c.plain == "" {
		return nil
	}
	return []ContentBlock{TextBlock(c.plain)}
}

// IsEmpty reports whether the payload normalizes to the empty string.
func (c Content) IsEmpty() bool {
	return strings.TrimSpace(c.Text()) == ""
}

// MarshalJSON encodes plain content as a JSON string and block content as a
// JSON array, matching the wire shapes produced by model providers.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.isList {
		return json.Marshal(c.blocks)
	}
	return json.Marshal(c.plain)
}

// UnmarshalJSON accepts either a JSON string or an array of blocks.
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var blocks []ContentBlock
		if err := json.Unmarshal(data, &blocks); err != nil {
			return fmt.Errorf("unmarshal content blocks: %w", err)
		}
		*c = Content{blocks: blocks, isList: true}
		return nil
	}
	var plain string
	if err := json.Unmarshal(data, &plain); err != nil {
		return fmt.Errorf("unmarshal content string: %w", err)
	}
	*c = Content{plain: plain}
	return nil
}

// Usage represents token usage information
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns the total number of tokens (input + output).
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}
