// Package streaming defines the events relayed to clients over SSE while a
// turn is in flight.
package streaming

// EventType represents the type of streaming event.
type EventType string

const (
	// EventTypeAgentSelected indicates the supervisor routed the turn.
	EventTypeAgentSelected EventType = "agent_selected"

	// EventTypeTextDelta indicates new assistant text.
	EventTypeTextDelta EventType = "text_delta"

	// EventTypeToolCall indicates a tool was executed.
	EventTypeToolCall EventType = "tool_call"

	// EventTypeHandoff indicates the conversation moved between agents.
	EventTypeHandoff EventType = "handoff"

	// EventTypeTurnComplete indicates the turn finished.
	EventTypeTurnComplete EventType = "turn_complete"

	// EventTypeError indicates the turn failed.
	EventTypeError EventType = "error"
)

// Event represents one streaming event.
type Event interface {
	Type() EventType
}

// AgentSelectedEvent is emitted when the supervisor picks an agent.
type AgentSelectedEvent struct {
	Agent string `json:"agent"`
}

func (e *AgentSelectedEvent) Type() EventType {
	return EventTypeAgentSelected
}

// TextDeltaEvent is emitted when assistant text arrives.
type TextDeltaEvent struct {
	Delta string `json:"delta"`
}

func (e *TextDeltaEvent) Type() EventType {
	return EventTypeTextDelta
}

// ToolCallEvent is emitted after a tool executes.
type ToolCallEvent struct {
	ToolName string `json:"tool_name"`
	Result   string `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (e *ToolCallEvent) Type() EventType {
	return EventTypeToolCall
}

// HandoffEvent is emitted when the conversation moves between agents.
type HandoffEvent struct {
	From string `json:"from"`
	To   string `json:"to"`

	// Back is true when a sub-agent returns control to the supervisor.
	Back bool `json:"back,omitempty"`
}

func (e *HandoffEvent) Type() EventType {
	return EventTypeHandoff
}

// TurnCompleteEvent is emitted when the turn finishes.
type TurnCompleteEvent struct {
	MessageID    string `json:"message_id"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
}

func (e *TurnCompleteEvent) Type() EventType {
	return EventTypeTurnComplete
}

// ErrorEvent is emitted when the turn fails.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (e *ErrorEvent) Type() EventType {
	return EventTypeError
}
