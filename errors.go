package fintalk

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidConfig is returned when the client configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrAgentNotFound is returned when an agent does not exist
	ErrAgentNotFound = errors.New("agent not found")

	// ErrToolNotFound is returned when a tool cannot be found
	ErrToolNotFound = errors.New("tool not found")

	// ErrEmptyMessage is returned when a turn is started with no user text
	ErrEmptyMessage = errors.New("empty message")

	// ErrToolExecutionFailed is returned when tool execution fails
	ErrToolExecutionFailed = errors.New("tool execution failed")
)

// AgentError represents an error with additional context
type AgentError struct {
	Op        string // Operation that failed
	Agent     string // Agent handling the turn, if applicable
	SessionID string // Session ID if applicable
	Err       error  // Underlying error
}

// Error implements the error interface
func (e *AgentError) Error() string {
	switch {
	case e.Agent != "" && e.SessionID != "":
		return fmt.Sprintf("%s (agent=%s, session=%s): %v", e.Op, e.Agent, e.SessionID, e.Err)
	case e.SessionID != "":
		return fmt.Sprintf("%s (session=%s): %v", e.Op, e.SessionID, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

// Unwrap returns the underlying error
func (e *AgentError) Unwrap() error {
	return e.Err
}

// NewAgentError creates a new AgentError
func NewAgentError(op string, err error) *AgentError {
	return &AgentError{Op: op, Err: err}
}

// NewAgentErrorWithSession creates a new AgentError with session ID
func NewAgentErrorWithSession(op, sessionID string, err error) *AgentError {
	return &AgentError{Op: op, SessionID: sessionID, Err: err}
}
