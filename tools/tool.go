// Package tools defines the tool interface exposed to agents and the
// built-in financial tools.
package tools

import (
	"context"
	"encoding/json"
)

// Tool is the interface all agent tools implement.
type Tool interface {
	// Name returns the tool name used in API calls.
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// InputSchema returns the JSON Schema for the tool's input parameters.
	InputSchema() Schema

	// Execute runs the tool with the provided input and returns the result.
	Execute(ctx context.Context, input json.RawMessage) (string, error)
}

// Schema defines the JSON Schema for a tool's input parameters.
type Schema struct {
	// Type must be "object".
	Type string `json:"type"`

	// Properties defines the tool's parameters.
	Properties map[string]PropertyDef `json:"properties"`

	// Required lists the names of required parameters.
	Required []string `json:"required,omitempty"`
}

// PropertyDef defines a single property in the tool schema.
type PropertyDef struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`

	// Minimum for number types.
	Minimum *float64 `json:"minimum,omitempty"`
}

// funcTool is a Tool implemented by a function.
type funcTool struct {
	name        string
	description string
	schema      Schema
	fn          func(context.Context, json.RawMessage) (string, error)
}

func (t *funcTool) Name() string        { return t.name }
func (t *funcTool) Description() string { return t.description }
func (t *funcTool) InputSchema() Schema { return t.schema }

func (t *funcTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	return t.fn(ctx, input)
}

// NewFuncTool creates a Tool from a function, for tools that don't need a
// struct of their own.
func NewFuncTool(name, description string, schema Schema, fn func(context.Context, json.RawMessage) (string, error)) Tool {
	return &funcTool{name: name, description: description, schema: schema, fn: fn}
}
