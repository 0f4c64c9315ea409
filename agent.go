package fintalk

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fintalk/fintalk/llm"
	"github.com/fintalk/fintalk/store"
	"github.com/fintalk/fintalk/streaming"
	"github.com/fintalk/fintalk/types"
)

// maxToolIterations bounds the tool loop so a misbehaving model cannot spin
// the turn forever.
const maxToolIterations = 8

// handoffToolName is the implicit tool every sub-agent gets for returning
// control to the supervisor.
const handoffToolName = "handoff_back"

// runAgentLoop executes the selected agent's turn: repeated model calls,
// executing requested tools between them, until the model answers without
// tool use or the iteration cap is hit. Returns the final reply and whether
// the agent handed the conversation back to the supervisor.
func (c *Client) runAgentLoop(ctx context.Context, session *store.Session, agentName string, history []types.Message, stream *streaming.Stream) (*types.Message, bool, error) {
	def, ok := GetRegisteredAgent(agentName)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrAgentNotFound, agentName)
	}

	toolDefs := c.buildToolDefs(def)

	var onDelta llm.TextDelta
	if stream != nil {
		onDelta = func(text string) {
			stream.Publish(&streaming.TextDeltaEvent{Delta: text})
		}
	}

	working := make([]types.Message, len(history))
	copy(working, history)

	handedBack := false
	var usage types.Usage

	for i := 0; i < maxToolIterations; i++ {
		reply, err := c.chat.Complete(ctx, def.SystemPrompt, working, toolDefs, onDelta)
		if err != nil {
			return nil, false, fmt.Errorf("model call: %w", err)
		}
		if reply.Usage != nil {
			usage.InputTokens += reply.Usage.InputTokens
			usage.OutputTokens += reply.Usage.OutputTokens
		}

		toolUses := toolUseBlocks(reply.Content)
		if len(toolUses) == 0 {
			reply.Usage = &usage
			return &reply, handedBack, nil
		}

		results := make([]types.ContentBlock, 0, len(toolUses))
		for _, block := range toolUses {
			output, execErr := c.executeTool(ctx, session, block)
			if block.ToolName == handoffToolName {
				handedBack = true
			}
			if hookErr := c.hooks.TriggerToolCall(ctx, block.ToolName, block.ToolInput, output, execErr); hookErr != nil {
				c.logger.Warn().Err(hookErr).Str("tool", block.ToolName).Msg("tool call hook failed")
			}
			if stream != nil {
				event := &streaming.ToolCallEvent{ToolName: block.ToolName, Result: output}
				if execErr != nil {
					event.Error = execErr.Error()
				}
				stream.Publish(event)
			}

			result := types.ContentBlock{
				Type:         types.ContentTypeToolResult,
				ToolResultID: block.ToolUseID,
				ToolContent:  output,
			}
			if execErr != nil {
				result.ToolContent = execErr.Error()
				result.IsError = true
			}
			results = append(results, result)
		}

		working = append(working, reply, types.Message{
			Role:    types.RoleUser,
			Content: types.Blocks(results...),
		})
	}

	return nil, false, fmt.Errorf("%w: tool loop exceeded %d iterations", ErrToolExecutionFailed, maxToolIterations)
}

// executeTool runs one requested tool. The user_id parameter is always
// supplied server-side so the model cannot write to another user's data.
func (c *Client) executeTool(ctx context.Context, session *store.Session, block types.ContentBlock) (string, error) {
	if block.ToolName == handoffToolName {
		return "Returning the conversation to the supervisor.", nil
	}

	t, ok := GetRegisteredTool(block.ToolName)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, block.ToolName)
	}

	input := block.ToolInput
	if withUser, err := injectUserID(input, session.UserID); err == nil {
		input = withUser
	}

	output, err := t.Execute(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrToolExecutionFailed, block.ToolName, err)
	}
	return output, nil
}

// buildToolDefs converts the agent's registered tools plus the implicit
// handoff tool into model-facing definitions.
func (c *Client) buildToolDefs(def *AgentDefinition) []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(def.Tools)+1)
	for _, name := range def.Tools {
		t, ok := GetRegisteredTool(name)
		if !ok {
			c.logger.Warn().Str("tool", name).Str("agent", def.Name).Msg("agent references unregistered tool")
			continue
		}
		schema := t.InputSchema()
		properties := make(map[string]any, len(schema.Properties))
		for key, prop := range schema.Properties {
			if key == "user_id" {
				// Supplied server-side; never exposed to the model.
				continue
			}
			properties[key] = prop
		}
		required := make([]string, 0, len(schema.Required))
		for _, name := range schema.Required {
			if name != "user_id" {
				required = append(required, name)
			}
		}
		defs = append(defs, llm.ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			Properties:  properties,
			Required:    required,
		})
	}

	defs = append(defs, llm.ToolDef{
		Name:        handoffToolName,
		Description: "Return the conversation to the supervisor when the request is outside your specialty.",
		Properties: map[string]any{
			"reason": map[string]any{
				"type":        "string",
				"description": "Why the conversation is being handed back",
			},
		},
	})
	return defs
}

func toolUseBlocks(content types.Content) []types.ContentBlock {
	var uses []types.ContentBlock
	for _, block := range content.Blocks() {
		if block.Type == types.ContentTypeToolUse {
			uses = append(uses, block)
		}
	}
	return uses
}

// injectUserID adds the server-known user_id to a tool input payload.
func injectUserID(input json.RawMessage, userID string) (json.RawMessage, error) {
	params := map[string]any{}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &params); err != nil {
			return nil, err
		}
	}
	params["user_id"] = userID
	return json.Marshal(params)
}
