package fintalk

import (
	"fmt"
	"sync"

	"github.com/fintalk/fintalk/tools"
)

// Global registries - populated at init() or wiring time, before NewClient
var (
	globalAgentsMu sync.RWMutex
	globalAgents   = make(map[string]*AgentDefinition)
	globalToolsMu  sync.RWMutex
	globalTools    = make(map[string]tools.Tool)
)

// AgentDefinition defines a specialist agent's configuration.
type AgentDefinition struct {
	// Name is the unique identifier for this agent (required)
	Name string

	// Description tells the supervisor what this agent handles
	Description string

	// SystemPrompt is the system prompt for this agent (required)
	SystemPrompt string

	// Tools is a list of tool names available to this agent
	// These must be registered via RegisterTool before the agent runs
	Tools []string
}

// Validate validates the agent definition
func (d *AgentDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: agent name is required", ErrInvalidConfig)
	}
	if d.SystemPrompt == "" {
		return fmt.Errorf("%w: agent system prompt is required for %q", ErrInvalidConfig, d.Name)
	}
	return nil
}

// Register registers an agent definition globally.
//
// Example:
//
//	fintalk.Register(&fintalk.AgentDefinition{
//	    Name:         "wealth",
//	    SystemPrompt: prompts.Wealth,
//	    Tools:        []string{"project_savings"},
//	})
func Register(def *AgentDefinition) error {
	if def == nil {
		return fmt.Errorf("%w: agent definition is nil", ErrInvalidConfig)
	}
	if err := def.Validate(); err != nil {
		return err
	}

	globalAgentsMu.Lock()
	defer globalAgentsMu.Unlock()

	if _, exists := globalAgents[def.Name]; exists {
		return fmt.Errorf("%w: agent %q already registered", ErrInvalidConfig, def.Name)
	}
	globalAgents[def.Name] = def
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(def *AgentDefinition) {
	if err := Register(def); err != nil {
		panic(err)
	}
}

// GetRegisteredAgent returns a registered agent definition by name.
func GetRegisteredAgent(name string) (*AgentDefinition, bool) {
	globalAgentsMu.RLock()
	defer globalAgentsMu.RUnlock()

	def, ok := globalAgents[name]
	return def, ok
}

// ListRegisteredAgents returns all registered agent names.
func ListRegisteredAgents() []string {
	globalAgentsMu.RLock()
	defer globalAgentsMu.RUnlock()

	names := make([]string, 0, len(globalAgents))
	for name := range globalAgents {
		names = append(names, name)
	}
	return names
}

// RegisterTool registers a tool globally so agents can reference it by name.
func RegisterTool(t tools.Tool) error {
	if t == nil {
		return fmt.Errorf("%w: tool is nil", ErrInvalidConfig)
	}
	name := t.Name()
	if name == "" {
		return fmt.Errorf("%w: tool name is empty", ErrInvalidConfig)
	}

	globalToolsMu.Lock()
	defer globalToolsMu.Unlock()

	if _, exists := globalTools[name]; exists {
		return fmt.Errorf("%w: tool %q already registered", ErrInvalidConfig, name)
	}
	globalTools[name] = t
	return nil
}

// MustRegisterTool is like RegisterTool but panics on error.
func MustRegisterTool(t tools.Tool) {
	if err := RegisterTool(t); err != nil {
		panic(err)
	}
}

// GetRegisteredTool returns a registered tool by name.
func GetRegisteredTool(name string) (tools.Tool, bool) {
	globalToolsMu.RLock()
	defer globalToolsMu.RUnlock()

	t, ok := globalTools[name]
	return t, ok
}

// ListRegisteredTools returns all registered tool names.
func ListRegisteredTools() []string {
	globalToolsMu.RLock()
	defer globalToolsMu.RUnlock()

	names := make([]string, 0, len(globalTools))
	for name := range globalTools {
		names = append(names, name)
	}
	return names
}

// ClearRegistry clears all registered agents and tools.
// This is mainly useful for testing.
func ClearRegistry() {
	globalAgentsMu.Lock()
	globalAgents = make(map[string]*AgentDefinition)
	globalAgentsMu.Unlock()

	globalToolsMu.Lock()
	globalTools = make(map[string]tools.Tool)
	globalToolsMu.Unlock()
}
