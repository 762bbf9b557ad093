package ports

import "context"

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	// ArgumentError is set when the model's raw argument string could not be
	// decoded even after repair. The call must not execute; the engine surfaces
	// the error back to the model as the tool result.
	ArgumentError string `json:"argument_error,omitempty"`
}

// ToolResult is the outcome of one tool invocation. A non-nil Error is
// recoverable: it is surfaced to the model as a tool message, not returned as
// a Go error from the engine.
type ToolResult struct {
	CallID   string         `json:"call_id"`
	Content  string         `json:"content"`
	Error    error          `json:"-"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ToolDefinition is the tool's schema as advertised to the LLM.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ParameterSchema describes tool parameters (JSON schema subset).
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes one tool parameter.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// ToolMetadata carries engine-facing tool attributes that are not part of the
// LLM schema.
type ToolMetadata struct {
	Name     string
	Version  string
	Category string
	// Mutating tools have filesystem or process side effects: they run
	// strictly one at a time in issue order and are never cached.
	Mutating bool
	// Dangerous tools route their commands through the consent broker.
	Dangerous bool
}

// ToolExecutor executes a single tool call.
type ToolExecutor interface {
	// Execute runs the tool with given arguments
	Execute(ctx context.Context, call ToolCall) (*ToolResult, error)

	// Definition returns the tool's schema for LLM
	Definition() ToolDefinition

	// Metadata returns tool metadata
	Metadata() ToolMetadata
}

// ToolRegistry holds the fixed tool catalog for a task.
type ToolRegistry interface {
	Get(name string) (ToolExecutor, error)
	List() []ToolDefinition
	Register(tool ToolExecutor) error
	Unregister(name string) error
}
