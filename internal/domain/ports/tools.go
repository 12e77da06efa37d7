package ports

import (
	"context"
	"errors"
	"strings"
	"time"

	"otto/internal/shared/jsonx"
)

// ToolExecutor executes a single tool call.
type ToolExecutor interface {
	// Execute runs the tool with given arguments. Expected failures are
	// reported inside the ToolResult, never as the returned error.
	Execute(ctx context.Context, call ToolCall) (*ToolResult, error)

	// Definition returns the tool's schema for the oracle.
	Definition() ToolDefinition

	// Metadata returns tool metadata.
	Metadata() ToolMetadata
}

// ToolRegistry manages available tools.
type ToolRegistry interface {
	Register(tool ToolExecutor) error
	Get(name string) (ToolExecutor, error)
	List() []ToolDefinition
}

// ToolCall is an oracle-proposed invocation routed to a tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	TaskID    string         `json:"task_id,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
}

// ToolResult is the uniform execution result shape.
type ToolResult struct {
	CallID   string         `json:"call_id"`
	Content  string         `json:"content"`
	Error    error          `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Elapsed  time.Duration  `json:"elapsed_ms"`
}

// Success reports whether the call produced no error.
func (r *ToolResult) Success() bool { return r != nil && r.Error == nil }

// MarshalJSON customizes ToolResult encoding to support the error interface.
func (r ToolResult) MarshalJSON() ([]byte, error) {
	type alias struct {
		CallID   string         `json:"call_id"`
		Content  string         `json:"content"`
		Error    string         `json:"error,omitempty"`
		Metadata map[string]any `json:"metadata,omitempty"`
		Elapsed  int64          `json:"elapsed_ms"`
	}
	out := alias{
		CallID:   r.CallID,
		Content:  r.Content,
		Metadata: r.Metadata,
		Elapsed:  r.Elapsed.Milliseconds(),
	}
	if r.Error != nil {
		out.Error = r.Error.Error()
	}
	return jsonx.Marshal(out)
}

// UnmarshalJSON accepts the encoded shape above.
func (r *ToolResult) UnmarshalJSON(data []byte) error {
	type alias struct {
		CallID   string         `json:"call_id"`
		Content  string         `json:"content"`
		Error    string         `json:"error"`
		Metadata map[string]any `json:"metadata"`
		Elapsed  int64          `json:"elapsed_ms"`
	}
	var aux alias
	if err := jsonx.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.CallID = aux.CallID
	r.Content = aux.Content
	r.Metadata = aux.Metadata
	r.Elapsed = time.Duration(aux.Elapsed) * time.Millisecond
	r.Error = nil
	if msg := strings.TrimSpace(aux.Error); msg != "" {
		r.Error = errors.New(msg)
	}
	return nil
}

// ToolDefinition describes a tool for the oracle.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ToolMetadata contains tool information.
type ToolMetadata struct {
	Name      string   `json:"name"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags,omitempty"`
	ReadOnly  bool     `json:"read_only"`
	Dangerous bool     `json:"dangerous"`
}

// ParameterSchema defines tool parameters (JSON Schema format).
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property defines a single parameter.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Enum        []any  `json:"enum,omitempty"`
}
