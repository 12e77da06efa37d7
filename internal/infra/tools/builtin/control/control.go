// Package control holds the two loop-control actions. They carry no behavior
// of their own: the engine intercepts them by name before dispatch, and their
// Execute methods only echo the argument back so an audit trail of the call
// still reads sensibly if one ever reaches the dispatcher.
package control

import (
	"context"

	"otto/internal/domain/ports"
	"otto/internal/infra/tools/builtin/shared"
)

type signalTool struct {
	shared.BaseTool
	argKey string
}

// NewTaskComplete returns the task_complete action.
func NewTaskComplete() ports.ToolExecutor {
	return &signalTool{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        ports.ActionTaskComplete,
				Description: "Declare the task finished. Call this exactly once, when the objective is fully met, with a summary of what was done.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"summary": {Type: "string", Description: "What was accomplished and how"},
					},
					Required: []string{"summary"},
				},
			},
			ports.ToolMetadata{Name: ports.ActionTaskComplete, Category: "control", ReadOnly: true},
		),
		argKey: "summary",
	}
}

// NewRequestHelp returns the request_help action.
func NewRequestHelp() ports.ToolExecutor {
	return &signalTool{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        ports.ActionRequestHelp,
				Description: "Pause the task and ask the operator for help. Use when blocked on something only a human can resolve, such as credentials or an ambiguous objective.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"description": {Type: "string", Description: "What is blocking progress and what is needed"},
					},
					Required: []string{"description"},
				},
			},
			ports.ToolMetadata{Name: ports.ActionRequestHelp, Category: "control", ReadOnly: true},
		),
		argKey: "description",
	}
}

func (t *signalTool) Execute(_ context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	text, err := shared.StringArg(call.Arguments, t.argKey)
	if err != nil {
		return shared.Fail(call, err), nil
	}
	return shared.Succeed(call, text), nil
}
