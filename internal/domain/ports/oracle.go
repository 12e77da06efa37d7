package ports

import (
	"context"

	"otto/internal/domain/task"
)

// OracleClient is the reasoning oracle at its interface: given the ordered
// transcript and the action catalogue, it returns a message and zero or more
// proposed actions. The provider wire formats are normalized by the
// implementation; the engine only ever sees OracleResponse.
type OracleClient interface {
	Complete(ctx context.Context, req OracleRequest) (*OracleResponse, error)

	// Model identifies the configured model, for logging only.
	Model() string
}

// OracleRequest carries one turn's input.
type OracleRequest struct {
	Turns []task.Turn
	Tools []ToolDefinition
}

// OracleResponse is the normalized sum of the provider-specific shapes:
// an assistant message plus proposed actions.
type OracleResponse struct {
	Message string
	Actions []ToolCall
}

// Control action names. These short-circuit the loop instead of dispatching.
const (
	ActionTaskComplete = "task_complete"
	ActionRequestHelp  = "request_help"
)
