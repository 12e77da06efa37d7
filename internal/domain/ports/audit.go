package ports

import (
	"context"
	"time"

	"otto/internal/domain/task"
)

// AuditSink records transcript turns and action executions. Every method is a
// pure side-effect sink: the engine logs and swallows any error, so a failing
// sink can never abort a run. Implementations must be safe for concurrent use
// across runs.
type AuditSink interface {
	AppendTurn(ctx context.Context, taskID, runID string, turn task.Turn) error
	RecordExecution(ctx context.Context, taskID string, call ToolCall, result *ToolResult, elapsed time.Duration) error
	UpdateTaskStatus(ctx context.Context, taskID string, status task.Status, output string) error
}
