// Package audit provides audit sink implementations. The Postgres-backed
// sink lives in the postgres subpackage; this package holds the no-op sink
// used when no DSN is configured and when tests do not care about auditing.
package audit

import (
	"context"
	"time"

	"otto/internal/domain/ports"
	"otto/internal/domain/task"
)

type nopSink struct{}

// Nop returns a sink that discards everything.
func Nop() ports.AuditSink { return nopSink{} }

func (nopSink) AppendTurn(context.Context, string, string, task.Turn) error { return nil }

func (nopSink) RecordExecution(context.Context, string, ports.ToolCall, *ports.ToolResult, time.Duration) error {
	return nil
}

func (nopSink) UpdateTaskStatus(context.Context, string, task.Status, string) error { return nil }
