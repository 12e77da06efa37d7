package audit

import (
	"context"
	"sync"
	"time"

	"otto/internal/domain/ports"
	"otto/internal/domain/task"
)

// Execution is one recorded tool call.
type Execution struct {
	TaskID  string
	Call    ports.ToolCall
	Result  *ports.ToolResult
	Elapsed time.Duration
}

// StatusChange is one recorded task status update.
type StatusChange struct {
	TaskID string
	Status task.Status
	Output string
}

// MemorySink keeps everything in memory. Intended for tests and for
// single-shot CLI runs where Postgres is not configured but the caller
// still wants the transcript afterwards.
type MemorySink struct {
	mu         sync.Mutex
	turns      []task.Turn
	executions []Execution
	statuses   []StatusChange
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

func (m *MemorySink) AppendTurn(_ context.Context, _, _ string, turn task.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
	return nil
}

func (m *MemorySink) RecordExecution(_ context.Context, taskID string, call ports.ToolCall, result *ports.ToolResult, elapsed time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions = append(m.executions, Execution{TaskID: taskID, Call: call, Result: result, Elapsed: elapsed})
	return nil
}

func (m *MemorySink) UpdateTaskStatus(_ context.Context, taskID string, status task.Status, output string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, StatusChange{TaskID: taskID, Status: status, Output: output})
	return nil
}

// Turns returns a copy of the recorded turns in append order.
func (m *MemorySink) Turns() []task.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]task.Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Executions returns a copy of the recorded tool executions.
func (m *MemorySink) Executions() []Execution {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Execution, len(m.executions))
	copy(out, m.executions)
	return out
}

// Statuses returns a copy of the recorded status updates.
func (m *MemorySink) Statuses() []StatusChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StatusChange, len(m.statuses))
	copy(out, m.statuses)
	return out
}
