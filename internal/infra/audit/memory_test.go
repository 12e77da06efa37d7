package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otto/internal/domain/ports"
	"otto/internal/domain/task"
)

func TestMemorySinkRecordsInOrder(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, sink.AppendTurn(ctx, "task-1", "run-1", task.Turn{Seq: i, Role: task.RoleOracle}))
	}
	require.NoError(t, sink.RecordExecution(ctx, "task-1",
		ports.ToolCall{ID: "call-1", Name: "read_file"},
		&ports.ToolResult{CallID: "call-1", Content: "ok"},
		25*time.Millisecond))
	require.NoError(t, sink.UpdateTaskStatus(ctx, "task-1", task.StatusCompleted, "done"))

	turns := sink.Turns()
	require.Len(t, turns, 3)
	for i, turn := range turns {
		assert.Equal(t, i, turn.Seq)
	}

	execs := sink.Executions()
	require.Len(t, execs, 1)
	assert.Equal(t, "read_file", execs[0].Call.Name)
	assert.Equal(t, 25*time.Millisecond, execs[0].Elapsed)

	statuses := sink.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, task.StatusCompleted, statuses[0].Status)
}

func TestMemorySinkConcurrentAppend(t *testing.T) {
	sink := NewMemorySink()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			_ = sink.AppendTurn(context.Background(), "task-1", "run-1", task.Turn{Seq: seq})
		}(i)
	}
	wg.Wait()
	assert.Len(t, sink.Turns(), 20)
}

func TestNopSinkAcceptsEverything(t *testing.T) {
	sink := Nop()
	ctx := context.Background()
	assert.NoError(t, sink.AppendTurn(ctx, "t", "r", task.Turn{}))
	assert.NoError(t, sink.RecordExecution(ctx, "t", ports.ToolCall{}, nil, 0))
	assert.NoError(t, sink.UpdateTaskStatus(ctx, "t", task.StatusFailed, ""))
}
