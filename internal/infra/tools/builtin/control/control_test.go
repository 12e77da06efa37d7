package control

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otto/internal/domain/ports"
)

func TestTaskCompleteEchoesSummary(t *testing.T) {
	tool := NewTaskComplete()
	assert.Equal(t, "task_complete", tool.Definition().Name)
	assert.Equal(t, "control", tool.Metadata().Category)

	result, err := tool.Execute(context.Background(), ports.ToolCall{
		ID:        "call-1",
		Arguments: map[string]any{"summary": "renamed the package and fixed imports"},
	})
	require.NoError(t, err)
	require.True(t, result.Success())
	assert.Equal(t, "renamed the package and fixed imports", result.Content)
}

func TestRequestHelpRequiresDescription(t *testing.T) {
	tool := NewRequestHelp()
	assert.Equal(t, "request_help", tool.Definition().Name)

	result, err := tool.Execute(context.Background(), ports.ToolCall{ID: "call-1", Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.False(t, result.Success())
}
