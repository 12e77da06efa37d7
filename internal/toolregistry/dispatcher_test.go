package toolregistry

import (
	"context"
	"errors"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otto/internal/domain/ports"
	"otto/internal/infra/sandbox"
	"otto/internal/shared/config"
)

func testPolicy(t *testing.T, timeout time.Duration) *sandbox.Policy {
	t.Helper()
	cfg := config.SandboxConfig{
		AllowedRoots:   []string{t.TempDir()},
		ActionTimeout:  timeout,
		MaxOutputBytes: config.DefaultMaxOutputBytes,
		MaxFileBytes:   config.DefaultMaxFileBytes,
	}
	policy, err := sandbox.NewPolicy(cfg)
	require.NoError(t, err)
	return policy
}

func TestDispatchSuccess(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFakeTool("read_file", "filesystem", true)))
	d := NewDispatcher(r, testPolicy(t, time.Minute))

	result := d.Dispatch(context.Background(), ports.ToolCall{ID: "c1", Name: "read_file"})
	require.NotNil(t, result)
	assert.True(t, result.Success())
	assert.Equal(t, "c1", result.CallID)
	assert.Equal(t, "ok", result.Content)
	assert.Greater(t, result.Elapsed, time.Duration(0))
}

func TestDispatchUnknownToolFailsSoft(t *testing.T) {
	d := NewDispatcher(NewRegistry(), testPolicy(t, time.Minute))
	result := d.Dispatch(context.Background(), ports.ToolCall{ID: "c1", Name: "no_such_tool"})
	require.NotNil(t, result)
	assert.False(t, result.Success())
	assert.Contains(t, result.Error.Error(), "not found")
}

func TestDispatchRejectsMissingRequiredArgument(t *testing.T) {
	tool := newFakeTool("write_file", "filesystem", false)
	tool.def.Parameters = ports.ParameterSchema{
		Type: "object",
		Properties: map[string]ports.Property{
			"path":    {Type: "string"},
			"content": {Type: "string"},
		},
		Required: []string{"path", "content"},
	}
	r := NewRegistry()
	require.NoError(t, r.Register(tool))
	d := NewDispatcher(r, testPolicy(t, time.Minute))

	result := d.Dispatch(context.Background(), ports.ToolCall{
		ID:        "c1",
		Name:      "write_file",
		Arguments: map[string]any{"path": "a.txt"},
	})
	require.NotNil(t, result)
	assert.False(t, result.Success())
	assert.True(t, sandbox.IsValidation(result.Error))
}

func TestDispatchRejectsWrongArgumentType(t *testing.T) {
	tool := newFakeTool("read_file", "filesystem", true)
	tool.def.Parameters = ports.ParameterSchema{
		Type:       "object",
		Properties: map[string]ports.Property{"offset": {Type: "integer"}},
	}
	r := NewRegistry()
	require.NoError(t, r.Register(tool))
	d := NewDispatcher(r, testPolicy(t, time.Minute))

	result := d.Dispatch(context.Background(), ports.ToolCall{
		ID:        "c1",
		Name:      "read_file",
		Arguments: map[string]any{"offset": "ten"},
	})
	assert.False(t, result.Success())
	assert.True(t, sandbox.IsValidation(result.Error))
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	tool := newFakeTool("execute_shell", "execution", false)
	tool.execute = func(context.Context, ports.ToolCall) (*ports.ToolResult, error) {
		panic("boom")
	}
	r := NewRegistry()
	require.NoError(t, r.Register(tool))
	d := NewDispatcher(r, testPolicy(t, time.Minute))

	result := d.Dispatch(context.Background(), ports.ToolCall{ID: "c1", Name: "execute_shell"})
	require.NotNil(t, result)
	assert.False(t, result.Success())
	assert.Contains(t, result.Error.Error(), "panicked")
}

func TestDispatchAppliesActionCeiling(t *testing.T) {
	tool := newFakeTool("execute_shell", "execution", false)
	tool.execute = func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return &ports.ToolResult{CallID: call.ID, Content: "too late"}, nil
		}
	}
	r := NewRegistry()
	require.NoError(t, r.Register(tool))
	d := NewDispatcher(r, testPolicy(t, 50*time.Millisecond))

	started := time.Now()
	result := d.Dispatch(context.Background(), ports.ToolCall{ID: "c1", Name: "execute_shell"})
	assert.False(t, result.Success())
	assert.True(t, errors.Is(result.Error, context.DeadlineExceeded))
	assert.Less(t, time.Since(started), 2*time.Second)
}

func TestDispatchToolErrorsStayInResult(t *testing.T) {
	tool := newFakeTool("read_file", "filesystem", true)
	tool.execute = func(_ context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
		return &ports.ToolResult{CallID: call.ID, Error: errors.New("file not found")}, nil
	}
	r := NewRegistry()
	require.NoError(t, r.Register(tool))
	d := NewDispatcher(r, testPolicy(t, time.Minute))

	result := d.Dispatch(context.Background(), ports.ToolCall{ID: "c1", Name: "read_file"})
	assert.False(t, result.Success())
	assert.Contains(t, result.Error.Error(), "file not found")
}

func TestDispatchRecordsMetrics(t *testing.T) {
	reg := promclient.NewRegistry()
	metrics, err := NewMetrics("test_dispatcher", reg)
	require.NoError(t, err)

	r := NewRegistry()
	require.NoError(t, r.Register(newFakeTool("read_file", "filesystem", true)))
	d := NewDispatcher(r, testPolicy(t, time.Minute), WithMetrics(metrics))

	d.Dispatch(context.Background(), ports.ToolCall{ID: "c1", Name: "read_file"})
	d.Dispatch(context.Background(), ports.ToolCall{ID: "c2", Name: "missing"})

	ok := testutil.ToFloat64(metrics.executionsTotal.WithLabelValues("read_file", "ok"))
	assert.Equal(t, 1.0, ok)
	unknown := testutil.ToFloat64(metrics.executionsTotal.WithLabelValues("missing", "unknown_tool"))
	assert.Equal(t, 1.0, unknown)
}

func TestValidateArgumentsEnum(t *testing.T) {
	def := ports.ToolDefinition{
		Name: "git_branch",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"operation": {Type: "string", Enum: []any{"list", "create", "switch"}},
			},
			Required: []string{"operation"},
		},
	}
	assert.NoError(t, ValidateArguments(def, map[string]any{"operation": "create"}))
	assert.Error(t, ValidateArguments(def, map[string]any{"operation": "delete"}))
	assert.Error(t, ValidateArguments(def, map[string]any{"operation": nil}))
}
