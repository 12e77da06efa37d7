package dockerops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otto/internal/domain/ports"
	"otto/internal/infra/procexec"
	"otto/internal/infra/sandbox"
	"otto/internal/shared/config"
	"otto/internal/shared/logging"
)

func newPolicy(t *testing.T, root string) *sandbox.Policy {
	t.Helper()
	policy, err := sandbox.NewPolicy(config.SandboxConfig{
		AllowedRoots:    []string{root},
		AllowedPrograms: []string{"docker"},
		ActionTimeout:   config.DefaultActionCeiling,
		MaxOutputBytes:  config.DefaultMaxOutputBytes,
		MaxFileBytes:    config.DefaultMaxFileBytes,
	})
	require.NoError(t, err)
	return policy
}

func call(name string, args map[string]any) ports.ToolCall {
	return ports.ToolCall{ID: "call-1", Name: name, Arguments: args}
}

func TestManageContainerRequiresArguments(t *testing.T) {
	tool := NewManageContainer(newPolicy(t, t.TempDir()), procexec.NewRunner(logging.Nop()))

	for _, op := range []string{"stop", "remove", "logs"} {
		result, err := tool.Execute(context.Background(), call("manage_container", map[string]any{"operation": op}))
		require.NoError(t, err)
		assert.False(t, result.Success(), "operation %s must require a name", op)
	}

	result, err := tool.Execute(context.Background(), call("manage_container", map[string]any{"operation": "run"}))
	require.NoError(t, err)
	assert.False(t, result.Success())

	result, err = tool.Execute(context.Background(), call("manage_container", map[string]any{"operation": "teleport"}))
	require.NoError(t, err)
	assert.False(t, result.Success())
}

func TestManageContainerBuildContextStaysInWorkspace(t *testing.T) {
	tool := NewManageContainer(newPolicy(t, t.TempDir()), procexec.NewRunner(logging.Nop()))

	result, err := tool.Execute(context.Background(), call("manage_container", map[string]any{
		"operation": "build", "context": "../../outside",
	}))
	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.True(t, sandbox.IsViolation(result.Error))
}

type scriptedOracle struct {
	response *ports.OracleResponse
	lastReq  ports.OracleRequest
}

func (o *scriptedOracle) Complete(_ context.Context, req ports.OracleRequest) (*ports.OracleResponse, error) {
	o.lastReq = req
	return o.response, nil
}

func (o *scriptedOracle) Model() string { return "scripted" }

func TestGenerateDockerfileWritesOutput(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module demo\n\ngo 1.24\n"), 0o644))
	policy := newPolicy(t, root)
	oracle := &scriptedOracle{response: &ports.OracleResponse{
		Message: "```dockerfile\nFROM golang:1.24 AS build\n```",
	}}
	tool := NewGenerateDockerfile(policy, oracle)

	result, err := tool.Execute(context.Background(), call("generate_dockerfile", nil))
	require.NoError(t, err)
	require.True(t, result.Success())

	data, err := os.ReadFile(filepath.Join(root, "Dockerfile"))
	require.NoError(t, err)
	assert.Equal(t, "FROM golang:1.24 AS build\n", string(data))
	assert.Contains(t, oracle.lastReq.Turns[1].Content, "module demo")
}

func TestGenerateDockerfileEmptyResponse(t *testing.T) {
	policy := newPolicy(t, t.TempDir())
	oracle := &scriptedOracle{response: &ports.OracleResponse{Message: "   "}}
	tool := NewGenerateDockerfile(policy, oracle)

	result, err := tool.Execute(context.Background(), call("generate_dockerfile", nil))
	require.NoError(t, err)
	assert.False(t, result.Success())
}
