package execution

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otto/internal/domain/ports"
	"otto/internal/infra/procexec"
	"otto/internal/infra/sandbox"
	"otto/internal/shared/config"
	"otto/internal/shared/logging"
)

func newPolicy(t *testing.T, programs []string) *sandbox.Policy {
	t.Helper()
	cfg := config.SandboxConfig{
		AllowedRoots:   []string{t.TempDir()},
		ActionTimeout:  10 * time.Second,
		MaxOutputBytes: config.DefaultMaxOutputBytes,
		MaxFileBytes:   config.DefaultMaxFileBytes,
	}
	if programs != nil {
		cfg.AllowedPrograms = programs
	} else {
		cfg.AllowedPrograms = config.DefaultAllowedPrograms()
	}
	cfg.BlockedSubstrings = config.DefaultBlockedSubstrings()
	policy, err := sandbox.NewPolicy(cfg)
	require.NoError(t, err)
	return policy
}

func call(name string, args map[string]any) ports.ToolCall {
	return ports.ToolCall{ID: "call-1", Name: name, Arguments: args}
}

func TestExecuteShellCapturesOutput(t *testing.T) {
	policy := newPolicy(t, nil)
	tool := NewExecuteShell(policy, procexec.NewRunner(logging.Nop()))

	result, err := tool.Execute(context.Background(), call("execute_shell", map[string]any{
		"command": "echo hello world",
	}))
	require.NoError(t, err)
	require.True(t, result.Success())
	assert.Equal(t, "hello world", result.Content)
	assert.Equal(t, 0, result.Metadata["exit_code"])
}

func TestExecuteShellRejectsUnlistedProgram(t *testing.T) {
	policy := newPolicy(t, []string{"echo"})
	tool := NewExecuteShell(policy, procexec.NewRunner(logging.Nop()))

	result, err := tool.Execute(context.Background(), call("execute_shell", map[string]any{
		"command": "python3 -c 'print(1)'",
	}))
	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.True(t, sandbox.IsViolation(result.Error))
}

func TestExecuteShellRejectsDestructiveCommand(t *testing.T) {
	policy := newPolicy(t, nil)
	tool := NewExecuteShell(policy, procexec.NewRunner(logging.Nop()))

	result, err := tool.Execute(context.Background(), call("execute_shell", map[string]any{
		"command": "find / -exec rm -rf / {} ;",
	}))
	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.True(t, sandbox.IsViolation(result.Error))
}

func TestExecuteShellDoesNotInterpretShellOperators(t *testing.T) {
	policy := newPolicy(t, nil)
	tool := NewExecuteShell(policy, procexec.NewRunner(logging.Nop()))

	// The redirect is just an argument to echo, not a shell operator.
	result, err := tool.Execute(context.Background(), call("execute_shell", map[string]any{
		"command": "echo one > two",
	}))
	require.NoError(t, err)
	require.True(t, result.Success())
	assert.Equal(t, "one > two", result.Content)
}

func TestExecuteShellTimeoutKillsProcess(t *testing.T) {
	policy, err := sandbox.NewPolicy(config.SandboxConfig{
		AllowedRoots:    []string{t.TempDir()},
		AllowedPrograms: []string{"sleep"},
		ActionTimeout:   200 * time.Millisecond,
		MaxOutputBytes:  config.DefaultMaxOutputBytes,
		MaxFileBytes:    config.DefaultMaxFileBytes,
	})
	require.NoError(t, err)
	tool := NewExecuteShell(policy, procexec.NewRunner(logging.Nop()))

	started := time.Now()
	result, err := tool.Execute(context.Background(), call("execute_shell", map[string]any{
		"command": "sleep 30",
	}))
	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.Equal(t, true, result.Metadata["timed_out"])
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestExecuteShellStdin(t *testing.T) {
	policy := newPolicy(t, nil)
	tool := NewExecuteShell(policy, procexec.NewRunner(logging.Nop()))

	result, err := tool.Execute(context.Background(), call("execute_shell", map[string]any{
		"command": "cat",
		"stdin":   "piped data",
	}))
	require.NoError(t, err)
	require.True(t, result.Success())
	assert.Equal(t, "piped data", result.Content)
}

func TestExecuteCodePython(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not installed")
	}
	policy := newPolicy(t, nil)
	tool := NewExecuteCode(policy, procexec.NewRunner(logging.Nop()))

	result, err := tool.Execute(context.Background(), call("execute_code", map[string]any{
		"language": "python",
		"code":     "print(6 * 7)",
	}))
	require.NoError(t, err)
	require.True(t, result.Success())
	assert.Equal(t, "42", result.Content)
}

func TestExecuteCodeUnsupportedLanguage(t *testing.T) {
	policy := newPolicy(t, nil)
	tool := NewExecuteCode(policy, procexec.NewRunner(logging.Nop()))

	result, err := tool.Execute(context.Background(), call("execute_code", map[string]any{
		"language": "cobol",
		"code":     "DISPLAY 'HI'.",
	}))
	require.NoError(t, err)
	assert.False(t, result.Success())
}

func TestExecuteCodeInterpreterMustBeAllowlisted(t *testing.T) {
	policy := newPolicy(t, []string{"echo"})
	tool := NewExecuteCode(policy, procexec.NewRunner(logging.Nop()))

	result, err := tool.Execute(context.Background(), call("execute_code", map[string]any{
		"language": "python",
		"code":     "print(1)",
	}))
	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.True(t, sandbox.IsViolation(result.Error))
}
