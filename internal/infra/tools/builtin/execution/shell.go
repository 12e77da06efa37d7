// Package execution implements the process-spawning actions. Commands are
// tokenized and validated, never handed to a shell, so pipes, redirects and
// substitutions in oracle output have no effect.
package execution

import (
	"context"
	"time"

	"otto/internal/domain/ports"
	"otto/internal/infra/procexec"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
)

type executeShell struct {
	shared.BaseTool
	policy *sandbox.Policy
	runner *procexec.Runner
}

// NewExecuteShell returns the execute_shell action.
func NewExecuteShell(policy *sandbox.Policy, runner *procexec.Runner) ports.ToolExecutor {
	return &executeShell{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "execute_shell",
				Description: "Run an allowlisted program in the workspace. The command is split into argv and executed directly; shell operators like | and > are not interpreted.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"command":         {Type: "string", Description: "Command line, e.g. 'go test ./...'"},
						"working_dir":     {Type: "string", Description: "Directory to run in; defaults to the workspace root"},
						"timeout_seconds": {Type: "integer", Description: "Soft timeout; clamped to the per-action ceiling"},
						"stdin":           {Type: "string", Description: "Data piped to the process on stdin"},
					},
					Required: []string{"command"},
				},
			},
			ports.ToolMetadata{Name: "execute_shell", Category: "execution", Dangerous: true},
		),
		policy: policy,
		runner: runner,
	}
}

func (t *executeShell) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	command, err := shared.StringArg(call.Arguments, "command")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	argv, err := sandbox.SplitCommand(command)
	if err != nil {
		return shared.Fail(call, err), nil
	}
	if err := t.policy.ValidateCommand(argv); err != nil {
		return shared.Fail(call, err), nil
	}

	dir := shared.OptionalString(call.Arguments, "working_dir", "")
	resolvedDir := ""
	if dir != "" {
		resolvedDir, err = t.policy.ResolvePath(dir)
		if err != nil {
			return shared.Fail(call, err), nil
		}
	} else if roots := t.policy.Roots(); len(roots) > 0 {
		resolvedDir = roots[0]
	}

	timeout := time.Duration(shared.OptionalInt(call.Arguments, "timeout_seconds", 0)) * time.Second
	var stdin []byte
	if s := shared.OptionalString(call.Arguments, "stdin", ""); s != "" {
		stdin = []byte(s)
	}

	res, runErr := t.runner.Run(ctx, procexec.Request{
		Argv:           argv,
		Dir:            resolvedDir,
		Stdin:          stdin,
		Timeout:        t.policy.ClampTimeout(timeout),
		MaxStreamBytes: t.policy.MaxOutputBytes(),
	})
	return shared.ResultFrom(call, res, runErr), nil
}
