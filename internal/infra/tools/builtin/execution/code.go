package execution

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/ksuid"

	"otto/internal/domain/ports"
	"otto/internal/infra/procexec"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
)

// languageRunners maps a language name to the interpreter argv prefix and
// scratch file extension. Compiled languages go through their run commands.
var languageRunners = map[string]struct {
	argv []string
	ext  string
}{
	"python":     {argv: []string{"python3"}, ext: ".py"},
	"javascript": {argv: []string{"node"}, ext: ".js"},
	"go":         {argv: []string{"go", "run"}, ext: ".go"},
}

type executeCode struct {
	shared.BaseTool
	policy *sandbox.Policy
	runner *procexec.Runner
}

// NewExecuteCode returns the execute_code action. The snippet is written to
// a scratch file inside the workspace, executed, then removed.
func NewExecuteCode(policy *sandbox.Policy, runner *procexec.Runner) ports.ToolExecutor {
	return &executeCode{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "execute_code",
				Description: "Run a short code snippet in python, javascript, or go and return its output.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"language": {Type: "string", Description: "Snippet language", Enum: []any{"python", "javascript", "go"}},
						"code":            {Type: "string", Description: "Source code to run"},
						"timeout_seconds": {Type: "integer", Description: "Soft timeout; clamped to the per-action ceiling"},
					},
					Required: []string{"language", "code"},
				},
			},
			ports.ToolMetadata{Name: "execute_code", Category: "execution", Dangerous: true},
		),
		policy: policy,
		runner: runner,
	}
}

func (t *executeCode) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	language, err := shared.StringArg(call.Arguments, "language")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	code, err := shared.StringArg(call.Arguments, "code")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	spec, ok := languageRunners[language]
	if !ok {
		return shared.Failf(call, "unsupported language %q", language), nil
	}
	if err := t.policy.CheckWriteSize(len(code)); err != nil {
		return shared.Fail(call, err), nil
	}

	roots := t.policy.Roots()
	if len(roots) == 0 {
		return shared.Failf(call, "no workspace root configured"), nil
	}
	scratch := filepath.Join(roots[0], fmt.Sprintf(".otto-snippet-%s%s", ksuid.New().String(), spec.ext))
	if err := os.WriteFile(scratch, []byte(code), 0o644); err != nil {
		return shared.Fail(call, err), nil
	}
	defer os.Remove(scratch)

	argv := append(append([]string{}, spec.argv...), scratch)
	if err := t.policy.ValidateCommand(argv); err != nil {
		return shared.Fail(call, err), nil
	}

	timeout := time.Duration(shared.OptionalInt(call.Arguments, "timeout_seconds", 0)) * time.Second
	res, runErr := t.runner.Run(ctx, procexec.Request{
		Argv:           argv,
		Dir:            roots[0],
		Timeout:        t.policy.ClampTimeout(timeout),
		MaxStreamBytes: t.policy.MaxOutputBytes(),
	})
	return shared.ResultFrom(call, res, runErr), nil
}
