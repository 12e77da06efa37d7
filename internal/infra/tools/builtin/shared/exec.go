package shared

import (
	"context"
	"fmt"
	"strings"
	"time"

	"otto/internal/domain/ports"
	"otto/internal/infra/procexec"
	"otto/internal/infra/sandbox"
)

// RunValidated checks argv against the command policy, resolves the working
// directory, then executes under the policy's ceiling and stream caps. A
// non-zero timeout is clamped to the ceiling; zero means the full ceiling.
func RunValidated(ctx context.Context, runner *procexec.Runner, policy *sandbox.Policy, argv []string, dir string, timeout time.Duration) (*procexec.Result, error) {
	if err := policy.ValidateCommand(argv); err != nil {
		return nil, err
	}
	resolvedDir := ""
	if dir != "" {
		resolved, err := policy.ResolvePath(dir)
		if err != nil {
			return nil, err
		}
		resolvedDir = resolved
	} else {
		roots := policy.Roots()
		if len(roots) > 0 {
			resolvedDir = roots[0]
		}
	}
	return runner.Run(ctx, procexec.Request{
		Argv:           argv,
		Dir:            resolvedDir,
		Timeout:        policy.ClampTimeout(timeout),
		MaxStreamBytes: policy.MaxOutputBytes(),
	})
}

// ResultFrom folds a process result and its error into one tool result.
// Partial output survives timeouts so the oracle can see how far the
// process got.
func ResultFrom(call ports.ToolCall, res *procexec.Result, err error) *ports.ToolResult {
	if res == nil {
		return Fail(call, err)
	}
	result := Succeed(call, FormatResult(res))
	result.Metadata = map[string]any{"exit_code": res.ExitCode, "timed_out": res.TimedOut}
	switch {
	case err != nil:
		result.Error = err
	case res.ExitCode != 0:
		result.Error = fmt.Errorf("process exited with code %d", res.ExitCode)
	}
	return result
}

// FormatResult renders a process result as a single observation string.
func FormatResult(res *procexec.Result) string {
	var b strings.Builder
	stdout := strings.TrimRight(res.Stdout, "\n")
	if stdout != "" {
		b.WriteString(stdout)
	}
	stderr := strings.TrimRight(res.Stderr, "\n")
	if stderr != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("stderr:\n")
		b.WriteString(stderr)
	}
	if res.TimedOut {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("(process timed out and was killed)")
	}
	if res.ExitCode != 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "exit code: %d", res.ExitCode)
	}
	if b.Len() == 0 {
		return "(no output)"
	}
	return b.String()
}
