// Package search implements code search over the workspace. It shells out to
// ripgrep when available and falls back to plain grep, both through the
// bounded process runner.
package search

import (
	"context"
	"os/exec"
	"strconv"

	"otto/internal/domain/ports"
	"otto/internal/infra/procexec"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
)

const defaultMaxMatches = 100

type searchCode struct {
	shared.BaseTool
	policy *sandbox.Policy
	runner *procexec.Runner

	// lookPath is swappable in tests.
	lookPath func(string) (string, error)
}

// NewSearchCode returns the search_code action.
func NewSearchCode(policy *sandbox.Policy, runner *procexec.Runner) ports.ToolExecutor {
	return &searchCode{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "search_code",
				Description: "Search file contents with a regular expression. Returns matching lines with file and line number.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"pattern":          {Type: "string", Description: "Regular expression to search for"},
						"path":             {Type: "string", Description: "Directory to search; defaults to the workspace root"},
						"case_insensitive": {Type: "boolean", Description: "Ignore case"},
						"max_matches":      {Type: "integer", Description: "Cap on returned matches (default 100)"},
					},
					Required: []string{"pattern"},
				},
			},
			ports.ToolMetadata{Name: "search_code", Category: "filesystem", ReadOnly: true},
		),
		policy:   policy,
		runner:   runner,
		lookPath: exec.LookPath,
	}
}

func (t *searchCode) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	pattern, err := shared.StringArg(call.Arguments, "pattern")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	dir := shared.OptionalString(call.Arguments, "path", "")
	insensitive := shared.OptionalBool(call.Arguments, "case_insensitive", false)
	maxMatches := shared.OptionalInt(call.Arguments, "max_matches", defaultMaxMatches)
	if maxMatches <= 0 {
		maxMatches = defaultMaxMatches
	}

	argv := t.buildArgv(pattern, insensitive, maxMatches)
	res, err := shared.RunValidated(ctx, t.runner, t.policy, argv, dir, 0)
	if err != nil {
		return shared.Fail(call, err), nil
	}

	// grep and rg exit 1 when nothing matched; that is a valid observation.
	if res.ExitCode == 1 && res.Stderr == "" {
		return shared.Succeed(call, "no matches"), nil
	}
	out, _ := t.policy.TruncateOutput(shared.FormatResult(res))
	return shared.Succeed(call, out), nil
}

func (t *searchCode) buildArgv(pattern string, insensitive bool, maxMatches int) []string {
	if _, err := t.lookPath("rg"); err == nil {
		argv := []string{"rg", "--line-number", "--no-heading", "--max-count", strconv.Itoa(maxMatches)}
		if insensitive {
			argv = append(argv, "-i")
		}
		return append(argv, "--", pattern, ".")
	}
	argv := []string{"grep", "-rn", "--exclude-dir=.git", "--exclude-dir=node_modules", "-m", strconv.Itoa(maxMatches)}
	if insensitive {
		argv = append(argv, "-i")
	}
	return append(argv, "--", pattern, ".")
}
