// Package quality implements the lint, format and test actions. Each action
// picks the first available toolchain command for the detected (or given)
// language and runs it under the process bounds.
package quality

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"otto/internal/domain/ports"
	"otto/internal/infra/procexec"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
)

// commandTable lists candidate argvs per language, preferred first. The
// first argv whose program is installed wins.
type commandTable map[string][][]string

var lintCommands = commandTable{
	"go":         {{"golangci-lint", "run", "./..."}, {"go", "vet", "./..."}},
	"python":     {{"ruff", "check", "."}},
	"javascript": {{"eslint", "."}, {"npx", "eslint", "."}},
}

var formatCommands = commandTable{
	"go":         {{"gofmt", "-l", "-w", "."}},
	"python":     {{"ruff", "format", "."}, {"black", "."}},
	"javascript": {{"prettier", "--write", "."}, {"npx", "prettier", "--write", "."}},
}

var testCommands = commandTable{
	"go":         {{"go", "test", "./..."}},
	"python":     {{"pytest", "-q"}},
	"javascript": {{"npm", "test", "--silent"}},
}

// detectLanguage guesses the project language from its manifests.
func detectLanguage(dir string) string {
	checks := []struct {
		file     string
		language string
	}{
		{"go.mod", "go"},
		{"pyproject.toml", "python"},
		{"requirements.txt", "python"},
		{"package.json", "javascript"},
	}
	for _, check := range checks {
		if _, err := os.Stat(filepath.Join(dir, check.file)); err == nil {
			return check.language
		}
	}
	return ""
}

type qualityTool struct {
	shared.BaseTool
	policy   *sandbox.Policy
	runner   *procexec.Runner
	table    commandTable
	lookPath func(string) (string, error)
}

func newQualityTool(name, description string, table commandTable, policy *sandbox.Policy, runner *procexec.Runner, readOnly bool) *qualityTool {
	return &qualityTool{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        name,
				Description: description,
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"working_dir": {Type: "string", Description: "Project directory; defaults to the workspace root"},
						"language":    {Type: "string", Description: "Project language; auto-detected when omitted", Enum: []any{"go", "python", "javascript"}},
					},
				},
			},
			ports.ToolMetadata{Name: name, Category: "quality", ReadOnly: readOnly},
		),
		policy:   policy,
		runner:   runner,
		table:    table,
		lookPath: exec.LookPath,
	}
}

// NewRunLint returns the run_lint action.
func NewRunLint(policy *sandbox.Policy, runner *procexec.Runner) ports.ToolExecutor {
	return newQualityTool("run_lint",
		"Run the project's linter and report diagnostics.",
		lintCommands, policy, runner, true)
}

// NewRunFormatter returns the run_formatter action.
func NewRunFormatter(policy *sandbox.Policy, runner *procexec.Runner) ports.ToolExecutor {
	return newQualityTool("run_formatter",
		"Run the project's code formatter in place.",
		formatCommands, policy, runner, false)
}

// NewRunTests returns the run_tests action.
func NewRunTests(policy *sandbox.Policy, runner *procexec.Runner) ports.ToolExecutor {
	return newQualityTool("run_tests",
		"Run the project's test suite. A failing suite comes back as an error with the full output attached.",
		testCommands, policy, runner, false)
}

func (t *qualityTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	dir := shared.OptionalString(call.Arguments, "working_dir", "")
	resolvedDir := dir
	if resolvedDir == "" {
		if roots := t.policy.Roots(); len(roots) > 0 {
			resolvedDir = roots[0]
		}
	} else {
		resolved, err := t.policy.ResolvePath(dir)
		if err != nil {
			return shared.Fail(call, err), nil
		}
		resolvedDir = resolved
	}

	language := shared.OptionalString(call.Arguments, "language", "")
	if language == "" {
		language = detectLanguage(resolvedDir)
	}
	if language == "" {
		return shared.Failf(call, "cannot detect project language; pass 'language'"), nil
	}
	candidates, ok := t.table[language]
	if !ok {
		return shared.Failf(call, "unsupported language %q", language), nil
	}

	argv := t.pickCommand(candidates)
	if argv == nil {
		return shared.Failf(call, "no %s toolchain installed for %s", t.Definition().Name, language), nil
	}

	res, runErr := shared.RunValidated(ctx, t.runner, t.policy, argv, dir, 0)
	if runErr != nil {
		return shared.Fail(call, runErr), nil
	}
	result := shared.ResultFrom(call, res, nil)
	result.Metadata["command"] = argv[0]
	return result, nil
}

func (t *qualityTool) pickCommand(candidates [][]string) []string {
	for _, argv := range candidates {
		if _, err := t.lookPath(argv[0]); err == nil {
			return argv
		}
	}
	return nil
}
