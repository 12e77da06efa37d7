// Package secscan implements the security scanning actions: a dependency
// vulnerability scan that drives the per-ecosystem audit tools, and a
// content-based secret scan that needs no external binary.
package secscan

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

// auditCommands maps a manifest file to the scanner argv for its ecosystem.
var auditCommands = []struct {
	manifest string
	argv     []string
}{
	{"go.mod", []string{"govulncheck", "./..."}},
	{"requirements.txt", []string{"pip-audit", "--requirement", "requirements.txt"}},
	{"pyproject.toml", []string{"pip-audit"}},
	{"package.json", []string{"npm", "audit", "--audit-level", "low"}},
}

type scanDependencies struct {
	shared.BaseTool
	policy   *sandbox.Policy
	runner   *procexec.Runner
	lookPath func(string) (string, error)
}

// NewScanDependencies returns the scan_dependencies action.
func NewScanDependencies(policy *sandbox.Policy, runner *procexec.Runner) ports.ToolExecutor {
	return &scanDependencies{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "scan_dependencies",
				Description: "Scan project dependencies for known vulnerabilities using the ecosystem's audit tool.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"working_dir": {Type: "string", Description: "Project directory; defaults to the workspace root"},
					},
				},
			},
			ports.ToolMetadata{Name: "scan_dependencies", Category: "security", ReadOnly: true},
		),
		policy:   policy,
		runner:   runner,
		lookPath: exec.LookPath,
	}
}

func (t *scanDependencies) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
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

	for _, candidate := range auditCommands {
		if _, err := os.Stat(filepath.Join(resolvedDir, candidate.manifest)); err != nil {
			continue
		}
		if _, err := t.lookPath(candidate.argv[0]); err != nil {
			return shared.Failf(call, "found %s but %s is not installed", candidate.manifest, candidate.argv[0]), nil
		}
		res, runErr := shared.RunValidated(ctx, t.runner, t.policy, candidate.argv, dir, 0)
		if runErr != nil {
			return shared.Fail(call, runErr), nil
		}
		result := shared.ResultFrom(call, res, nil)
		result.Metadata["scanner"] = candidate.argv[0]
		return result, nil
	}
	return shared.Failf(call, "no recognized dependency manifest in %s", resolvedDir), nil
}
