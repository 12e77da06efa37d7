// Package gitops implements the version-control actions. Everything shells
// out to git (and gh for pull requests) through the bounded runner, so the
// command allowlist and blocked substrings apply here too.
package gitops

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"otto/internal/domain/ports"
	"otto/internal/infra/procexec"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
)

// gitRunner is the shared base for the git actions.
type gitRunner struct {
	policy *sandbox.Policy
	runner *procexec.Runner
}

func (g *gitRunner) run(ctx context.Context, call ports.ToolCall, dir string, args ...string) (*ports.ToolResult, error) {
	argv := append([]string{"git"}, args...)
	res, err := shared.RunValidated(ctx, g.runner, g.policy, argv, dir, 0)
	if err != nil {
		return shared.Fail(call, err), nil
	}
	out, _ := g.policy.TruncateOutput(shared.FormatResult(res))
	result := shared.Succeed(call, out)
	result.Metadata = map[string]any{"exit_code": res.ExitCode}
	if res.ExitCode != 0 {
		result.Error = fmt.Errorf("git %s exited with code %d", args[0], res.ExitCode)
	}
	return result, nil
}

type gitStatus struct {
	shared.BaseTool
	gitRunner
}

// NewGitStatus returns the git_status action.
func NewGitStatus(policy *sandbox.Policy, runner *procexec.Runner) ports.ToolExecutor {
	return &gitStatus{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "git_status",
				Description: "Show working tree status including branch and upstream divergence.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"working_dir": {Type: "string", Description: "Repository directory; defaults to the workspace root"},
					},
				},
			},
			ports.ToolMetadata{Name: "git_status", Category: "git", ReadOnly: true},
		),
		gitRunner: gitRunner{policy: policy, runner: runner},
	}
}

func (t *gitStatus) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	dir := shared.OptionalString(call.Arguments, "working_dir", "")
	return t.run(ctx, call, dir, "status", "--short", "--branch")
}

type gitDiff struct {
	shared.BaseTool
	gitRunner
}

// NewGitDiff returns the git_diff action.
func NewGitDiff(policy *sandbox.Policy, runner *procexec.Runner) ports.ToolExecutor {
	return &gitDiff{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "git_diff",
				Description: "Show unstaged changes, or staged changes with staged=true. An optional path restricts the diff.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"working_dir": {Type: "string", Description: "Repository directory"},
						"staged":      {Type: "boolean", Description: "Diff the index instead of the working tree"},
						"path":        {Type: "string", Description: "Limit the diff to this path"},
					},
				},
			},
			ports.ToolMetadata{Name: "git_diff", Category: "git", ReadOnly: true},
		),
		gitRunner: gitRunner{policy: policy, runner: runner},
	}
}

func (t *gitDiff) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	dir := shared.OptionalString(call.Arguments, "working_dir", "")
	args := []string{"diff"}
	if shared.OptionalBool(call.Arguments, "staged", false) {
		args = append(args, "--cached")
	}
	if path := shared.OptionalString(call.Arguments, "path", ""); path != "" {
		args = append(args, "--", path)
	}
	return t.run(ctx, call, dir, args...)
}

type gitLog struct {
	shared.BaseTool
	gitRunner
}

// NewGitLog returns the git_log action.
func NewGitLog(policy *sandbox.Policy, runner *procexec.Runner) ports.ToolExecutor {
	return &gitLog{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "git_log",
				Description: "Show recent commits, newest first.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"working_dir": {Type: "string", Description: "Repository directory"},
						"count":       {Type: "integer", Description: "Number of commits (default 10, max 100)"},
					},
				},
			},
			ports.ToolMetadata{Name: "git_log", Category: "git", ReadOnly: true},
		),
		gitRunner: gitRunner{policy: policy, runner: runner},
	}
}

func (t *gitLog) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	dir := shared.OptionalString(call.Arguments, "working_dir", "")
	count := shared.OptionalInt(call.Arguments, "count", 10)
	if count < 1 {
		count = 10
	}
	if count > 100 {
		count = 100
	}
	return t.run(ctx, call, dir, "log", "--oneline", "--decorate", "-n", strconv.Itoa(count))
}

type gitBranch struct {
	shared.BaseTool
	gitRunner
}

// NewGitBranch returns the git_branch action.
func NewGitBranch(policy *sandbox.Policy, runner *procexec.Runner) ports.ToolExecutor {
	return &gitBranch{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "git_branch",
				Description: "List branches, or create/switch to a branch.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"working_dir": {Type: "string", Description: "Repository directory"},
						"operation":   {Type: "string", Description: "What to do", Enum: []any{"list", "create", "switch"}},
						"name":        {Type: "string", Description: "Branch name for create/switch"},
					},
					Required: []string{"operation"},
				},
			},
			ports.ToolMetadata{Name: "git_branch", Category: "git"},
		),
		gitRunner: gitRunner{policy: policy, runner: runner},
	}
}

func (t *gitBranch) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	dir := shared.OptionalString(call.Arguments, "working_dir", "")
	operation, err := shared.StringArg(call.Arguments, "operation")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	name := shared.OptionalString(call.Arguments, "name", "")
	switch operation {
	case "list":
		return t.run(ctx, call, dir, "branch", "--all", "--verbose")
	case "create":
		if name == "" {
			return shared.Failf(call, "'name' is required for create"), nil
		}
		return t.run(ctx, call, dir, "switch", "--create", name)
	case "switch":
		if name == "" {
			return shared.Failf(call, "'name' is required for switch"), nil
		}
		return t.run(ctx, call, dir, "switch", name)
	default:
		return shared.Failf(call, "unknown operation %q", operation), nil
	}
}

type gitCommit struct {
	shared.BaseTool
	gitRunner
}

// NewGitCommit returns the git_commit action. It stages the given paths
// (or everything) and commits.
func NewGitCommit(policy *sandbox.Policy, runner *procexec.Runner) ports.ToolExecutor {
	return &gitCommit{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "git_commit",
				Description: "Stage files and create a commit with the given message.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"working_dir": {Type: "string", Description: "Repository directory"},
						"message":     {Type: "string", Description: "Commit message"},
						"paths":       {Type: "array", Description: "Paths to stage; omit to stage all changes"},
					},
					Required: []string{"message"},
				},
			},
			ports.ToolMetadata{Name: "git_commit", Category: "git"},
		),
		gitRunner: gitRunner{policy: policy, runner: runner},
	}
}

func (t *gitCommit) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	dir := shared.OptionalString(call.Arguments, "working_dir", "")
	message, err := shared.StringArg(call.Arguments, "message")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	if strings.TrimSpace(message) == "" {
		return shared.Failf(call, "commit message cannot be empty"), nil
	}

	addArgs := []string{"add", "--"}
	if paths := shared.StringSlice(call.Arguments, "paths"); len(paths) > 0 {
		addArgs = append(addArgs, paths...)
	} else {
		addArgs = append(addArgs, ".")
	}
	staged, err := t.run(ctx, call, dir, addArgs...)
	if err != nil || !staged.Success() {
		return staged, err
	}
	return t.run(ctx, call, dir, "commit", "-m", message)
}

type gitPush struct {
	shared.BaseTool
	gitRunner
}

// NewGitPush returns the git_push action.
func NewGitPush(policy *sandbox.Policy, runner *procexec.Runner) ports.ToolExecutor {
	return &gitPush{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "git_push",
				Description: "Push the current branch to a remote. Force pushes are not supported.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"working_dir": {Type: "string", Description: "Repository directory"},
						"remote":      {Type: "string", Description: "Remote name (default origin)"},
						"branch":      {Type: "string", Description: "Branch to push; defaults to the current branch"},
					},
				},
			},
			ports.ToolMetadata{Name: "git_push", Category: "git", Dangerous: true},
		),
		gitRunner: gitRunner{policy: policy, runner: runner},
	}
}

func (t *gitPush) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	dir := shared.OptionalString(call.Arguments, "working_dir", "")
	remote := shared.OptionalString(call.Arguments, "remote", "origin")
	args := []string{"push", "--set-upstream", remote}
	if branch := shared.OptionalString(call.Arguments, "branch", ""); branch != "" {
		args = append(args, branch)
	} else {
		args = append(args, "HEAD")
	}
	return t.run(ctx, call, dir, args...)
}
