package gitops

import (
	"context"

	"otto/internal/domain/ports"
	"otto/internal/infra/procexec"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
)

type createPullRequest struct {
	shared.BaseTool
	gitRunner
}

// NewCreatePullRequest returns the create_pull_request action, which drives
// the gh CLI. The gh binary carries its own authentication; the agent never
// sees a token.
func NewCreatePullRequest(policy *sandbox.Policy, runner *procexec.Runner) ports.ToolExecutor {
	return &createPullRequest{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "create_pull_request",
				Description: "Open a pull request for the current branch using the gh CLI.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"working_dir": {Type: "string", Description: "Repository directory"},
						"title":       {Type: "string", Description: "Pull request title"},
						"body":        {Type: "string", Description: "Pull request description"},
						"base":        {Type: "string", Description: "Base branch; defaults to the repository default"},
						"draft":       {Type: "boolean", Description: "Open as draft"},
					},
					Required: []string{"title", "body"},
				},
			},
			ports.ToolMetadata{Name: "create_pull_request", Category: "git", Dangerous: true},
		),
		gitRunner: gitRunner{policy: policy, runner: runner},
	}
}

func (t *createPullRequest) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	title, err := shared.StringArg(call.Arguments, "title")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	body, err := shared.StringArg(call.Arguments, "body")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	dir := shared.OptionalString(call.Arguments, "working_dir", "")

	argv := []string{"gh", "pr", "create", "--title", title, "--body", body}
	if base := shared.OptionalString(call.Arguments, "base", ""); base != "" {
		argv = append(argv, "--base", base)
	}
	if shared.OptionalBool(call.Arguments, "draft", false) {
		argv = append(argv, "--draft")
	}

	res, runErr := shared.RunValidated(ctx, t.runner, t.policy, argv, dir, 0)
	if runErr != nil {
		return shared.Fail(call, runErr), nil
	}
	return shared.ResultFrom(call, res, nil), nil
}
