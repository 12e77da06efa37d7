package gitops

import (
	"context"
	"strings"

	"otto/internal/domain/ports"
	"otto/internal/domain/task"
	"otto/internal/infra/procexec"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
)

const commitMessagePrompt = `Write a conventional commit message for the following staged diff.
First line at most 72 characters, imperative mood, no trailing period.
Add a short body only when the change needs explaining. Reply with the
message only, no code fences.`

type generateCommitMessage struct {
	shared.BaseTool
	gitRunner
	oracle ports.OracleClient
}

// NewGenerateCommitMessage returns the generate_commit_message action. It
// reads the staged diff and asks the oracle to draft a commit message; the
// caller still commits explicitly via git_commit.
func NewGenerateCommitMessage(policy *sandbox.Policy, runner *procexec.Runner, oracle ports.OracleClient) ports.ToolExecutor {
	return &generateCommitMessage{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "generate_commit_message",
				Description: "Draft a commit message from the currently staged changes.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"working_dir": {Type: "string", Description: "Repository directory"},
					},
				},
			},
			ports.ToolMetadata{Name: "generate_commit_message", Category: "git", ReadOnly: true},
		),
		gitRunner: gitRunner{policy: policy, runner: runner},
		oracle:    oracle,
	}
}

func (t *generateCommitMessage) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	if t.oracle == nil {
		return shared.Failf(call, "no oracle configured for message generation"), nil
	}
	dir := shared.OptionalString(call.Arguments, "working_dir", "")

	diff, err := t.run(ctx, call, dir, "diff", "--cached", "--stat", "--patch")
	if err != nil || !diff.Success() {
		return diff, err
	}
	if strings.TrimSpace(diff.Content) == "" || diff.Content == "(no output)" {
		return shared.Failf(call, "nothing staged; stage changes before generating a message"), nil
	}

	content, _ := t.policy.TruncateOutput(diff.Content)
	resp, err := t.oracle.Complete(ctx, ports.OracleRequest{
		Turns: []task.Turn{
			{Seq: 0, Role: task.RoleSystem, Content: commitMessagePrompt},
			{Seq: 1, Role: task.RoleSystem, Content: content},
		},
	})
	if err != nil {
		return shared.Fail(call, err), nil
	}
	message := strings.TrimSpace(resp.Message)
	if message == "" {
		return shared.Failf(call, "oracle returned an empty message"), nil
	}
	return shared.Succeed(call, message), nil
}
