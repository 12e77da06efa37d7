// Package dockerops implements the container actions on top of the docker
// CLI. Daemon-level operations stay behind the same argv validation as every
// other spawned process.
package dockerops

import (
	"context"
	"strconv"

	"otto/internal/domain/ports"
	"otto/internal/infra/procexec"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
)

type manageContainer struct {
	shared.BaseTool
	policy *sandbox.Policy
	runner *procexec.Runner
}

// NewManageContainer returns the manage_container action.
func NewManageContainer(policy *sandbox.Policy, runner *procexec.Runner) ports.ToolExecutor {
	return &manageContainer{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "manage_container",
				Description: "Manage Docker containers: list, run, stop, remove, or read logs.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"operation": {Type: "string", Description: "Container operation", Enum: []any{"list", "run", "stop", "remove", "logs", "build"}},
						"image":     {Type: "string", Description: "Image reference for run/build"},
						"name":      {Type: "string", Description: "Container name"},
						"tail":      {Type: "integer", Description: "Log lines to return (default 100)"},
						"context":   {Type: "string", Description: "Build context directory for build"},
					},
					Required: []string{"operation"},
				},
			},
			ports.ToolMetadata{Name: "manage_container", Category: "devops", Dangerous: true},
		),
		policy: policy,
		runner: runner,
	}
}

func (t *manageContainer) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	operation, err := shared.StringArg(call.Arguments, "operation")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	name := shared.OptionalString(call.Arguments, "name", "")
	image := shared.OptionalString(call.Arguments, "image", "")

	var argv []string
	switch operation {
	case "list":
		argv = []string{"docker", "ps", "--all", "--format", "{{.Names}}\t{{.Image}}\t{{.Status}}"}
	case "run":
		if image == "" {
			return shared.Failf(call, "'image' is required for run"), nil
		}
		argv = []string{"docker", "run", "--detach", "--rm"}
		if name != "" {
			argv = append(argv, "--name", name)
		}
		argv = append(argv, image)
	case "stop":
		if name == "" {
			return shared.Failf(call, "'name' is required for stop"), nil
		}
		argv = []string{"docker", "stop", name}
	case "remove":
		if name == "" {
			return shared.Failf(call, "'name' is required for remove"), nil
		}
		argv = []string{"docker", "rm", "--force", name}
	case "logs":
		if name == "" {
			return shared.Failf(call, "'name' is required for logs"), nil
		}
		tail := shared.OptionalInt(call.Arguments, "tail", 100)
		argv = []string{"docker", "logs", "--tail", strconv.Itoa(tail), name}
	case "build":
		buildContext := shared.OptionalString(call.Arguments, "context", ".")
		resolved, resolveErr := t.policy.ResolvePath(buildContext)
		if resolveErr != nil {
			return shared.Fail(call, resolveErr), nil
		}
		argv = []string{"docker", "build", resolved}
		if image != "" {
			argv = append(argv, "--tag", image)
		}
	default:
		return shared.Failf(call, "unknown operation %q", operation), nil
	}

	res, runErr := shared.RunValidated(ctx, t.runner, t.policy, argv, "", 0)
	if runErr != nil {
		return shared.Fail(call, runErr), nil
	}
	return shared.ResultFrom(call, res, nil), nil
}
