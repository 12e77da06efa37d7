package fileops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"otto/internal/domain/ports"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
)

type writeFile struct {
	shared.BaseTool
	policy *sandbox.Policy
}

// NewWriteFile returns the write_file action.
func NewWriteFile(policy *sandbox.Policy) ports.ToolExecutor {
	return &writeFile{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "write_file",
				Description: "Create or overwrite a file inside the workspace. Parent directories are created as needed.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"path":    {Type: "string", Description: "Destination path"},
						"content": {Type: "string", Description: "Full file content"},
					},
					Required: []string{"path", "content"},
				},
			},
			ports.ToolMetadata{Name: "write_file", Category: "filesystem"},
		),
		policy: policy,
	}
}

func (t *writeFile) Execute(_ context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	path, err := shared.StringArg(call.Arguments, "path")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	content, err := shared.StringArg(call.Arguments, "content")
	if err != nil {
		return shared.Fail(call, err), nil
	}

	resolved, err := t.policy.ResolvePath(path)
	if err != nil {
		return shared.Fail(call, err), nil
	}
	if err := t.policy.CheckWriteSize(len(content)); err != nil {
		return shared.Fail(call, err), nil
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return shared.Fail(call, err), nil
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return shared.Fail(call, err), nil
	}
	return shared.Succeed(call, fmt.Sprintf("wrote %d bytes to %s", len(content), resolved)), nil
}
