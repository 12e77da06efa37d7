// Package fileops implements the filesystem actions. Every path argument is
// resolved through the sandbox policy before any I/O happens, so escapes via
// .. segments or symlinks surface as policy violations, not file errors.
package fileops

import (
	"context"
	"fmt"
	"os"
	"strings"

	"otto/internal/domain/ports"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
)

type readFile struct {
	shared.BaseTool
	policy *sandbox.Policy
}

// NewReadFile returns the read_file action.
func NewReadFile(policy *sandbox.Policy) ports.ToolExecutor {
	return &readFile{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "read_file",
				Description: "Read a file inside the workspace. Large files are truncated; use start_line and line_count to page through them.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"path":       {Type: "string", Description: "File path, absolute within the workspace or relative to it"},
						"start_line": {Type: "integer", Description: "1-based first line to return"},
						"line_count": {Type: "integer", Description: "Number of lines to return"},
					},
					Required: []string{"path"},
				},
			},
			ports.ToolMetadata{Name: "read_file", Category: "filesystem", ReadOnly: true},
		),
		policy: policy,
	}
}

func (t *readFile) Execute(_ context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	path, err := shared.StringArg(call.Arguments, "path")
	if err != nil {
		return shared.Fail(call, err), nil
	}

	resolved, err := t.policy.ResolvePath(path)
	if err != nil {
		return shared.Fail(call, err), nil
	}
	if err := t.policy.CheckReadSize(resolved); err != nil {
		return shared.Fail(call, err), nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return shared.Fail(call, err), nil
	}
	content := string(data)

	startLine := shared.OptionalInt(call.Arguments, "start_line", 0)
	lineCount := shared.OptionalInt(call.Arguments, "line_count", 0)
	if startLine > 0 || lineCount > 0 {
		content, err = sliceLines(content, startLine, lineCount)
		if err != nil {
			return shared.Fail(call, err), nil
		}
	}

	content, truncated := t.policy.TruncateOutput(content)
	result := shared.Succeed(call, content)
	if truncated {
		result.Metadata = map[string]any{"truncated": true}
	}
	return result, nil
}

func sliceLines(content string, start, count int) (string, error) {
	lines := strings.Split(content, "\n")
	if start < 1 {
		start = 1
	}
	if start > len(lines) {
		return "", fmt.Errorf("start_line %d beyond end of file (%d lines)", start, len(lines))
	}
	end := len(lines)
	if count > 0 && start-1+count < end {
		end = start - 1 + count
	}
	return strings.Join(lines[start-1:end], "\n"), nil
}
