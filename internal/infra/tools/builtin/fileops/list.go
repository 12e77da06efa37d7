package fileops

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"otto/internal/domain/ports"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
)

const maxListEntries = 500

type listFiles struct {
	shared.BaseTool
	policy *sandbox.Policy
}

// NewListFiles returns the list_files action.
func NewListFiles(policy *sandbox.Policy) ports.ToolExecutor {
	return &listFiles{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "list_files",
				Description: "List directory entries inside the workspace. Directories get a trailing slash; files show their size.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"path":      {Type: "string", Description: "Directory to list; defaults to the workspace root"},
						"recursive": {Type: "boolean", Description: "Walk subdirectories"},
					},
				},
			},
			ports.ToolMetadata{Name: "list_files", Category: "filesystem", ReadOnly: true},
		),
		policy: policy,
	}
}

func (t *listFiles) Execute(_ context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	path := shared.OptionalString(call.Arguments, "path", ".")
	recursive := shared.OptionalBool(call.Arguments, "recursive", false)

	resolved, err := t.policy.ResolvePath(path)
	if err != nil {
		return shared.Fail(call, err), nil
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return shared.Fail(call, err), nil
	}
	if !info.IsDir() {
		return shared.Failf(call, "%s is not a directory", resolved), nil
	}

	var lines []string
	if recursive {
		lines, err = walkEntries(resolved)
	} else {
		lines, err = dirEntries(resolved)
	}
	if err != nil {
		return shared.Fail(call, err), nil
	}

	capped := false
	if len(lines) > maxListEntries {
		lines = lines[:maxListEntries]
		capped = true
	}
	sort.Strings(lines)
	out := strings.Join(lines, "\n")
	if capped {
		out += fmt.Sprintf("\n... capped at %d entries", maxListEntries)
	}
	out, _ = t.policy.TruncateOutput(out)
	return shared.Succeed(call, out), nil
}

func dirEntries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, formatEntry(entry.Name(), entry))
	}
	return lines, nil
}

func walkEntries(root string) ([]string, error) {
	var lines []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if d.IsDir() && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		lines = append(lines, formatEntry(rel, d))
		if len(lines) > maxListEntries {
			return fs.SkipAll
		}
		return nil
	})
	return lines, err
}

func skipDir(name string) bool {
	switch name {
	case ".git", "node_modules", "__pycache__", ".venv", "vendor":
		return true
	}
	return false
}

func formatEntry(name string, d fs.DirEntry) string {
	if d.IsDir() {
		return name + "/"
	}
	if info, err := d.Info(); err == nil {
		return fmt.Sprintf("%s (%d bytes)", name, info.Size())
	}
	return name
}
