package fileops

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"otto/internal/domain/ports"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
)

const maxFindMatches = 200

type findFiles struct {
	shared.BaseTool
	policy *sandbox.Policy
}

// NewFindFiles returns the find_files action.
func NewFindFiles(policy *sandbox.Policy) ports.ToolExecutor {
	return &findFiles{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "find_files",
				Description: "Find files by glob pattern, e.g. *.go or config.*. The pattern matches against base names.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"pattern": {Type: "string", Description: "Glob pattern matched against file names"},
						"path":    {Type: "string", Description: "Directory to search; defaults to the workspace root"},
					},
					Required: []string{"pattern"},
				},
			},
			ports.ToolMetadata{Name: "find_files", Category: "filesystem", ReadOnly: true},
		),
		policy: policy,
	}
}

func (t *findFiles) Execute(_ context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	pattern, err := shared.StringArg(call.Arguments, "pattern")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	if _, err := filepath.Match(pattern, "probe"); err != nil {
		return shared.Failf(call, "invalid pattern %q: %v", pattern, err), nil
	}
	root := shared.OptionalString(call.Arguments, "path", ".")

	resolved, err := t.policy.ResolvePath(root)
	if err != nil {
		return shared.Fail(call, err), nil
	}

	var matches []string
	capped := false
	err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree is not fatal to the search
		}
		if d.IsDir() {
			if skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			rel, relErr := filepath.Rel(resolved, path)
			if relErr != nil {
				rel = path
			}
			matches = append(matches, rel)
			if len(matches) >= maxFindMatches {
				capped = true
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return shared.Fail(call, err), nil
	}
	if len(matches) == 0 {
		return shared.Succeed(call, fmt.Sprintf("no files matching %q under %s", pattern, resolved)), nil
	}

	sort.Strings(matches)
	out := strings.Join(matches, "\n")
	if capped {
		out += fmt.Sprintf("\n... capped at %d matches", maxFindMatches)
	}
	out, _ = t.policy.TruncateOutput(out)
	return shared.Succeed(call, out), nil
}
