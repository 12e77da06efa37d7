package fileops

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"otto/internal/domain/ports"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
)

type editFile struct {
	shared.BaseTool
	policy *sandbox.Policy
}

// NewEditFile returns the edit_file action. It performs exact string
// replacement: old_string must appear in the file, and must be unique
// unless replace_all is set.
func NewEditFile(policy *sandbox.Policy) ports.ToolExecutor {
	return &editFile{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "edit_file",
				Description: "Replace an exact string in a file. old_string must match exactly once unless replace_all is true. Returns a diff of the change.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"path":        {Type: "string", Description: "File to edit"},
						"old_string":  {Type: "string", Description: "Exact text to replace"},
						"new_string":  {Type: "string", Description: "Replacement text"},
						"replace_all": {Type: "boolean", Description: "Replace every occurrence"},
					},
					Required: []string{"path", "old_string", "new_string"},
				},
			},
			ports.ToolMetadata{Name: "edit_file", Category: "filesystem"},
		),
		policy: policy,
	}
}

func (t *editFile) Execute(_ context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	path, err := shared.StringArg(call.Arguments, "path")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	oldString, err := shared.StringArg(call.Arguments, "old_string")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	newString, err := shared.StringArg(call.Arguments, "new_string")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	if oldString == newString {
		return shared.Failf(call, "old_string and new_string are identical"), nil
	}
	replaceAll := shared.OptionalBool(call.Arguments, "replace_all", false)

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
	before := string(data)

	occurrences := strings.Count(before, oldString)
	switch {
	case occurrences == 0:
		return shared.Failf(call, "old_string not found in %s", resolved), nil
	case occurrences > 1 && !replaceAll:
		return shared.Failf(call, "old_string matches %d times in %s; pass replace_all or a longer anchor", occurrences, resolved), nil
	}

	var after string
	if replaceAll {
		after = strings.ReplaceAll(before, oldString, newString)
	} else {
		after = strings.Replace(before, oldString, newString, 1)
	}

	if err := t.policy.CheckWriteSize(len(after)); err != nil {
		return shared.Fail(call, err), nil
	}
	if err := os.WriteFile(resolved, []byte(after), 0o644); err != nil {
		return shared.Fail(call, err), nil
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	dmp.DiffCleanupSemantic(diffs)
	summary := fmt.Sprintf("replaced %d occurrence(s) in %s\n%s", occurrences, resolved, renderDiff(diffs))
	summary, _ = t.policy.TruncateOutput(summary)
	return shared.Succeed(call, summary), nil
}

// renderDiff prints only changed hunks with a little context so the oracle
// can confirm its edit landed without re-reading the whole file.
func renderDiff(diffs []diffmatchpatch.Diff) string {
	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			b.WriteString("- " + strings.TrimRight(d.Text, "\n") + "\n")
		case diffmatchpatch.DiffInsert:
			b.WriteString("+ " + strings.TrimRight(d.Text, "\n") + "\n")
		case diffmatchpatch.DiffEqual:
			b.WriteString(contextLines(d.Text))
		}
	}
	return b.String()
}

func contextLines(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) <= 2 {
		return "  " + strings.Join(lines, "\n  ") + "\n"
	}
	return "  " + lines[0] + "\n  ...\n  " + lines[len(lines)-1] + "\n"
}
