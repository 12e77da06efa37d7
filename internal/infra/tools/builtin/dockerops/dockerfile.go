package dockerops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"otto/internal/domain/ports"
	"otto/internal/domain/task"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
)

const dockerfilePrompt = `Write a production-quality multi-stage Dockerfile for the project
described below. Prefer small official base images, copy dependency
manifests before sources for layer caching, and run as a non-root user.
Reply with the Dockerfile content only, no code fences.`

// manifest files worth showing the oracle, in priority order.
var manifestNames = []string{
	"go.mod", "package.json", "requirements.txt", "pyproject.toml",
	"Cargo.toml", "pom.xml", "build.gradle", "Makefile",
}

type generateDockerfile struct {
	shared.BaseTool
	policy *sandbox.Policy
	oracle ports.OracleClient
}

// NewGenerateDockerfile returns the generate_dockerfile action. It collects
// the project's dependency manifests, asks the oracle for a Dockerfile, and
// writes it into the workspace.
func NewGenerateDockerfile(policy *sandbox.Policy, oracle ports.OracleClient) ports.ToolExecutor {
	return &generateDockerfile{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "generate_dockerfile",
				Description: "Generate a Dockerfile for the project based on its dependency manifests and write it to the workspace.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"path":        {Type: "string", Description: "Project directory; defaults to the workspace root"},
						"output_path": {Type: "string", Description: "Where to write the Dockerfile (default Dockerfile)"},
					},
				},
			},
			ports.ToolMetadata{Name: "generate_dockerfile", Category: "devops"},
		),
		policy: policy,
		oracle: oracle,
	}
}

func (t *generateDockerfile) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	if t.oracle == nil {
		return shared.Failf(call, "no oracle configured for dockerfile generation"), nil
	}
	dir := shared.OptionalString(call.Arguments, "path", ".")
	resolved, err := t.policy.ResolvePath(dir)
	if err != nil {
		return shared.Fail(call, err), nil
	}

	summary, err := projectSummary(resolved)
	if err != nil {
		return shared.Fail(call, err), nil
	}
	summary, _ = t.policy.TruncateOutput(summary)

	resp, err := t.oracle.Complete(ctx, ports.OracleRequest{
		Turns: []task.Turn{
			{Seq: 0, Role: task.RoleSystem, Content: dockerfilePrompt},
			{Seq: 1, Role: task.RoleSystem, Content: summary},
		},
	})
	if err != nil {
		return shared.Fail(call, err), nil
	}
	dockerfile := strings.TrimSpace(stripFences(resp.Message))
	if dockerfile == "" {
		return shared.Failf(call, "oracle returned an empty dockerfile"), nil
	}

	outputPath := shared.OptionalString(call.Arguments, "output_path", "Dockerfile")
	resolvedOut, err := t.policy.ResolvePath(outputPath)
	if err != nil {
		return shared.Fail(call, err), nil
	}
	if err := os.WriteFile(resolvedOut, []byte(dockerfile+"\n"), 0o644); err != nil {
		return shared.Fail(call, err), nil
	}
	return shared.Succeed(call, fmt.Sprintf("wrote %s\n\n%s", resolvedOut, dockerfile)), nil
}

// projectSummary lists the directory and inlines any known manifests.
func projectSummary(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("Project layout:\n")
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() {
			name += "/"
		}
		b.WriteString("  " + name + "\n")
	}
	for _, name := range manifestNames {
		data, readErr := os.ReadFile(filepath.Join(dir, name))
		if readErr != nil {
			continue
		}
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", name, data)
	}
	return b.String(), nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	lines = lines[1:]
	if strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
