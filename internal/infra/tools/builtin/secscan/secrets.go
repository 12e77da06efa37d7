package secscan

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"otto/internal/domain/ports"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
)

const (
	maxSecretScanFileBytes = 1 << 20
	maxSecretFindings      = 100
)

// secretPatterns pairs a finding label with its detection pattern. Patterns
// prefer high precision: each one anchors on a vendor prefix or an explicit
// key assignment rather than on generic entropy.
var secretPatterns = []struct {
	label   string
	pattern *regexp.Regexp
}{
	{"AWS access key ID", regexp.MustCompile(`\b(AKIA|ASIA)[0-9A-Z]{16}\b`)},
	{"GitHub token", regexp.MustCompile(`\bgh[pousr]_[0-9A-Za-z]{36,}\b`)},
	{"Slack token", regexp.MustCompile(`\bxox[baprs]-[0-9A-Za-z-]{10,}\b`)},
	{"Stripe secret key", regexp.MustCompile(`\bsk_live_[0-9a-zA-Z]{24,}\b`)},
	{"Google API key", regexp.MustCompile(`\bAIza[0-9A-Za-z_-]{35}\b`)},
	{"private key block", regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH |DSA |PGP )?PRIVATE KEY`)},
	{"hardcoded credential", regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret|password|token)\b['"]?\s*[:=]\s*['"][^'"\s]{16,}['"]`)},
	{"connection string credential", regexp.MustCompile(`\b(?:postgres|mysql|mongodb|redis|amqp)://[^:\s]+:[^@\s]+@`)},
}

type scanSecrets struct {
	shared.BaseTool
	policy *sandbox.Policy
}

// NewScanSecrets returns the scan_secrets action.
func NewScanSecrets(policy *sandbox.Policy) ports.ToolExecutor {
	return &scanSecrets{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "scan_secrets",
				Description: "Scan workspace files for committed credentials: cloud keys, API tokens, private keys, and hardcoded passwords.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"path": {Type: "string", Description: "Directory to scan; defaults to the workspace root"},
					},
				},
			},
			ports.ToolMetadata{Name: "scan_secrets", Category: "security", ReadOnly: true},
		),
		policy: policy,
	}
}

func (t *scanSecrets) Execute(_ context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	dir := shared.OptionalString(call.Arguments, "path", ".")
	resolved, err := t.policy.ResolvePath(dir)
	if err != nil {
		return shared.Fail(call, err), nil
	}

	var findings []string
	scanned := 0
	err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			switch d.Name() {
			case ".git", "node_modules", "vendor", "__pycache__", ".venv":
				return filepath.SkipDir
			}
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil || info.Size() > maxSecretScanFileBytes {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil || bytes.IndexByte(data, 0) >= 0 {
			return nil
		}
		scanned++
		rel, relErr := filepath.Rel(resolved, path)
		if relErr != nil {
			rel = path
		}
		findings = append(findings, scanContent(rel, data)...)
		if len(findings) >= maxSecretFindings {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return shared.Fail(call, err), nil
	}

	result := &ports.ToolResult{CallID: call.ID, Metadata: map[string]any{
		"files_scanned": scanned,
		"findings":      len(findings),
	}}
	if len(findings) == 0 {
		result.Content = fmt.Sprintf("no secrets found in %d files", scanned)
		return result, nil
	}
	out := fmt.Sprintf("%d potential secrets in %d files:\n%s", len(findings), scanned, strings.Join(findings, "\n"))
	result.Content, _ = t.policy.TruncateOutput(out)
	return result, nil
}

func scanContent(rel string, data []byte) []string {
	var findings []string
	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		for _, sp := range secretPatterns {
			if sp.pattern.Match(line) {
				findings = append(findings, fmt.Sprintf("%s:%d: %s", rel, i+1, sp.label))
				break
			}
		}
	}
	return findings
}
