package sandbox

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"otto/internal/shared/config"
)

// Policy bundles the immutable rule sets every action is validated against.
// It is built once at engine construction and shared read-only across runs,
// so no locking is needed.
type Policy struct {
	roots             []string
	allowedPrograms   map[string]struct{}
	blockedSubstrings []string
	blockedHosts      map[string]struct{}

	actionTimeout  time.Duration
	maxOutputBytes int
	maxFileBytes   int64
}

// NewPolicy normalizes and freezes the configured rule sets. At least one
// allowed root is required; a policy with no roots would reject every path.
func NewPolicy(cfg config.SandboxConfig) (*Policy, error) {
	if len(cfg.AllowedRoots) == 0 {
		return nil, errors.New("sandbox: at least one allowed root is required")
	}
	p := &Policy{
		allowedPrograms:   make(map[string]struct{}, len(cfg.AllowedPrograms)),
		blockedHosts:      make(map[string]struct{}),
		actionTimeout:     cfg.ActionTimeout,
		maxOutputBytes:    cfg.MaxOutputBytes,
		maxFileBytes:      cfg.MaxFileBytes,
	}

	for _, root := range cfg.AllowedRoots {
		cleaned := filepath.Clean(root)
		if resolved, err := filepath.EvalSymlinks(cleaned); err == nil {
			cleaned = resolved
		}
		p.roots = append(p.roots, cleaned)
	}
	for _, prog := range cfg.AllowedPrograms {
		p.allowedPrograms[strings.ToLower(strings.TrimSpace(prog))] = struct{}{}
	}
	for _, sub := range cfg.BlockedSubstrings {
		if trimmed := strings.ToLower(strings.TrimSpace(sub)); trimmed != "" {
			p.blockedSubstrings = append(p.blockedSubstrings, trimmed)
		}
	}
	hosts := cfg.BlockedHosts
	if len(hosts) == 0 {
		hosts = config.DefaultBlockedHosts()
	}
	for _, host := range hosts {
		p.blockedHosts[strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))] = struct{}{}
	}

	return p, nil
}

// ActionTimeout is the hard per-action ceiling.
func (p *Policy) ActionTimeout() time.Duration { return p.actionTimeout }

// MaxOutputBytes is the per-stream captured output ceiling.
func (p *Policy) MaxOutputBytes() int { return p.maxOutputBytes }

// MaxFileBytes is the file read/write size ceiling.
func (p *Policy) MaxFileBytes() int64 { return p.maxFileBytes }

// Roots returns the allowlisted filesystem roots.
func (p *Policy) Roots() []string {
	out := make([]string, len(p.roots))
	copy(out, p.roots)
	return out
}

// ClampTimeout bounds a caller-requested timeout to the policy ceiling.
// Non-positive requests get the full ceiling.
func (p *Policy) ClampTimeout(requested time.Duration) time.Duration {
	if requested <= 0 || requested > p.actionTimeout {
		return p.actionTimeout
	}
	return requested
}
