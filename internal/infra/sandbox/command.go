package sandbox

import (
	"path/filepath"
	"strings"
)

// ValidateCommand vets an argument vector before any process is spawned.
// The base program must be allowlisted, and the joined command must not
// contain any blocked substring even when the program is allowed. Commands
// are only ever executed in array form, never through a shell, so metachar
// injection is not reachable; the substring scan guards the cases where an
// allowlisted program is itself destructive.
func (p *Policy) ValidateCommand(argv []string) error {
	if len(argv) == 0 {
		return NewValidationError("command", "must not be empty")
	}

	base := strings.ToLower(filepath.Base(strings.TrimSpace(argv[0])))
	if base == "" || base == "." {
		return NewValidationError("command", "missing program name")
	}
	if _, ok := p.allowedPrograms[base]; !ok {
		return NewViolation("command", "program %q is not allowlisted", base)
	}

	joined := strings.ToLower(strings.Join(argv, " "))
	for _, blocked := range p.blockedSubstrings {
		if strings.Contains(joined, blocked) {
			return NewViolation("command", "command contains blocked pattern %q", blocked)
		}
	}
	return nil
}

// SplitCommand tokenizes a whitespace-separated command line into argv,
// honoring single and double quotes. It performs no expansion of any kind: no
// globs, no variables, no command substitution. Anything that needs shell
// semantics is rejected by the blocked-substring scan instead.
func SplitCommand(command string) ([]string, error) {
	var (
		argv    []string
		current strings.Builder
		quote   rune
		has     bool
	)

	for _, r := range command {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			has = true
		case r == ' ' || r == '\t' || r == '\n':
			if has || current.Len() > 0 {
				argv = append(argv, current.String())
				current.Reset()
				has = false
			}
		default:
			current.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, NewValidationError("command", "unbalanced quote")
	}
	if has || current.Len() > 0 {
		argv = append(argv, current.String())
	}
	if len(argv) == 0 {
		return nil, NewValidationError("command", "must not be empty")
	}
	return argv, nil
}
