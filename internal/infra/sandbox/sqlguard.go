package sandbox

import (
	"regexp"
	"strings"
)

// bannedQueryKeywords are mutation/DDL keywords rejected as whole words
// anywhere in a statement, whatever the leading keyword says.
var bannedQueryKeywords = []string{
	"insert", "update", "delete", "drop", "truncate", "alter", "create",
	"grant", "revoke", "merge", "replace", "call", "execute", "copy",
	"vacuum", "reindex", "lock", "comment", "do",
}

var wordPattern = regexp.MustCompile(`[a-zA-Z_]+`)

// ValidateReadOnlyQuery accepts only statements whose first keyword is the
// read-only selector (SELECT, or WITH leading into a SELECT) and which
// contain no banned keyword as a whole word anywhere. Multiple statements
// are rejected outright.
func (p *Policy) ValidateReadOnlyQuery(query string) error {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
	if trimmed == "" {
		return NewValidationError("query", "must not be empty")
	}
	if strings.Contains(trimmed, ";") {
		return NewViolation("query", "multiple statements are not allowed")
	}

	words := wordPattern.FindAllString(strings.ToLower(trimmed), -1)
	if len(words) == 0 {
		return NewValidationError("query", "no statement found")
	}
	switch words[0] {
	case "select", "with":
	default:
		return NewViolation("query", "statement must start with SELECT, got %q", strings.ToUpper(words[0]))
	}

	for _, word := range words {
		for _, banned := range bannedQueryKeywords {
			if word == banned {
				return NewViolation("query", "keyword %q is not allowed in read-only queries", strings.ToUpper(word))
			}
		}
	}
	return nil
}
