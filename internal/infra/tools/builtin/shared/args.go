package shared

import (
	"fmt"

	"otto/internal/domain/ports"
)

// StringArg extracts a required string argument.
func StringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing '%s'", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("'%s' must be a string", key)
	}
	return s, nil
}

// OptionalString extracts an optional string argument, returning fallback
// when absent.
func OptionalString(args map[string]any, key, fallback string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return fallback
}

// OptionalInt extracts an optional integer argument. JSON numbers arrive as
// float64; whole-number floats are accepted.
func OptionalInt(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return fallback
	}
}

// OptionalBool extracts an optional boolean argument.
func OptionalBool(args map[string]any, key string, fallback bool) bool {
	if b, ok := args[key].(bool); ok {
		return b
	}
	return fallback
}

// StringSlice extracts an optional []string argument from a JSON array.
func StringSlice(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Fail wraps an expected failure into a result so the oracle can observe it.
func Fail(call ports.ToolCall, err error) *ports.ToolResult {
	return &ports.ToolResult{CallID: call.ID, Error: err}
}

// Failf is Fail with formatting.
func Failf(call ports.ToolCall, format string, args ...any) *ports.ToolResult {
	return Fail(call, fmt.Errorf(format, args...))
}

// Succeed wraps content into a successful result.
func Succeed(call ports.ToolCall, content string) *ports.ToolResult {
	return &ports.ToolResult{CallID: call.ID, Content: content}
}
