package toolregistry

import (
	"fmt"

	"otto/internal/domain/ports"
	"otto/internal/infra/sandbox"
	"otto/internal/shared/jsonx"
)

// ValidateArguments checks a call's arguments against the tool's declared
// schema before execution: required keys present, value kinds matching, and
// enum membership where declared. It does not reject extra keys; oracles
// routinely send harmless extras.
func ValidateArguments(def ports.ToolDefinition, args map[string]any) error {
	for _, key := range def.Parameters.Required {
		if _, ok := args[key]; !ok {
			return sandbox.NewValidationError(key, "required argument missing")
		}
	}
	for key, value := range args {
		prop, ok := def.Parameters.Properties[key]
		if !ok {
			continue
		}
		if value == nil {
			return sandbox.NewValidationError(key, "argument is null")
		}
		if err := checkKind(key, prop.Type, value); err != nil {
			return err
		}
		if len(prop.Enum) > 0 && !enumContains(prop.Enum, value) {
			return sandbox.NewValidationError(key, "value %v not in %v", value, prop.Enum)
		}
	}
	return nil
}

func checkKind(key, want string, value any) error {
	switch want {
	case "", "any":
		return nil
	case "string":
		if _, ok := value.(string); !ok {
			return kindError(key, want, value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return kindError(key, want, value)
		}
	case "number", "integer":
		if !isNumeric(value) {
			return kindError(key, want, value)
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return kindError(key, want, value)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return kindError(key, want, value)
		}
	}
	return nil
}

func isNumeric(value any) bool {
	switch v := value.(type) {
	case float64, float32, int, int32, int64:
		return true
	case jsonx.Number:
		_ = v
		return true
	default:
		return false
	}
}

func kindError(key, want string, value any) error {
	return sandbox.NewValidationError(key, "expected %s, got %T", want, value)
}

func enumContains(enum []any, value any) bool {
	for _, candidate := range enum {
		if fmt.Sprintf("%v", candidate) == fmt.Sprintf("%v", value) {
			return true
		}
	}
	return false
}
