// internal/rules/coercion.go
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/waypoint/internal/types"
)

/*
 * Parameter value coercion.
 *
 * Converts caller-supplied parameter values into runtime values matching the
 * declared parameter type. Two modes:
 *   - Strict: the Go type must already match (bool, string, []string or []any
 *     of strings). Used for structured inputs such as gRPC requests.
 *   - Lenient: additionally accepts strings for every type. Booleans go through
 *     strconv.ParseBool and string arrays are split on commas. Used for CLI
 *     flags and environment input.
 *
 * nil is never coerced: an absent value stays absent and required-parameter
 * validation decides what happens to it.
 */

// CoercionMode selects how strictly parameter values are converted.
type CoercionMode int

const (
	CoerceStrict CoercionMode = iota
	CoerceLenient
)

// CoerceParam converts value to the runtime representation of pt.
// Returns ErrInvalidParameter when the value cannot represent pt.
func CoerceParam(pt types.ParamType, value any, mode CoercionMode) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch pt {
	case types.ParamTypeBoolean:
		return coerceBoolean(value, mode)
	case types.ParamTypeString:
		return coerceString(value, mode)
	case types.ParamTypeStringArray:
		return coerceStringArray(value, mode)
	default:
		return nil, fmt.Errorf("%w: unknown parameter type %q", types.ErrInvalidParameter, pt)
	}
}

// coerceBoolean accepts bool, or in lenient mode any strconv.ParseBool string.
func coerceBoolean(value any, mode CoercionMode) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		if mode == CoerceLenient {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err == nil {
				return b, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %v is not a boolean", types.ErrInvalidParameter, value)
}

// coerceString accepts strings only; numbers are not silently stringified.
func coerceString(value any, _ CoercionMode) (any, error) {
	if v, ok := value.(string); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %v is not a string", types.ErrInvalidParameter, value)
}

// coerceStringArray returns []any holding strings, the runtime list shape.
func coerceStringArray(value any, mode CoercionMode) (any, error) {
	switch v := value.(type) {
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: element %d of string array is %T", types.ErrInvalidParameter, i, item)
			}
			out[i] = s
		}
		return out, nil
	case string:
		if mode == CoerceLenient {
			if v == "" {
				return []any{}, nil
			}
			parts := strings.Split(v, ",")
			out := make([]any, len(parts))
			for i, p := range parts {
				out[i] = strings.TrimSpace(p)
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %v is not a string array", types.ErrInvalidParameter, value)
}
