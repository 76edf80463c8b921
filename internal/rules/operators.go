// internal/rules/operators.go
package rules

/*
 * Intrinsic operators.
 *
 * Operations the evaluator performs itself instead of dispatching through the
 * function registry:
 *   - isSet / isNotSet: presence tests, the only calls that see absent args
 *   - listAccess: list element by index, absent when out of range
 *   - equals method: lowered form of booleanEquals and stringEquals
 *   - truthiness for conditions: only boolean true passes
 *
 * Equality is strict: values of different Go types are never equal. An
 * absent operand makes the comparison absent, as it does for the
 * booleanEquals and stringEquals calls equals replaces.
 */

// applyIntrinsic evaluates an intrinsic call. ok is false for other names.
func applyIntrinsic(name string, args []any) (result any, ok bool) {
	switch name {
	case fnIsSet:
		return len(args) == 1 && args[0] != nil, true
	case fnIsNotSet:
		return len(args) == 1 && args[0] == nil, true
	case fnListAccess:
		if len(args) != 2 {
			return nil, true
		}
		index, isInt := args[1].(int)
		if !isInt {
			return nil, true
		}
		return indexOf(args[0], index), true
	}
	return nil, false
}

// applyMethod evaluates a method call on an already evaluated receiver.
func applyMethod(method string, receiver any, args []any) (any, bool) {
	switch method {
	case methodEquals:
		if len(args) != 1 || receiver == nil || args[0] == nil {
			return nil, true
		}
		return valuesEqual(receiver, args[0]), true
	}
	return nil, false
}

// valuesEqual compares scalar runtime values; nil is equal to nothing.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	default:
		return false
	}
}

// isTrue reports whether a condition value passes.
func isTrue(v any) bool {
	b, ok := v.(bool)
	return ok && b
}
