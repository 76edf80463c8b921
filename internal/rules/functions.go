// internal/rules/functions.go
package rules

import (
	"fmt"
	"strings"
)

/*
 * Built-in function registry.
 *
 * A FunctionMirror describes one built-in: its name, ordered argument list,
 * return type and owning namespace, plus the Go implementation the evaluator
 * calls. The checker matches calls positionally against Args (exact count,
 * structural type equality).
 *
 * The registry is built once and never mutated afterwards; the checker and the
 * evaluator receive it explicitly instead of reaching for a package global.
 *
 * isSet, isNotSet and listAccess are intrinsics handled by the checker and the
 * evaluator directly and are not registered here.
 */

// FunctionArg is one declared argument of a built-in.
type FunctionArg struct {
	Name string
	Type *Type
}

// FunctionMirror describes a built-in function.
type FunctionMirror struct {
	Name   string
	Owner  string
	Args   []FunctionArg
	Return *Type
	// Call receives non-nil arguments; returning nil yields an absent result.
	Call func(args []any) any
}

// Signature renders the mirror as name(arg: Type, ...) -> Type.
func (f *FunctionMirror) Signature() string {
	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		parts[i] = a.Name + ": " + a.Type.String()
	}
	return f.Name + "(" + strings.Join(parts, ", ") + ") -> " + f.Return.String()
}

// FunctionRegistry is an immutable name to mirror lookup table.
type FunctionRegistry struct {
	byName map[string]*FunctionMirror
	names  []string
}

// NewFunctionRegistry builds a registry. Duplicate or intrinsic names are rejected.
func NewFunctionRegistry(fns ...*FunctionMirror) (*FunctionRegistry, error) {
	r := &FunctionRegistry{byName: make(map[string]*FunctionMirror, len(fns))}
	for _, f := range fns {
		if f == nil || f.Name == "" || f.Return == nil || f.Call == nil {
			return nil, fmt.Errorf("invalid function mirror %+v", f)
		}
		if isIntrinsic(f.Name) {
			return nil, fmt.Errorf("function %s shadows an intrinsic", f.Name)
		}
		if _, dup := r.byName[f.Name]; dup {
			return nil, fmt.Errorf("function %s registered twice", f.Name)
		}
		r.byName[f.Name] = f
		r.names = append(r.names, f.Name)
	}
	return r, nil
}

// Lookup returns the mirror for name.
func (r *FunctionRegistry) Lookup(name string) (*FunctionMirror, bool) {
	if r == nil {
		return nil, false
	}
	f, ok := r.byName[name]
	return f, ok
}

// Names returns registered names in registration order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.names...)
}

// Intrinsic names.
const (
	fnIsSet      = "isSet"
	fnIsNotSet   = "isNotSet"
	fnListAccess = "listAccess"

	fnBooleanEquals = "booleanEquals"
	fnStringEquals  = "stringEquals"

	methodEquals = "equals"
)

func isIntrinsic(name string) bool {
	switch name {
	case fnIsSet, fnIsNotSet, fnListAccess:
		return true
	}
	return false
}
