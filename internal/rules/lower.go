// internal/rules/lower.go
package rules

import (
	"fmt"
	"strings"
	"unicode"
)

/*
 * Lowering for evaluation.
 *
 * PrepareForEvaluation runs after a clean type check. It rewrites the typed
 * tree post-order:
 *   - not(isSet(x))            -> isNotSet(x)
 *   - booleanEquals(x, true)   -> x, booleanEquals(x, false) -> not(x), either
 *     argument position; without a literal -> x.equals(y)
 *   - stringEquals(x, "lit")   -> "lit".equals(x), preferring the literal as
 *     receiver; without a literal -> x.equals(y)
 *   - xs[i]                    -> listAccess(xs, i)
 *   - references               -> $params#name or $locals#name
 *
 * Renamed identifiers use CanonicalName and the returned SymbolTable is keyed
 * by the canonical names only.
 *
 * Lowering does not report errors. Input that failed type checking or names a
 * symbol missing from the table is a programming error and panics.
 */

// Namespace containers referenced by lowered expressions. Neither is a valid
// identifier so they cannot clash with document names.
const (
	ParamsContainer = "$params"
	LocalsContainer = "$locals"
)

type lowering struct {
	in         *SymbolTable
	paramsType *Type
	localsType *Type
}

// PrepareForEvaluation lowers a checked rule set and renames its symbols.
func PrepareForEvaluation(rs *RuleSet, symbols *SymbolTable) (*RuleSet, *SymbolTable) {
	b := NewSymbolTableBuilder()
	var paramProps, localProps []Property
	for _, p := range symbols.Params() {
		name := CanonicalName(p.Name)
		if err := b.AddParam(name, p.Type, p.BuiltIn); err != nil {
			panic(fmt.Sprintf("rules: lowering param %s: %v", p.Name, err))
		}
		paramProps = append(paramProps, Property{Name: name, Type: p.Type})
	}
	for _, l := range symbols.Locals() {
		name := CanonicalName(l.Name)
		if _, exists := b.Local(name); exists {
			panic(fmt.Sprintf("rules: lowering local %s: canonical name %s already bound", l.Name, name))
		}
		if err := b.AddLocal(name, l.Type); err != nil {
			panic(fmt.Sprintf("rules: lowering local %s: %v", l.Name, err))
		}
		localProps = append(localProps, Property{Name: name, Type: l.Type})
	}

	l := &lowering{
		in:         symbols,
		paramsType: RecordOf("Params", paramProps...),
		localsType: RecordOf("Locals", localProps...),
	}
	out := mustRuleSet(Transform(rs, l.rewrite))
	return out, b.Build()
}

func (l *lowering) rewrite(e Expr) Expr {
	switch n := e.(type) {
	case *VariableRef:
		return l.rename(n)
	case *Let:
		for i := range n.Bindings {
			n.Bindings[i].Name = CanonicalName(n.Bindings[i].Name)
		}
	case *BooleanNot:
		if call, ok := n.Expr.(*FunctionCall); ok && call.Name == fnIsSet {
			return &FunctionCall{Name: fnIsNotSet, Args: call.Args, Typ: TypeBoolean}
		}
	case *FunctionCall:
		switch n.Name {
		case fnBooleanEquals:
			return lowerBooleanEquals(n)
		case fnStringEquals:
			return lowerStringEquals(n)
		}
	case *IndexedAccess:
		return &FunctionCall{
			Name: fnListAccess,
			Args: []Expr{n.Source, &IntLiteral{Value: n.Index, Typ: TypeInteger}},
			Typ:  n.Typ,
		}
	}
	return e
}

func (l *lowering) rename(n *VariableRef) Expr {
	if n.Name == ParamsContainer || n.Name == LocalsContainer {
		return n
	}
	if _, ok := l.in.Local(n.Name); ok {
		return &MemberAccess{
			Source: &VariableRef{Name: LocalsContainer, Typ: l.localsType},
			Name:   CanonicalName(n.Name),
			Typ:    n.Typ,
		}
	}
	if _, ok := l.in.Param(n.Name); ok {
		return &MemberAccess{
			Source: &VariableRef{Name: ParamsContainer, Typ: l.paramsType},
			Name:   CanonicalName(n.Name),
			Typ:    n.Typ,
		}
	}
	panic(fmt.Sprintf("rules: lowering unknown variable %s", n.Name))
}

func lowerBooleanEquals(n *FunctionCall) Expr {
	if len(n.Args) != 2 {
		panic(fmt.Sprintf("rules: lowering %s", n))
	}
	left, right := n.Args[0], n.Args[1]
	if lit, ok := right.(*BoolLiteral); ok {
		return booleanIdentity(left, lit.Value)
	}
	if lit, ok := left.(*BoolLiteral); ok {
		return booleanIdentity(right, lit.Value)
	}
	return &MethodCall{Receiver: left, Method: methodEquals, Args: []Expr{right}, Typ: TypeBoolean}
}

func booleanIdentity(x Expr, want bool) Expr {
	if want {
		return x
	}
	if call, ok := x.(*FunctionCall); ok && call.Name == fnIsSet {
		return &FunctionCall{Name: fnIsNotSet, Args: call.Args, Typ: TypeBoolean}
	}
	return &BooleanNot{Expr: x, Typ: TypeBoolean}
}

func lowerStringEquals(n *FunctionCall) Expr {
	if len(n.Args) != 2 {
		panic(fmt.Sprintf("rules: lowering %s", n))
	}
	left, right := n.Args[0], n.Args[1]
	if _, ok := right.(*StringLiteral); ok {
		return &MethodCall{Receiver: right, Method: methodEquals, Args: []Expr{left}, Typ: TypeBoolean}
	}
	return &MethodCall{Receiver: left, Method: methodEquals, Args: []Expr{right}, Typ: TypeBoolean}
}

// CanonicalName converts a document identifier to lower camel case:
// Region -> region, URL -> url, FIPSEndpoint -> fipsEndpoint,
// use_dual_stack -> useDualStack.
func CanonicalName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(lowerLeading(words[0]))
	for _, w := range words[1:] {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// lowerLeading lowercases the leading run of upper case letters, keeping the
// last one when it starts the next word (FIPSEndpoint -> fipsEndpoint).
func lowerLeading(w string) string {
	r := []rune(w)
	n := 0
	for n < len(r) && unicode.IsUpper(r[n]) {
		n++
	}
	if n > 1 && n < len(r) && unicode.IsLower(r[n]) {
		n--
	}
	for i := 0; i < n; i++ {
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}
