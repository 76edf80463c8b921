// internal/rules/check.go
package rules

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/solatis/waypoint/internal/types"
)

/*
 * Type assignment and validation.
 *
 * AssignTypes walks the rule tree in document order: a rule's conditions
 * first, then its children, endpoint or error. Expressions are rewritten
 * bottom-up with Transform, so a Let registers its locals only after its
 * bound expressions are typed, and later conditions see those locals.
 *
 * Errors are collected, never raised one at a time. A node whose type cannot
 * be determined keeps a nil type and the walk continues; a function call with
 * mismatched arguments still gets its declared return type so that parents
 * check cleanly.
 *
 * Per-node rules:
 *   - VariableRef: locals first, then params; unknown names are errors
 *   - FunctionCall: isSet/isNotSet take one argument of any type; everything
 *     else resolves against the FunctionRegistry with positional matching
 *   - BooleanAnd and rule conditions: non-Boolean children are wrapped in
 *     isSet(child); untyped children are reported
 *   - Let: binds each name in the global local table; same type rebinding is
 *     accepted, a different type is an error even across disjoint branches
 *   - MemberAccess: source must be a record exposing the member
 *   - IndexedAccess: source must be a List, result is the element type
 *
 * Transform hands fn a fresh copy of every node, so assigning Typ on the node
 * received never touches the input tree.
 */

// CheckResult is the output of AssignTypes.
type CheckResult struct {
	RuleSet *RuleSet
	Symbols *SymbolTable
	Errors  []string
}

// Err combines all collected errors into one error wrapping ErrTypeCheck.
// Returns nil when the rule set is well typed; multierr.Errors recovers the list.
func (r *CheckResult) Err() error {
	var err error
	for _, msg := range r.Errors {
		err = multierr.Append(err, fmt.Errorf("%w: %s", types.ErrTypeCheck, msg))
	}
	return err
}

type checker struct {
	functions *FunctionRegistry
	symbols   *SymbolTableBuilder
	errors    []string
	rule      int
}

// AssignTypes types every node of rs against the parameter table and function
// registry. The returned symbol table holds the parameters plus every local.
func AssignTypes(rs *RuleSet, symbols *SymbolTable, functions *FunctionRegistry) *CheckResult {
	c := &checker{functions: functions, symbols: symbols.ToBuilder()}
	out := c.checkRule(rs)
	table := c.symbols.Build()
	c.checkCanonicalNames(table)
	return &CheckResult{RuleSet: out, Symbols: table, Errors: c.errors}
}

func (c *checker) errorf(format string, args ...any) {
	c.errors = append(c.errors, fmt.Sprintf("rule %d: ", c.rule)+fmt.Sprintf(format, args...))
}

func (c *checker) checkRule(rs *RuleSet) *RuleSet {
	out := *rs
	out.Typ = TypeVoid
	c.rule = rs.ID

	if rs.Conditions != nil {
		out.Conditions = make([]Expr, len(rs.Conditions))
		for i, cond := range rs.Conditions {
			out.Conditions[i] = c.coerceCondition(Transform(cond, c.assign))
		}
	}

	switch {
	case rs.Children != nil:
		out.Children = make([]*RuleSet, len(rs.Children))
		for i, child := range rs.Children {
			out.Children[i] = c.checkRule(child)
			c.rule = rs.ID
		}
	case rs.Endpoint != nil:
		out.Endpoint = mustEndpoint(Transform(rs.Endpoint, c.assign))
	case rs.Error != nil:
		out.Error = mustError(Transform(rs.Error, c.assign))
	}
	return &out
}

// coerceCondition wraps a non-Boolean condition in isSet.
func (c *checker) coerceCondition(e Expr) Expr {
	if _, ok := e.(*Let); ok {
		return e
	}
	t := e.Type()
	switch {
	case t == nil:
		c.errorf("condition %s has no type", e)
		return e
	case t.Kind == KindBoolean:
		return e
	default:
		return &FunctionCall{Name: fnIsSet, Args: []Expr{e}, Typ: TypeBoolean}
	}
}

func (c *checker) assign(e Expr) Expr {
	switch n := e.(type) {
	case *IntLiteral:
		n.Typ = TypeInteger
	case *StringLiteral:
		n.Typ = TypeString
	case *BoolLiteral:
		n.Typ = TypeBoolean
	case *VariableRef:
		if sym, ok := c.symbols.Local(n.Name); ok {
			n.Typ = sym.Type
		} else if sym, ok := c.symbols.Param(n.Name); ok {
			n.Typ = sym.Type
		} else {
			c.errorf("undefined variable %s", n.Name)
		}
	case *FunctionCall:
		c.checkCall(n)
	case *MethodCall:
		if n.Method != methodEquals || len(n.Args) != 1 {
			c.errorf("unresolved method %s", n.Method)
			break
		}
		n.Typ = TypeBoolean
	case *MemberAccess:
		st := n.Source.Type()
		if st == nil {
			c.errorf("cannot read %s of untyped expression %s", n.Name, n.Source)
			break
		}
		pt, ok := st.Property(n.Name)
		if !ok {
			c.errorf("type %s has no member %s", st, n.Name)
			break
		}
		n.Typ = pt
	case *IndexedAccess:
		st := n.Source.Type()
		if st == nil || st.Kind != KindList {
			c.errorf("cannot index %s of type %s", n.Source, st)
			break
		}
		n.Typ = st.Elem
	case *StringConcat:
		for _, p := range n.Parts {
			if pt := p.Type(); pt == nil || pt.Kind != KindString {
				c.errorf("template segment %s must be String, got %s", p, pt)
			}
		}
		n.Typ = TypeString
	case *BooleanAnd:
		for i, x := range n.Exprs {
			n.Exprs[i] = c.coerceCondition(x)
		}
		n.Typ = TypeBoolean
	case *BooleanNot:
		if t := n.Expr.Type(); t == nil || t.Kind != KindBoolean {
			c.errorf("not expects Boolean, got %s", t)
		}
		n.Typ = TypeBoolean
	case *Let:
		for _, b := range n.Bindings {
			t := b.Expr.Type()
			if t == nil {
				c.errorf("cannot assign %s: expression %s has no type", b.Name, b.Expr)
				continue
			}
			if err := c.symbols.AddLocal(b.Name, t); err != nil {
				c.errorf("%v", err)
			}
		}
		n.Typ = TypeVoid
	case *Properties:
		props := make([]Property, len(n.Entries))
		for i, p := range n.Entries {
			props[i] = Property{Name: p.Name, Type: p.Value.Type()}
		}
		n.Typ = RecordOf("", props...)
	case *Headers:
		props := make([]Property, len(n.Entries))
		for i, h := range n.Entries {
			for _, v := range h.Values {
				if vt := v.Type(); vt == nil || vt.Kind != KindString {
					c.errorf("header %s value %s must be String, got %s", h.Name, v, vt)
				}
			}
			props[i] = Property{Name: h.Name, Type: ListOf(TypeString)}
		}
		n.Typ = RecordOf("", props...)
	case *List:
		n.Typ = listType(n.Items)
	case *Endpoint:
		if t := n.URL.Type(); t == nil || t.Kind != KindString {
			c.errorf("endpoint url %s must be String, got %s", n.URL, t)
		}
		n.Typ = TypeVoid
	case *Error:
		if t := n.Message.Type(); t == nil || t.Kind != KindString {
			c.errorf("error message %s must be String, got %s", n.Message, t)
		}
		n.Typ = TypeVoid
	}
	return e
}

func (c *checker) checkCall(n *FunctionCall) {
	switch n.Name {
	case fnIsSet, fnIsNotSet:
		if len(n.Args) != 1 {
			c.errorf("%s expects 1 argument, got %d", n.Name, len(n.Args))
		}
		n.Typ = TypeBoolean
		return
	case fnListAccess:
		if len(n.Args) != 2 {
			c.errorf("listAccess expects 2 arguments, got %d", len(n.Args))
			return
		}
		st := n.Args[0].Type()
		if st == nil || st.Kind != KindList || !TypeInteger.Equal(n.Args[1].Type()) {
			c.errorf("listAccess expects (List, Integer), got (%s, %s)", st, n.Args[1].Type())
			return
		}
		n.Typ = st.Elem
		return
	}

	fn, ok := c.functions.Lookup(n.Name)
	if !ok {
		c.errorf("unresolved function %s", n.Name)
		return
	}
	n.Typ = fn.Return
	if len(n.Args) != len(fn.Args) {
		c.errorf("%s expects %d arguments, got %d", fn.Signature(), len(fn.Args), len(n.Args))
		return
	}
	for i, a := range n.Args {
		at := a.Type()
		if at == nil {
			continue
		}
		if !at.Equal(fn.Args[i].Type) {
			c.errorf("%s argument %d (%s) expects %s, got %s", n.Name, i+1, fn.Args[i].Name, fn.Args[i].Type, at)
		}
	}
}

// listType is List<T> for homogeneous items and List<Void> otherwise.
func listType(items []Expr) *Type {
	if len(items) == 0 {
		return ListOf(TypeVoid)
	}
	first := items[0].Type()
	for _, it := range items[1:] {
		if !first.Equal(it.Type()) {
			return ListOf(TypeVoid)
		}
	}
	if first == nil {
		return ListOf(TypeVoid)
	}
	return ListOf(first)
}

// checkCanonicalNames reports names that would collide once lowering renames
// them: two params, two locals, or a param and a local with the same canonical
// spelling.
func (c *checker) checkCanonicalNames(table *SymbolTable) {
	c.rule = 0
	seen := make(map[string]string)
	for _, group := range [][]Symbol{table.Params(), table.Locals()} {
		for _, sym := range group {
			canonical := CanonicalName(sym.Name)
			if prev, ok := seen[canonical]; ok {
				c.errorf("%s and %s both canonicalize to %s", prev, sym.Name, canonical)
				continue
			}
			seen[canonical] = sym.Name
		}
	}
}
