// internal/rules/expr.go
package rules

import (
	"fmt"
	"strconv"
	"strings"
)

/*
 * Expression AST.
 *
 * Expr is a closed sum type: every node kind is a pointer to one of the structs
 * below and implements the unexported exprNode marker. Passes switch over the
 * concrete kinds instead of dispatching through a visitor hierarchy; Transform
 * and Inspect in walk.go provide the generic post-order map and pre-order walk.
 *
 * Nodes are treated as immutable once built. Passes that change a node build a
 * new one (see the with* helpers) so the parse, check and lowering outputs never
 * share mutated state.
 *
 * Typ is nil until AssignTypes has run. After a successful check every node
 * reachable from the root RuleSet has a non-nil type.
 */

// Expr is any node of the rule expression language.
type Expr interface {
	// Type returns the resolved static type, nil before type checking.
	Type() *Type
	// String returns the canonical display form.
	String() string
	exprNode()
}

// IntLiteral is an integer constant.
type IntLiteral struct {
	Value int
	Typ   *Type
}

// StringLiteral is a string constant.
type StringLiteral struct {
	Value string
	Typ   *Type
}

// BoolLiteral is a boolean constant.
type BoolLiteral struct {
	Value bool
	Typ   *Type
}

// VariableRef refers to a parameter or local by name.
type VariableRef struct {
	Name string
	Typ  *Type
}

// FunctionCall calls a built-in function.
type FunctionCall struct {
	Name string
	Args []Expr
	Typ  *Type
}

// MethodCall calls a method on a receiver; produced by lowering.
type MethodCall struct {
	Receiver Expr
	Method   string
	Args     []Expr
	Typ      *Type
}

// MemberAccess reads a named member of a record value.
type MemberAccess struct {
	Source Expr
	Name   string
	Typ    *Type
}

// IndexedAccess reads one element of a list value.
type IndexedAccess struct {
	Source Expr
	Index  int
	Typ    *Type
}

// StringConcat joins string parts left to right.
type StringConcat struct {
	Parts []Expr
	Typ   *Type
}

// BooleanAnd is true when every conjunct is true.
type BooleanAnd struct {
	Exprs []Expr
	Typ   *Type
}

// BooleanNot negates a boolean.
type BooleanNot struct {
	Expr Expr
	Typ  *Type
}

// Binding assigns the value of Expr to the local Name.
type Binding struct {
	Name string
	Expr Expr
}

// Let binds one or more locals in order.
type Let struct {
	Bindings []Binding
	Typ      *Type
}

// PropertyValue is one entry of a Properties node.
type PropertyValue struct {
	Name  string
	Value Expr
}

// Properties is an ordered name to expression map.
type Properties struct {
	Entries []PropertyValue
	Typ     *Type
}

// Header is one multi-valued endpoint header.
type Header struct {
	Name   string
	Values []Expr
}

// Headers is the ordered header map of an endpoint.
type Headers struct {
	Entries []Header
	Typ     *Type
}

// List is a list literal.
type List struct {
	Items []Expr
	Typ   *Type
}

// Endpoint is the successful terminal of a rule.
type Endpoint struct {
	URL        Expr
	Properties *Properties
	Headers    *Headers
	Typ        *Type
}

// Error is the failing terminal of a rule.
type Error struct {
	Message Expr
	Typ     *Type
}

// RuleSet is one node of the rule tree: ordered conditions followed by exactly
// one of children, an endpoint, or an error.
type RuleSet struct {
	ID            int
	Documentation string
	Conditions    []Expr
	Children      []*RuleSet
	Endpoint      *Endpoint
	Error         *Error
	Typ           *Type
}

func (*IntLiteral) exprNode()    {}
func (*StringLiteral) exprNode() {}
func (*BoolLiteral) exprNode()   {}
func (*VariableRef) exprNode()   {}
func (*FunctionCall) exprNode()  {}
func (*MethodCall) exprNode()    {}
func (*MemberAccess) exprNode()  {}
func (*IndexedAccess) exprNode() {}
func (*StringConcat) exprNode()  {}
func (*BooleanAnd) exprNode()    {}
func (*BooleanNot) exprNode()    {}
func (*Let) exprNode()           {}
func (*Properties) exprNode()    {}
func (*Headers) exprNode()       {}
func (*List) exprNode()          {}
func (*Endpoint) exprNode()      {}
func (*Error) exprNode()         {}
func (*RuleSet) exprNode()       {}

func (e *IntLiteral) Type() *Type    { return e.Typ }
func (e *StringLiteral) Type() *Type { return e.Typ }
func (e *BoolLiteral) Type() *Type   { return e.Typ }
func (e *VariableRef) Type() *Type   { return e.Typ }
func (e *FunctionCall) Type() *Type  { return e.Typ }
func (e *MethodCall) Type() *Type    { return e.Typ }
func (e *MemberAccess) Type() *Type  { return e.Typ }
func (e *IndexedAccess) Type() *Type { return e.Typ }
func (e *StringConcat) Type() *Type  { return e.Typ }
func (e *BooleanAnd) Type() *Type    { return e.Typ }
func (e *BooleanNot) Type() *Type    { return e.Typ }
func (e *Let) Type() *Type           { return e.Typ }
func (e *Properties) Type() *Type    { return e.Typ }
func (e *Headers) Type() *Type       { return e.Typ }
func (e *List) Type() *Type          { return e.Typ }
func (e *Endpoint) Type() *Type      { return e.Typ }
func (e *Error) Type() *Type         { return e.Typ }
func (e *RuleSet) Type() *Type       { return e.Typ }

// NewRuleSet builds a rule node, enforcing children XOR endpoint XOR error.
func NewRuleSet(conditions []Expr, children []*RuleSet, endpoint *Endpoint, errExpr *Error) (*RuleSet, error) {
	terminals := 0
	if children != nil {
		terminals++
	}
	if endpoint != nil {
		terminals++
	}
	if errExpr != nil {
		terminals++
	}
	if terminals != 1 {
		return nil, fmt.Errorf("rule must have exactly one of children, endpoint or error, got %d", terminals)
	}
	return &RuleSet{
		Conditions: conditions,
		Children:   children,
		Endpoint:   endpoint,
		Error:      errExpr,
	}, nil
}

// IsTree reports whether the rule has children.
func (e *RuleSet) IsTree() bool { return e.Children != nil }

// Simplify collapses single-element groups to their sole child. A Let holding a
// single binding is already its own bare form and is returned unchanged.
func Simplify(e Expr) Expr {
	switch n := e.(type) {
	case *BooleanAnd:
		if len(n.Exprs) == 1 {
			return n.Exprs[0]
		}
	case *StringConcat:
		if len(n.Parts) == 1 {
			if lit, ok := n.Parts[0].(*StringLiteral); ok {
				return lit
			}
		}
	}
	return e
}

func (e *IntLiteral) String() string    { return strconv.Itoa(e.Value) }
func (e *StringLiteral) String() string { return strconv.Quote(e.Value) }
func (e *BoolLiteral) String() string   { return strconv.FormatBool(e.Value) }
func (e *VariableRef) String() string   { return e.Name }

func (e *FunctionCall) String() string {
	return e.Name + "(" + joinExprs(e.Args, ", ") + ")"
}

func (e *MethodCall) String() string {
	return e.Receiver.String() + "." + e.Method + "(" + joinExprs(e.Args, ", ") + ")"
}

func (e *MemberAccess) String() string {
	return e.Source.String() + "#" + e.Name
}

func (e *IndexedAccess) String() string {
	return e.Source.String() + "[" + strconv.Itoa(e.Index) + "]"
}

func (e *StringConcat) String() string {
	return "concat(" + joinExprs(e.Parts, ", ") + ")"
}

func (e *BooleanAnd) String() string {
	return "and(" + joinExprs(e.Exprs, ", ") + ")"
}

func (e *BooleanNot) String() string {
	return "not(" + e.Expr.String() + ")"
}

func (e *Let) String() string {
	parts := make([]string, len(e.Bindings))
	for i, b := range e.Bindings {
		parts[i] = b.Name + " = " + b.Expr.String()
	}
	return "let(" + strings.Join(parts, ", ") + ")"
}

func (e *Properties) String() string {
	parts := make([]string, len(e.Entries))
	for i, p := range e.Entries {
		parts[i] = strconv.Quote(p.Name) + ": " + p.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (e *Headers) String() string {
	parts := make([]string, len(e.Entries))
	for i, h := range e.Entries {
		parts[i] = strconv.Quote(h.Name) + ": [" + joinExprs(h.Values, ", ") + "]"
	}
	return "headers{" + strings.Join(parts, ", ") + "}"
}

func (e *List) String() string {
	return "[" + joinExprs(e.Items, ", ") + "]"
}

func (e *Endpoint) String() string {
	var b strings.Builder
	b.WriteString("endpoint(url: ")
	b.WriteString(e.URL.String())
	if e.Properties != nil && len(e.Properties.Entries) > 0 {
		b.WriteString(", properties: ")
		b.WriteString(e.Properties.String())
	}
	if e.Headers != nil && len(e.Headers.Entries) > 0 {
		b.WriteString(", ")
		b.WriteString(e.Headers.String())
	}
	b.WriteString(")")
	return b.String()
}

func (e *Error) String() string {
	return "error(" + e.Message.String() + ")"
}

func (e *RuleSet) String() string {
	var b strings.Builder
	e.format(&b, 0)
	return b.String()
}

// format writes an indented outline of the rule tree.
func (e *RuleSet) format(b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%srule %d", indent, e.ID)
	if len(e.Conditions) > 0 {
		b.WriteString(" when ")
		b.WriteString(joinExprs(e.Conditions, ", "))
	}
	switch {
	case e.Endpoint != nil:
		b.WriteString(" -> ")
		b.WriteString(e.Endpoint.String())
		b.WriteString("\n")
	case e.Error != nil:
		b.WriteString(" -> ")
		b.WriteString(e.Error.String())
		b.WriteString("\n")
	default:
		b.WriteString(" {\n")
		for _, c := range e.Children {
			c.format(b, depth+1)
		}
		b.WriteString(indent)
		b.WriteString("}\n")
	}
}

func joinExprs(exprs []Expr, sep string) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, sep)
}
