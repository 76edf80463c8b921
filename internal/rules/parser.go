// internal/rules/parser.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/waypoint/internal/types"
)

/*
 * Rule document parser.
 *
 * Workflow:
 *   1. ParseRuleSet wraps the document's top-level rules in a synthetic tree
 *      node (ruleId 0, no conditions)
 *   2. Each rule is parsed recursively; ruleIds are assigned depth-first in
 *      pre-order so a parent always has a smaller id than its children
 *   3. Conditions are grouped in a single pass: consecutive assigns form one
 *      Let, consecutive plain conditions form one BooleanAnd, and every flushed
 *      group is simplified
 *   4. Values become literals, references, function calls, lists or property
 *      maps; strings containing '{' or '[' go through ParseTemplate
 *
 * Parsing never recovers: the first malformed shape fails the whole rule set.
 */

// ParseError reports a malformed rule document, condition or template.
type ParseError struct {
	Msg   string
	Token string // offending token, empty for shape errors
	Input string // template or value being parsed, may be empty
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Msg)
	if e.Token != "" {
		b.WriteString(" at ")
		b.WriteString(e.Token)
	}
	if e.Input != "" {
		fmt.Fprintf(&b, " in %q", e.Input)
	}
	return b.String()
}

// Unwrap lets callers match any parse failure with errors.Is(err, types.ErrParse).
func (e *ParseError) Unwrap() error { return types.ErrParse }

func shapeError(format string, args ...any) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

// parser carries the ruleId counter across one document.
type parser struct {
	nextID int
}

// ParseRuleSet parses all rules of a document under a synthetic root tree.
func ParseRuleSet(doc *types.Document) (*RuleSet, error) {
	p := &parser{}
	root := &RuleSet{ID: p.allocID(), Children: make([]*RuleSet, 0, len(doc.Rules))}
	for i, n := range doc.Rules {
		child, err := p.parseRule(n, 1)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		root.Children = append(root.Children, child)
	}
	return root, nil
}

func (p *parser) allocID() int {
	id := p.nextID
	p.nextID++
	return id
}

func (p *parser) parseRule(n *types.Node, depth int) (*RuleSet, error) {
	if depth > types.MaxRuleDepth {
		return nil, fmt.Errorf("%w: depth %d", types.ErrRuleTooDeep, depth)
	}
	if n == nil || n.Kind != types.NodeObject {
		return nil, shapeError("rule must be an object, found %s", kindOf(n))
	}
	id := p.allocID()

	kindNode, ok := n.Get("type")
	if !ok || kindNode.Kind != types.NodeString {
		return nil, shapeError("rule %d: missing type", id)
	}

	var conditions []Expr
	if condNode, ok := n.Get("conditions"); ok {
		if condNode.Kind != types.NodeArray {
			return nil, shapeError("rule %d: conditions must be an array, found %s", id, condNode.Kind)
		}
		var err error
		conditions, err = ParseConditions(condNode.Items)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", id, err)
		}
	}

	var rs *RuleSet
	var err error
	switch types.RuleKind(kindNode.Str) {
	case types.RuleKindTree:
		rs, err = p.parseTree(n, id, conditions, depth)
	case types.RuleKindEndpoint:
		rs, err = parseEndpointRule(n, id, conditions)
	case types.RuleKindError:
		rs, err = parseErrorRule(n, id, conditions)
	default:
		return nil, shapeError("rule %d: unknown rule type %q", id, kindNode.Str)
	}
	if err != nil {
		return nil, err
	}
	rs.ID = id
	if doc, ok := n.Get("documentation"); ok && doc.Kind == types.NodeString {
		rs.Documentation = doc.Str
	}
	return rs, nil
}

func (p *parser) parseTree(n *types.Node, id int, conditions []Expr, depth int) (*RuleSet, error) {
	rulesNode, ok := n.Get("rules")
	if !ok || rulesNode.Kind != types.NodeArray {
		return nil, shapeError("rule %d: tree rule requires a rules array", id)
	}
	children := make([]*RuleSet, 0, len(rulesNode.Items))
	for i, c := range rulesNode.Items {
		child, err := p.parseRule(c, depth+1)
		if err != nil {
			return nil, fmt.Errorf("rule %d: rules[%d]: %w", id, i, err)
		}
		children = append(children, child)
	}
	return NewRuleSet(conditions, children, nil, nil)
}

func parseEndpointRule(n *types.Node, id int, conditions []Expr) (*RuleSet, error) {
	epNode, ok := n.Get("endpoint")
	if !ok {
		return nil, shapeError("rule %d: endpoint rule requires an endpoint", id)
	}
	ep, err := ParseEndpoint(epNode)
	if err != nil {
		return nil, fmt.Errorf("rule %d: %w", id, err)
	}
	return NewRuleSet(conditions, nil, ep, nil)
}

func parseErrorRule(n *types.Node, id int, conditions []Expr) (*RuleSet, error) {
	errNode, ok := n.Get("error")
	if !ok {
		return nil, shapeError("rule %d: error rule requires an error", id)
	}
	msg, err := ParseValue(errNode)
	if err != nil {
		return nil, fmt.Errorf("rule %d: error: %w", id, err)
	}
	return NewRuleSet(conditions, nil, nil, &Error{Message: msg})
}

// ParseEndpoint parses {"url": ..., "properties": {...}, "headers": {...}}.
func ParseEndpoint(n *types.Node) (*Endpoint, error) {
	if n.Kind != types.NodeObject {
		return nil, shapeError("endpoint must be an object, found %s", n.Kind)
	}
	urlNode, ok := n.Get("url")
	if !ok {
		return nil, shapeError("endpoint requires a url")
	}
	url, err := ParseValue(urlNode)
	if err != nil {
		return nil, fmt.Errorf("endpoint url: %w", err)
	}
	ep := &Endpoint{URL: url, Properties: &Properties{}, Headers: &Headers{}}

	if propsNode, ok := n.Get("properties"); ok {
		if propsNode.Kind != types.NodeObject {
			return nil, shapeError("endpoint properties must be an object, found %s", propsNode.Kind)
		}
		props, err := parseProperties(propsNode)
		if err != nil {
			return nil, fmt.Errorf("endpoint properties: %w", err)
		}
		ep.Properties = props
	}

	if headersNode, ok := n.Get("headers"); ok {
		if headersNode.Kind != types.NodeObject {
			return nil, shapeError("endpoint headers must be an object, found %s", headersNode.Kind)
		}
		for _, f := range headersNode.Fields {
			if f.Value.Kind != types.NodeArray {
				return nil, shapeError("header %s: expected array, found %s", f.Key, f.Value.Kind)
			}
			values := make([]Expr, 0, len(f.Value.Items))
			for _, item := range f.Value.Items {
				v, err := ParseValue(item)
				if err != nil {
					return nil, fmt.Errorf("header %s: %w", f.Key, err)
				}
				values = append(values, v)
			}
			ep.Headers.Entries = append(ep.Headers.Entries, Header{Name: f.Key, Values: values})
		}
	}
	return ep, nil
}

// ParseConditions parses and groups a condition list, preserving order.
func ParseConditions(nodes []*types.Node) ([]Expr, error) {
	var (
		out      []Expr
		exprs    []Expr
		bindings []Binding
	)
	flush := func() {
		switch {
		case len(exprs) > 0:
			out = append(out, Simplify(&BooleanAnd{Exprs: exprs}))
			exprs = nil
		case len(bindings) > 0:
			out = append(out, Simplify(&Let{Bindings: bindings}))
			bindings = nil
		}
	}

	for i, n := range nodes {
		cond, assign, err := parseCondition(n)
		if err != nil {
			return nil, fmt.Errorf("conditions[%d]: %w", i, err)
		}
		if assign != "" {
			if len(exprs) > 0 {
				flush()
			}
			bindings = append(bindings, Binding{Name: assign, Expr: cond})
			continue
		}
		if len(bindings) > 0 {
			flush()
		}
		exprs = append(exprs, cond)
	}
	flush()
	return out, nil
}

func parseCondition(n *types.Node) (Expr, string, error) {
	if n == nil || n.Kind != types.NodeObject || !n.Has("fn") {
		return nil, "", shapeError("condition must be a function call object")
	}
	cond, err := parseFunction(n)
	if err != nil {
		return nil, "", err
	}
	assign := ""
	if a, ok := n.Get("assign"); ok {
		if a.Kind != types.NodeString || !IsIdentifier(a.Str) {
			return nil, "", shapeError("assign must be an identifier")
		}
		assign = a.Str
	}
	return cond, assign, nil
}

// ParseValue converts one document value into an expression.
func ParseValue(n *types.Node) (Expr, error) {
	if n == nil {
		return nil, shapeError("missing value")
	}
	switch n.Kind {
	case types.NodeString:
		if strings.ContainsAny(n.Str, "{[") {
			return ParseTemplate(n.Str)
		}
		return &StringLiteral{Value: n.Str}, nil
	case types.NodeBool:
		return &BoolLiteral{Value: n.Bool}, nil
	case types.NodeNumber:
		i, ok := n.Int()
		if !ok {
			return nil, shapeError("number %s is not an integer", n.Number)
		}
		return &IntLiteral{Value: i}, nil
	case types.NodeArray:
		items := make([]Expr, 0, len(n.Items))
		for i, item := range n.Items {
			v, err := ParseValue(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, v)
		}
		return &List{Items: items}, nil
	case types.NodeObject:
		if n.Has("fn") {
			return parseFunction(n)
		}
		if ref, ok := n.Get("ref"); ok {
			if ref.Kind != types.NodeString || !IsIdentifier(ref.Str) {
				return nil, shapeError("ref must be an identifier")
			}
			return &VariableRef{Name: ref.Str}, nil
		}
		return parseProperties(n)
	default:
		return nil, shapeError("unexpected %s value", n.Kind)
	}
}

func parseProperties(n *types.Node) (*Properties, error) {
	props := &Properties{Entries: make([]PropertyValue, 0, len(n.Fields))}
	for _, f := range n.Fields {
		v, err := ParseValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Key, err)
		}
		props.Entries = append(props.Entries, PropertyValue{Name: f.Key, Value: v})
	}
	return props, nil
}

// parseFunction parses {"fn": name, "argv": [...]}. getAttr and not are
// special-cased into access and negation nodes.
func parseFunction(n *types.Node) (Expr, error) {
	fnNode, _ := n.Get("fn")
	if fnNode.Kind != types.NodeString || fnNode.Str == "" {
		return nil, shapeError("fn must be a non-empty string")
	}
	name := fnNode.Str

	var argNodes []*types.Node
	if argv, ok := n.Get("argv"); ok {
		if argv.Kind != types.NodeArray {
			return nil, shapeError("%s: argv must be an array, found %s", name, argv.Kind)
		}
		argNodes = argv.Items
	}

	switch name {
	case "getAttr":
		if len(argNodes) != 2 {
			return nil, shapeError("getAttr: expected 2 arguments, found %d", len(argNodes))
		}
		if argNodes[1].Kind != types.NodeString {
			return nil, shapeError("getAttr: second argument must be a string, found %s", argNodes[1].Kind)
		}
		source, err := ParseValue(argNodes[0])
		if err != nil {
			return nil, fmt.Errorf("getAttr: %w", err)
		}
		path, err := ParseAttrPath(argNodes[1].Str)
		if err != nil {
			return nil, fmt.Errorf("getAttr: %w", err)
		}
		return accessExpr(source, path), nil
	case "not":
		if len(argNodes) != 1 {
			return nil, shapeError("not: expected 1 argument, found %d", len(argNodes))
		}
		arg, err := ParseValue(argNodes[0])
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return &BooleanNot{Expr: arg}, nil
	}

	args := make([]Expr, 0, len(argNodes))
	for i, a := range argNodes {
		v, err := ParseValue(a)
		if err != nil {
			return nil, fmt.Errorf("%s: argv[%d]: %w", name, i, err)
		}
		args = append(args, v)
	}
	return &FunctionCall{Name: name, Args: args}, nil
}

func kindOf(n *types.Node) string {
	if n == nil {
		return "nothing"
	}
	return n.Kind.String()
}
