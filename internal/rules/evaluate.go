// internal/rules/evaluate.go
package rules

import (
	"fmt"

	"github.com/solatis/waypoint/internal/types"
)

/*
 * Rule evaluation.
 *
 * Walks a rule tree against parameter values and returns one of three
 * outcomes: carry on, endpoint, or error.
 *
 * Evaluation flow per rule node:
 *   1. Conditions in order. A Let evaluates each binding and stores it in the
 *      current scope; any absent binding skips the node. Any other condition
 *      must evaluate to true, otherwise the node is skipped.
 *   2. Terminal:
 *        - tree: children in document order, first resolved outcome wins
 *        - endpoint: URL, headers and properties are evaluated and returned
 *        - error: the message is evaluated and returned
 *
 * Scoping: each tree node opens one child scope shared by all its children.
 * Bindings made by one child stay visible to later siblings and to their
 * descendants, never to the parent or to unrelated subtrees. Skipped nodes
 * keep the bindings they made before failing.
 *
 * Absence is a value: unset parameters, missing members, out of range indexes
 * and functions given unusable input all evaluate to nil. not and equals
 * propagate an absent operand, so lowering never changes an outcome. Only a terminal that
 * cannot be built from its expressions is an evaluation error.
 *
 * Evaluation allocates all of its state per call and never mutates the tree,
 * so a rule set can be evaluated concurrently.
 */

// OutcomeKind tags an evaluation Outcome.
type OutcomeKind int

const (
	OutcomeCarryOn OutcomeKind = iota
	OutcomeEndpoint
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeEndpoint:
		return "endpoint"
	case OutcomeError:
		return "error"
	default:
		return "carry-on"
	}
}

// AuthScheme is one entry of the authSchemes endpoint property.
type AuthScheme struct {
	Name       string
	Properties map[string]any
}

// ResolvedEndpoint is the value of a matched endpoint rule.
type ResolvedEndpoint struct {
	URL         string
	Headers     map[string][]string
	Properties  map[string]any // every property except authSchemes
	AuthSchemes []AuthScheme
}

// Outcome is the result of evaluating a rule tree.
type Outcome struct {
	Kind     OutcomeKind
	RuleID   int // id of the terminal rule; 0 for carry on
	Endpoint *ResolvedEndpoint
	Error    string
}

// RuleError is an error outcome modeled by the rule set itself.
type RuleError struct {
	RuleID  int
	Message string
}

func (e *RuleError) Error() string { return e.Message }

// scope is one level of local bindings.
type scope struct {
	vars   map[string]any
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]any), parent: parent}
}

func (s *scope) lookup(name string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

type evaluator struct {
	functions *FunctionRegistry
	params    map[string]any
}

// Evaluate walks rs with the given parameter values. Values are keyed by the
// names the tree references: canonical names for a lowered tree. Parameter
// validation is the caller's job; see Program.Evaluate.
func Evaluate(rs *RuleSet, functions *FunctionRegistry, params map[string]any) (Outcome, error) {
	ev := &evaluator{functions: functions, params: params}
	return ev.evalRule(rs, newScope(nil))
}

func (ev *evaluator) evalRule(rs *RuleSet, sc *scope) (Outcome, error) {
	for _, cond := range rs.Conditions {
		if let, ok := cond.(*Let); ok {
			for _, b := range let.Bindings {
				v, err := ev.eval(b.Expr, sc)
				if err != nil {
					return Outcome{}, err
				}
				if v == nil {
					return Outcome{Kind: OutcomeCarryOn}, nil
				}
				sc.vars[b.Name] = v
			}
			continue
		}
		v, err := ev.eval(cond, sc)
		if err != nil {
			return Outcome{}, err
		}
		if !isTrue(v) {
			return Outcome{Kind: OutcomeCarryOn}, nil
		}
	}

	switch {
	case rs.Endpoint != nil:
		ep, err := ev.buildEndpoint(rs.Endpoint, sc, rs.ID)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: OutcomeEndpoint, RuleID: rs.ID, Endpoint: ep}, nil
	case rs.Error != nil:
		msg, err := ev.eval(rs.Error.Message, sc)
		if err != nil {
			return Outcome{}, err
		}
		s, ok := msg.(string)
		if !ok {
			return Outcome{}, fmt.Errorf("%w: rule %d: error message evaluated to %s", types.ErrEvaluation, rs.ID, formatValue(msg))
		}
		return Outcome{Kind: OutcomeError, RuleID: rs.ID, Error: s}, nil
	default:
		child := newScope(sc)
		for _, c := range rs.Children {
			out, err := ev.evalRule(c, child)
			if err != nil {
				return Outcome{}, err
			}
			if out.Kind != OutcomeCarryOn {
				return out, nil
			}
		}
		return Outcome{Kind: OutcomeCarryOn}, nil
	}
}

func (ev *evaluator) eval(e Expr, sc *scope) (any, error) {
	switch n := e.(type) {
	case *IntLiteral:
		return n.Value, nil
	case *StringLiteral:
		return n.Value, nil
	case *BoolLiteral:
		return n.Value, nil
	case *VariableRef:
		if v, ok := sc.lookup(n.Name); ok {
			return v, nil
		}
		return ev.params[n.Name], nil
	case *MemberAccess, *IndexedAccess:
		root, path := accessChain(e)
		if m, ok := root.(*MemberAccess); ok {
			if ref, ok := m.Source.(*VariableRef); ok {
				switch ref.Name {
				case ParamsContainer:
					return Resolve(ev.params[m.Name], path), nil
				case LocalsContainer:
					v, _ := sc.lookup(m.Name)
					return Resolve(v, path), nil
				}
			}
		}
		src, err := ev.eval(root, sc)
		if err != nil {
			return nil, err
		}
		return Resolve(src, path), nil
	case *FunctionCall:
		return ev.call(n, sc)
	case *MethodCall:
		recv, err := ev.eval(n.Receiver, sc)
		if err != nil {
			return nil, err
		}
		args, err := ev.evalAll(n.Args, sc)
		if err != nil {
			return nil, err
		}
		v, ok := applyMethod(n.Method, recv, args)
		if !ok {
			return nil, fmt.Errorf("%w: unknown method %s", types.ErrEvaluation, n.Method)
		}
		return v, nil
	case *StringConcat:
		var out []byte
		for _, p := range n.Parts {
			v, err := ev.eval(p, sc)
			if err != nil {
				return nil, err
			}
			s, ok := v.(string)
			if !ok {
				return nil, nil
			}
			out = append(out, s...)
		}
		return string(out), nil
	case *BooleanAnd:
		for _, x := range n.Exprs {
			v, err := ev.eval(x, sc)
			if err != nil {
				return nil, err
			}
			if !isTrue(v) {
				return false, nil
			}
		}
		return true, nil
	case *BooleanNot:
		v, err := ev.eval(n.Expr, sc)
		if err != nil {
			return nil, err
		}
		b, ok := v.(bool)
		if !ok {
			return nil, nil
		}
		return !b, nil
	case *List:
		return ev.evalAll(n.Items, sc)
	case *Properties:
		fields := make([]RecordField, 0, len(n.Entries))
		for _, p := range n.Entries {
			v, err := ev.eval(p.Value, sc)
			if err != nil {
				return nil, err
			}
			fields = append(fields, RecordField{Name: p.Name, Value: v})
		}
		return NewRecord(n.Typ, fields...), nil
	default:
		return nil, fmt.Errorf("%w: cannot evaluate %T", types.ErrEvaluation, e)
	}
}

// accessChain splits a chain of member and index accesses into the innermost
// source and the path walked from it. A member access on the params or locals
// container stays the root.
func accessChain(e Expr) (Expr, []PathSegment) {
	var rev []PathSegment
	for {
		switch n := e.(type) {
		case *MemberAccess:
			if ref, ok := n.Source.(*VariableRef); ok && (ref.Name == ParamsContainer || ref.Name == LocalsContainer) {
				return reversePath(e, rev)
			}
			rev = append(rev, PathSegment{Key: n.Name})
			e = n.Source
		case *IndexedAccess:
			rev = append(rev, PathSegment{Index: n.Index, IsIndex: true})
			e = n.Source
		default:
			return reversePath(e, rev)
		}
	}
}

func reversePath(root Expr, rev []PathSegment) (Expr, []PathSegment) {
	path := make([]PathSegment, len(rev))
	for i, seg := range rev {
		path[len(rev)-1-i] = seg
	}
	return root, path
}

func (ev *evaluator) evalAll(exprs []Expr, sc *scope) ([]any, error) {
	out := make([]any, len(exprs))
	for i, x := range exprs {
		v, err := ev.eval(x, sc)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// call evaluates a function call. Any absent argument to a registered
// function makes the result absent.
func (ev *evaluator) call(n *FunctionCall, sc *scope) (any, error) {
	args, err := ev.evalAll(n.Args, sc)
	if err != nil {
		return nil, err
	}
	if v, ok := applyIntrinsic(n.Name, args); ok {
		return v, nil
	}
	fn, ok := ev.functions.Lookup(n.Name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown function %s", types.ErrEvaluation, n.Name)
	}
	for _, a := range args {
		if a == nil {
			return nil, nil
		}
	}
	return fn.Call(args), nil
}

func (ev *evaluator) buildEndpoint(ep *Endpoint, sc *scope, ruleID int) (*ResolvedEndpoint, error) {
	u, err := ev.eval(ep.URL, sc)
	if err != nil {
		return nil, err
	}
	url, ok := u.(string)
	if !ok {
		return nil, fmt.Errorf("%w: rule %d: endpoint url evaluated to %s", types.ErrEvaluation, ruleID, formatValue(u))
	}
	out := &ResolvedEndpoint{
		URL:        url,
		Headers:    make(map[string][]string),
		Properties: make(map[string]any),
	}

	if ep.Headers != nil {
		for _, h := range ep.Headers.Entries {
			for _, x := range h.Values {
				v, err := ev.eval(x, sc)
				if err != nil {
					return nil, err
				}
				s, ok := v.(string)
				if !ok {
					return nil, fmt.Errorf("%w: rule %d: header %s value evaluated to %s", types.ErrEvaluation, ruleID, h.Name, formatValue(v))
				}
				out.Headers[h.Name] = append(out.Headers[h.Name], s)
			}
		}
	}

	if ep.Properties != nil {
		for _, p := range ep.Properties.Entries {
			v, err := ev.eval(p.Value, sc)
			if err != nil {
				return nil, err
			}
			if p.Name == "authSchemes" {
				schemes, err := authSchemes(v)
				if err != nil {
					return nil, fmt.Errorf("%w: rule %d: %v", types.ErrEvaluation, ruleID, err)
				}
				out.AuthSchemes = schemes
				continue
			}
			if v != nil {
				out.Properties[p.Name] = PlainValue(v)
			}
		}
	}
	return out, nil
}

// authSchemes converts the authSchemes property into ordered descriptors.
// Each entry must be a record with a string "name".
func authSchemes(v any) ([]AuthScheme, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("authSchemes must be a list, got %s", formatValue(v))
	}
	out := make([]AuthScheme, 0, len(list))
	for i, item := range list {
		r, ok := item.(*Record)
		if !ok {
			return nil, fmt.Errorf("authSchemes[%d] must be an object, got %s", i, formatValue(item))
		}
		name, ok := r.Get("name").(string)
		if !ok {
			return nil, fmt.Errorf("authSchemes[%d] has no name", i)
		}
		props := r.Map()
		delete(props, "name")
		out = append(out, AuthScheme{Name: name, Properties: props})
	}
	return out, nil
}
