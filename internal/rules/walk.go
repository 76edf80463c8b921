package rules

import "fmt"

// Inspect walks e in depth-first pre-order. If fn returns false the children
// of that node are skipped.
func Inspect(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *IntLiteral, *StringLiteral, *BoolLiteral, *VariableRef:
	case *FunctionCall:
		inspectAll(n.Args, fn)
	case *MethodCall:
		Inspect(n.Receiver, fn)
		inspectAll(n.Args, fn)
	case *MemberAccess:
		Inspect(n.Source, fn)
	case *IndexedAccess:
		Inspect(n.Source, fn)
	case *StringConcat:
		inspectAll(n.Parts, fn)
	case *BooleanAnd:
		inspectAll(n.Exprs, fn)
	case *BooleanNot:
		Inspect(n.Expr, fn)
	case *Let:
		for _, b := range n.Bindings {
			Inspect(b.Expr, fn)
		}
	case *Properties:
		for _, p := range n.Entries {
			Inspect(p.Value, fn)
		}
	case *Headers:
		for _, h := range n.Entries {
			inspectAll(h.Values, fn)
		}
	case *List:
		inspectAll(n.Items, fn)
	case *Endpoint:
		Inspect(n.URL, fn)
		if n.Properties != nil {
			Inspect(n.Properties, fn)
		}
		if n.Headers != nil {
			Inspect(n.Headers, fn)
		}
	case *Error:
		Inspect(n.Message, fn)
	case *RuleSet:
		inspectAll(n.Conditions, fn)
		for _, c := range n.Children {
			Inspect(c, fn)
		}
		if n.Endpoint != nil {
			Inspect(n.Endpoint, fn)
		}
		if n.Error != nil {
			Inspect(n.Error, fn)
		}
	default:
		panic(fmt.Sprintf("rules: unknown expression kind %T", e))
	}
}

func inspectAll(exprs []Expr, fn func(Expr) bool) {
	for _, e := range exprs {
		Inspect(e, fn)
	}
}

// Transform rebuilds e bottom-up: children are transformed first, then fn is
// applied to a copy of the node holding the new children. The input tree is not
// modified. fn must return a *RuleSet, *Endpoint, *Error, *Properties or
// *Headers when given one, because those slots are typed.
func Transform(e Expr, fn func(Expr) Expr) Expr {
	switch n := e.(type) {
	case *IntLiteral:
		c := *n
		return fn(&c)
	case *StringLiteral:
		c := *n
		return fn(&c)
	case *BoolLiteral:
		c := *n
		return fn(&c)
	case *VariableRef:
		c := *n
		return fn(&c)
	case *FunctionCall:
		c := *n
		c.Args = transformAll(n.Args, fn)
		return fn(&c)
	case *MethodCall:
		c := *n
		c.Receiver = Transform(n.Receiver, fn)
		c.Args = transformAll(n.Args, fn)
		return fn(&c)
	case *MemberAccess:
		c := *n
		c.Source = Transform(n.Source, fn)
		return fn(&c)
	case *IndexedAccess:
		c := *n
		c.Source = Transform(n.Source, fn)
		return fn(&c)
	case *StringConcat:
		c := *n
		c.Parts = transformAll(n.Parts, fn)
		return fn(&c)
	case *BooleanAnd:
		c := *n
		c.Exprs = transformAll(n.Exprs, fn)
		return fn(&c)
	case *BooleanNot:
		c := *n
		c.Expr = Transform(n.Expr, fn)
		return fn(&c)
	case *Let:
		c := *n
		c.Bindings = make([]Binding, len(n.Bindings))
		for i, b := range n.Bindings {
			c.Bindings[i] = Binding{Name: b.Name, Expr: Transform(b.Expr, fn)}
		}
		return fn(&c)
	case *Properties:
		return fn(transformProperties(n, fn))
	case *Headers:
		return fn(transformHeaders(n, fn))
	case *List:
		c := *n
		c.Items = transformAll(n.Items, fn)
		return fn(&c)
	case *Endpoint:
		c := *n
		c.URL = Transform(n.URL, fn)
		if n.Properties != nil {
			c.Properties = mustProperties(fn(transformProperties(n.Properties, fn)))
		}
		if n.Headers != nil {
			c.Headers = mustHeaders(fn(transformHeaders(n.Headers, fn)))
		}
		return fn(&c)
	case *Error:
		c := *n
		c.Message = Transform(n.Message, fn)
		return fn(&c)
	case *RuleSet:
		c := *n
		c.Conditions = transformAll(n.Conditions, fn)
		if n.Children != nil {
			c.Children = make([]*RuleSet, len(n.Children))
			for i, child := range n.Children {
				c.Children[i] = mustRuleSet(Transform(child, fn))
			}
		}
		if n.Endpoint != nil {
			c.Endpoint = mustEndpoint(Transform(n.Endpoint, fn))
		}
		if n.Error != nil {
			c.Error = mustError(Transform(n.Error, fn))
		}
		return fn(&c)
	default:
		panic(fmt.Sprintf("rules: unknown expression kind %T", e))
	}
}

func transformAll(exprs []Expr, fn func(Expr) Expr) []Expr {
	if exprs == nil {
		return nil
	}
	out := make([]Expr, len(exprs))
	for i, e := range exprs {
		out[i] = Transform(e, fn)
	}
	return out
}

func transformProperties(n *Properties, fn func(Expr) Expr) *Properties {
	c := *n
	c.Entries = make([]PropertyValue, len(n.Entries))
	for i, p := range n.Entries {
		c.Entries[i] = PropertyValue{Name: p.Name, Value: Transform(p.Value, fn)}
	}
	return &c
}

func transformHeaders(n *Headers, fn func(Expr) Expr) *Headers {
	c := *n
	c.Entries = make([]Header, len(n.Entries))
	for i, h := range n.Entries {
		c.Entries[i] = Header{Name: h.Name, Values: transformAll(h.Values, fn)}
	}
	return &c
}

func mustRuleSet(e Expr) *RuleSet {
	rs, ok := e.(*RuleSet)
	if !ok {
		panic(fmt.Sprintf("rules: expected *RuleSet, got %T", e))
	}
	return rs
}

func mustEndpoint(e Expr) *Endpoint {
	ep, ok := e.(*Endpoint)
	if !ok {
		panic(fmt.Sprintf("rules: expected *Endpoint, got %T", e))
	}
	return ep
}

func mustError(e Expr) *Error {
	er, ok := e.(*Error)
	if !ok {
		panic(fmt.Sprintf("rules: expected *Error, got %T", e))
	}
	return er
}

func mustProperties(e Expr) *Properties {
	p, ok := e.(*Properties)
	if !ok {
		panic(fmt.Sprintf("rules: expected *Properties, got %T", e))
	}
	return p
}

func mustHeaders(e Expr) *Headers {
	h, ok := e.(*Headers)
	if !ok {
		panic(fmt.Sprintf("rules: expected *Headers, got %T", e))
	}
	return h
}
