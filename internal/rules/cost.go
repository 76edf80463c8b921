// internal/rules/cost.go
package rules

/*
 * Rule set size model.
 *
 * Measure walks a rule tree once and counts what evaluation may touch. The
 * worst-case evaluation work of a rule set is bounded by these numbers: every
 * condition is evaluated at most once per request and the walk never goes
 * deeper than MaxDepth.
 *
 * Counts are reported by the Check RPC.
 */

// Stats summarizes the shape of a rule tree.
type Stats struct {
	Rules      int // every node, including the synthetic root
	Trees      int
	Endpoints  int
	Errors     int
	Conditions int // condition groups after grouping
	Bindings   int // let bindings across all groups
	Calls      int // function and method calls
	MaxDepth   int // root has depth 0
}

// Measure computes Stats for rs.
func Measure(rs *RuleSet) Stats {
	var s Stats
	measure(rs, 0, &s)
	return s
}

func measure(rs *RuleSet, depth int, s *Stats) {
	s.Rules++
	if depth > s.MaxDepth {
		s.MaxDepth = depth
	}
	s.Conditions += len(rs.Conditions)
	for _, c := range rs.Conditions {
		countCalls(c, s)
	}
	switch {
	case rs.Endpoint != nil:
		s.Endpoints++
		countCalls(rs.Endpoint, s)
	case rs.Error != nil:
		s.Errors++
		countCalls(rs.Error, s)
	default:
		s.Trees++
		for _, c := range rs.Children {
			measure(c, depth+1, s)
		}
	}
}

func countCalls(e Expr, s *Stats) {
	Inspect(e, func(n Expr) bool {
		switch x := n.(type) {
		case *FunctionCall, *MethodCall:
			s.Calls++
		case *Let:
			s.Bindings += len(x.Bindings)
		}
		return true
	})
}
