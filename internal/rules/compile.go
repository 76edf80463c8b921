// internal/rules/compile.go
package rules

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/solatis/waypoint/internal/types"
)

/*
 * Rule set compilation.
 *
 * Compiles a types.Document into a Program ready for concurrent evaluation.
 *
 * Compilation workflow:
 *   1. Build the parameter symbol table from the declarations
 *   2. Parse the rules into an untyped RuleSet (fails on the first error)
 *   3. AssignTypes, aborting with every collected type error
 *   4. PrepareForEvaluation lowers the tree and renames symbols
 *   5. Measure the lowered tree
 *
 * Parameter binding at evaluation time:
 *   - values are keyed by the document's parameter names (canonical names are
 *     accepted too); unknown names and two names for one parameter are rejected
 *   - defaults fill absent values, then required parameters are enforced
 *     before any rule node is visited
 *   - supplying a deprecated parameter logs a warning
 *
 * A Program is immutable after Compile returns.
 */

// CompiledParam is a parameter declaration with its canonical name.
type CompiledParam struct {
	types.ParameterDecl
	Canonical string
}

// Program is a compiled rule set.
type Program struct {
	Version string
	Params  []CompiledParam
	Checked *RuleSet     // typed tree with document names
	RuleSet *RuleSet     // lowered tree evaluated at runtime
	Symbols *SymbolTable // canonical names
	Stats   Stats

	functions *FunctionRegistry
	logger    *zap.Logger
	byName    map[string]int
}

// Compile parses, checks and lowers a rule document. A nil logger disables logging.
func Compile(doc *types.Document, functions *FunctionRegistry, logger *zap.Logger) (*Program, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	symbols, err := SymbolsFromParameters(doc.Parameters)
	if err != nil {
		return nil, err
	}

	parsed, err := ParseRuleSet(doc)
	if err != nil {
		return nil, err
	}
	logger.Debug("parsed rule set", zap.Int("rules", len(doc.Rules)))

	checked := AssignTypes(parsed, symbols, functions)
	if err := checked.Err(); err != nil {
		logger.Debug("type check failed", zap.Int("errors", len(checked.Errors)))
		return nil, err
	}

	lowered, table := PrepareForEvaluation(checked.RuleSet, checked.Symbols)

	p := &Program{
		Version:   doc.Version,
		Checked:   checked.RuleSet,
		RuleSet:   lowered,
		Symbols:   table,
		Stats:     Measure(lowered),
		functions: functions,
		logger:    logger,
		byName:    make(map[string]int, 2*len(doc.Parameters)),
	}
	for i, decl := range doc.Parameters {
		canonical := CanonicalName(decl.Name)
		p.Params = append(p.Params, CompiledParam{ParameterDecl: decl, Canonical: canonical})
		p.byName[decl.Name] = i
		if _, taken := p.byName[canonical]; !taken {
			p.byName[canonical] = i
		}
	}
	logger.Debug("compiled rule set",
		zap.Int("rules", p.Stats.Rules),
		zap.Int("params", len(p.Params)),
		zap.Int("locals", len(table.Locals())),
	)
	return p, nil
}

// Param returns the declaration for a document or canonical parameter name.
func (p *Program) Param(name string) (CompiledParam, bool) {
	i, ok := p.byName[name]
	if !ok {
		return CompiledParam{}, false
	}
	return p.Params[i], true
}

// Bind coerces values and returns them keyed by canonical name, with defaults
// applied and required parameters enforced.
func (p *Program) Bind(values map[string]any, mode CoercionMode) (map[string]any, error) {
	supplied := make(map[string]any, len(values))
	suppliedAs := make(map[string]string, len(values))
	for _, name := range sortedKeys(values) {
		param, ok := p.Param(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", types.ErrUnknownParameter, name)
		}
		if prev, dup := suppliedAs[param.Canonical]; dup {
			return nil, fmt.Errorf("%w: %s supplied as both %s and %s", types.ErrInvalidParameter, param.Name, prev, name)
		}
		suppliedAs[param.Canonical] = name
		if values[name] == nil {
			continue
		}
		v, err := CoerceParam(param.Type, values[name], mode)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", param.Name, err)
		}
		supplied[param.Canonical] = v
	}

	bound := make(map[string]any, len(p.Params))
	for _, param := range p.Params {
		v, ok := supplied[param.Canonical]
		if ok && param.Deprecated != nil {
			p.logger.Warn("deprecated parameter supplied",
				zap.String("parameter", param.Name),
				zap.String("message", param.Deprecated.Message),
				zap.String("since", param.Deprecated.Since),
			)
		}
		if !ok && param.Default != nil {
			def, err := CoerceParam(param.Type, param.Default, CoerceStrict)
			if err != nil {
				return nil, fmt.Errorf("parameter %s default: %w", param.Name, err)
			}
			v, ok = def, true
		}
		if !ok {
			if param.Required {
				return nil, fmt.Errorf("%w: %s", types.ErrMissingParameter, param.Name)
			}
			continue
		}
		bound[param.Canonical] = v
	}
	return bound, nil
}

// Evaluate binds values strictly and walks the rule tree.
func (p *Program) Evaluate(values map[string]any) (Outcome, error) {
	bound, err := p.Bind(values, CoerceStrict)
	if err != nil {
		return Outcome{}, err
	}
	return p.EvaluateBound(bound)
}

// EvaluateBound walks the rule tree with values already returned by Bind.
func (p *Program) EvaluateBound(bound map[string]any) (Outcome, error) {
	return Evaluate(p.RuleSet, p.functions, bound)
}

// ResolveEndpoint evaluates and converts the outcome: an error rule becomes a
// *RuleError and falling off the tree becomes ErrUnresolved.
func (p *Program) ResolveEndpoint(values map[string]any) (*ResolvedEndpoint, error) {
	out, err := p.Evaluate(values)
	if err != nil {
		return nil, err
	}
	return OutcomeEndpointOrError(out)
}

// OutcomeEndpointOrError converts an Outcome into an endpoint or an error.
func OutcomeEndpointOrError(out Outcome) (*ResolvedEndpoint, error) {
	switch out.Kind {
	case OutcomeEndpoint:
		return out.Endpoint, nil
	case OutcomeError:
		return nil, &RuleError{RuleID: out.RuleID, Message: out.Error}
	default:
		return nil, types.ErrUnresolved
	}
}
