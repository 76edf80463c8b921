package types

import "errors"

// Sentinel errors for waypoint operations.
var (
	// ErrInvalidDocument indicates the rule document does not have the expected shape.
	ErrInvalidDocument = errors.New("invalid rule document")

	// ErrDocumentTooLarge indicates the raw document exceeds MaxDocumentSize.
	ErrDocumentTooLarge = errors.New("rule document exceeds maximum size")

	// ErrRuleTooDeep indicates rule nesting exceeds MaxRuleDepth.
	ErrRuleTooDeep = errors.New("rule nesting exceeds maximum depth")

	// ErrParse indicates a malformed rule, condition, or string template.
	ErrParse = errors.New("rule parse error")

	// ErrTypeCheck indicates one or more type errors were found in a rule set.
	ErrTypeCheck = errors.New("rule set failed type checking")

	// ErrSymbolConflict indicates a name is declared as both parameter and local.
	ErrSymbolConflict = errors.New("name declared as both parameter and local")

	// ErrLocalTypeConflict indicates a local is rebound with a different type.
	ErrLocalTypeConflict = errors.New("local rebound with a different type")

	// ErrMissingParameter indicates a required parameter has no value.
	ErrMissingParameter = errors.New("required parameter is missing")

	// ErrInvalidParameter indicates a parameter value does not match its declared type.
	ErrInvalidParameter = errors.New("invalid parameter value")

	// ErrUnknownParameter indicates a value was supplied for an undeclared parameter.
	ErrUnknownParameter = errors.New("unknown parameter")

	// ErrUnresolved indicates evaluation fell off the end of the rule tree.
	ErrUnresolved = errors.New("rule engine did not resolve to an endpoint or error")

	// ErrEvaluation indicates a terminal node could not be built from its expressions.
	ErrEvaluation = errors.New("rule evaluation failed")

	// ErrRuleSetNotFound indicates no rule set is stored for a service.
	ErrRuleSetNotFound = errors.New("rule set not found")
)
