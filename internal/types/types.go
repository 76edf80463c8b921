// Package types provides the rule document model shared across waypoint components.
//
// The document model is wire-format agnostic: JSON documents decode into ordered
// Node trees, YAML documents are converted to JSON first by the loader. The rules
// package parses Node trees into its expression AST; nothing here knows about
// expressions or evaluation.
package types

import (
	"fmt"
	"strings"
)

// ParamType is the declared type of a rule set parameter.
type ParamType string

const (
	ParamTypeString      ParamType = "string"
	ParamTypeBoolean     ParamType = "boolean"
	ParamTypeStringArray ParamType = "stringArray"
)

// ParseParamType converts a document type tag to ParamType. Case-insensitive.
func ParseParamType(s string) (ParamType, error) {
	switch strings.ToLower(s) {
	case "string":
		return ParamTypeString, nil
	case "boolean":
		return ParamTypeBoolean, nil
	case "stringarray":
		return ParamTypeStringArray, nil
	default:
		return "", fmt.Errorf("%w: unknown parameter type %q", ErrInvalidDocument, s)
	}
}

// RuleKind is the type tag of one rule in a document.
type RuleKind string

const (
	RuleKindTree     RuleKind = "tree"
	RuleKindEndpoint RuleKind = "endpoint"
	RuleKindError    RuleKind = "error"
)

// Resource limits enforced while loading and parsing rule documents.
const (
	// MaxDocumentSize bounds memory used while decoding a single document.
	// 4MB is an order of magnitude above the largest published rule sets.
	MaxDocumentSize = 4 * 1024 * 1024

	// MaxRuleDepth prevents stack exhaustion in the recursive parser and evaluator.
	MaxRuleDepth = 64

	// MaxParameters bounds the symbol table size of a single rule set.
	MaxParameters = 256
)
