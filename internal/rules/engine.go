package rules

import (
	"go.uber.org/zap"

	"github.com/solatis/waypoint/internal/types"
)

// Engine holds the function registry shared by every compiled rule set.
type Engine struct {
	functions  *FunctionRegistry
	partitions *Partitions
	logger     *zap.Logger
}

// NewEngine creates an engine over the standard library. A nil partitions
// table uses the embedded one; a nil logger disables logging.
func NewEngine(partitions *Partitions, logger *zap.Logger) *Engine {
	if partitions == nil {
		partitions = DefaultPartitions()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		functions:  StandardLibrary(partitions),
		partitions: partitions,
		logger:     logger,
	}
}

// Functions returns the engine's function registry.
func (e *Engine) Functions() *FunctionRegistry { return e.functions }

// Partitions returns the partition table backing aws.partition.
func (e *Engine) Partitions() *Partitions { return e.partitions }

// Compile compiles a decoded document.
func (e *Engine) Compile(doc *types.Document) (*Program, error) {
	return Compile(doc, e.functions, e.logger)
}

// CompileBytes decodes and compiles a JSON or YAML document.
func (e *Engine) CompileBytes(data []byte) (*Program, error) {
	doc, err := types.LoadDocument(data)
	if err != nil {
		return nil, err
	}
	return e.Compile(doc)
}

// Check parses and type-checks doc without lowering. A parse failure is
// returned as an error; type errors are listed in the result.
func (e *Engine) Check(doc *types.Document) (*CheckResult, error) {
	symbols, err := SymbolsFromParameters(doc.Parameters)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseRuleSet(doc)
	if err != nil {
		return nil, err
	}
	return AssignTypes(parsed, symbols, e.functions), nil
}
