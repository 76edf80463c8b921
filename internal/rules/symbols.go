package rules

import (
	"fmt"

	"github.com/solatis/waypoint/internal/types"
)

// Symbol is one entry of a SymbolTable.
type Symbol struct {
	Name    string
	Type    *Type
	BuiltIn string // built-in parameter tag; always empty for locals
}

// SymbolTable holds the disjoint parameter and local namespaces of a rule set.
// Tables are immutable; use ToBuilder to derive a new one.
type SymbolTable struct {
	params   []Symbol
	locals   []Symbol
	paramIdx map[string]int
	localIdx map[string]int
}

// Param looks up a parameter by name.
func (s *SymbolTable) Param(name string) (Symbol, bool) {
	if i, ok := s.paramIdx[name]; ok {
		return s.params[i], true
	}
	return Symbol{}, false
}

// Local looks up a local by name.
func (s *SymbolTable) Local(name string) (Symbol, bool) {
	if i, ok := s.localIdx[name]; ok {
		return s.locals[i], true
	}
	return Symbol{}, false
}

// Params returns the parameters in insertion order.
func (s *SymbolTable) Params() []Symbol {
	return append([]Symbol(nil), s.params...)
}

// Locals returns the locals in insertion order.
func (s *SymbolTable) Locals() []Symbol {
	return append([]Symbol(nil), s.locals...)
}

// ToBuilder returns a builder seeded with a copy of the table.
func (s *SymbolTable) ToBuilder() *SymbolTableBuilder {
	b := NewSymbolTableBuilder()
	for _, p := range s.params {
		b.params = append(b.params, p)
		b.paramIdx[p.Name] = len(b.params) - 1
	}
	for _, l := range s.locals {
		b.locals = append(b.locals, l)
		b.localIdx[l.Name] = len(b.locals) - 1
	}
	return b
}

// SymbolTableBuilder constructs a SymbolTable incrementally.
type SymbolTableBuilder struct {
	params   []Symbol
	locals   []Symbol
	paramIdx map[string]int
	localIdx map[string]int
}

// NewSymbolTableBuilder returns an empty builder.
func NewSymbolTableBuilder() *SymbolTableBuilder {
	return &SymbolTableBuilder{
		paramIdx: make(map[string]int),
		localIdx: make(map[string]int),
	}
}

// AddParam declares a parameter. Redeclaring a parameter replaces its entry.
func (b *SymbolTableBuilder) AddParam(name string, typ *Type, builtIn string) error {
	if _, ok := b.localIdx[name]; ok {
		return fmt.Errorf("%w: %s", types.ErrSymbolConflict, name)
	}
	sym := Symbol{Name: name, Type: typ, BuiltIn: builtIn}
	if i, ok := b.paramIdx[name]; ok {
		b.params[i] = sym
		return nil
	}
	b.params = append(b.params, sym)
	b.paramIdx[name] = len(b.params) - 1
	return nil
}

// AddLocal declares a local. Rebinding with the same type is a no-op; rebinding
// with a different type fails with ErrLocalTypeConflict.
func (b *SymbolTableBuilder) AddLocal(name string, typ *Type) error {
	if _, ok := b.paramIdx[name]; ok {
		return fmt.Errorf("%w: %s", types.ErrSymbolConflict, name)
	}
	if i, ok := b.localIdx[name]; ok {
		existing := b.locals[i].Type
		if !existing.Equal(typ) {
			return fmt.Errorf("%w: %s is %s, cannot rebind as %s", types.ErrLocalTypeConflict, name, existing, typ)
		}
		return nil
	}
	b.locals = append(b.locals, Symbol{Name: name, Type: typ})
	b.localIdx[name] = len(b.locals) - 1
	return nil
}

// Param looks up a parameter declared so far.
func (b *SymbolTableBuilder) Param(name string) (Symbol, bool) {
	if i, ok := b.paramIdx[name]; ok {
		return b.params[i], true
	}
	return Symbol{}, false
}

// Local looks up a local declared so far.
func (b *SymbolTableBuilder) Local(name string) (Symbol, bool) {
	if i, ok := b.localIdx[name]; ok {
		return b.locals[i], true
	}
	return Symbol{}, false
}

// Build freezes the builder contents into a SymbolTable.
func (b *SymbolTableBuilder) Build() *SymbolTable {
	t := &SymbolTable{
		params:   append([]Symbol(nil), b.params...),
		locals:   append([]Symbol(nil), b.locals...),
		paramIdx: make(map[string]int, len(b.params)),
		localIdx: make(map[string]int, len(b.locals)),
	}
	for i, p := range t.params {
		t.paramIdx[p.Name] = i
	}
	for i, l := range t.locals {
		t.localIdx[l.Name] = i
	}
	return t
}

// ParamTypeOf maps a declared parameter type to its expression type.
func ParamTypeOf(pt types.ParamType) *Type {
	switch pt {
	case types.ParamTypeBoolean:
		return TypeBoolean
	case types.ParamTypeStringArray:
		return ListOf(TypeString)
	default:
		return TypeString
	}
}

// SymbolsFromParameters builds the initial table from parameter declarations.
func SymbolsFromParameters(decls []types.ParameterDecl) (*SymbolTable, error) {
	b := NewSymbolTableBuilder()
	for _, d := range decls {
		if _, ok := b.Param(d.Name); ok {
			return nil, fmt.Errorf("%w: parameter %s declared twice", types.ErrInvalidDocument, d.Name)
		}
		if err := b.AddParam(d.Name, ParamTypeOf(d.Type), d.BuiltIn); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}
