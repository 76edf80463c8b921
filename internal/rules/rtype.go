package rules

import (
	"strings"
)

// Kind classifies a Type.
type Kind int

const (
	KindVoid Kind = iota
	KindBoolean
	KindInteger
	KindString
	KindList
	KindRecord
)

// Property is one named member of a record type.
type Property struct {
	Name string
	Type *Type
}

// Type is the static type of an expression. Types are compared structurally.
type Type struct {
	Kind  Kind
	Name  string     // record name; empty for anonymous records
	Elem  *Type      // element type of a list
	Props []Property // record members in declaration order
}

// Predeclared scalar types.
var (
	TypeVoid    = &Type{Kind: KindVoid}
	TypeBoolean = &Type{Kind: KindBoolean}
	TypeInteger = &Type{Kind: KindInteger}
	TypeString  = &Type{Kind: KindString}
)

// Named record types produced by the standard library.
var (
	TypeURL = RecordOf("Url",
		Property{"scheme", TypeString},
		Property{"authority", TypeString},
		Property{"path", TypeString},
		Property{"normalizedPath", TypeString},
		Property{"isIp", TypeBoolean},
	)
	TypePartition = RecordOf("Partition",
		Property{"name", TypeString},
		Property{"dnsSuffix", TypeString},
		Property{"dualStackDnsSuffix", TypeString},
		Property{"supportsFIPS", TypeBoolean},
		Property{"supportsDualStack", TypeBoolean},
		Property{"implicitGlobalRegion", TypeString},
	)
	TypeArn = RecordOf("Arn",
		Property{"partition", TypeString},
		Property{"service", TypeString},
		Property{"region", TypeString},
		Property{"accountId", TypeString},
		Property{"resourceId", ListOf(TypeString)},
	)
)

// ListOf returns the list type with element type elem.
func ListOf(elem *Type) *Type {
	return &Type{Kind: KindList, Elem: elem}
}

// RecordOf returns a record type. An empty name makes an anonymous record.
func RecordOf(name string, props ...Property) *Type {
	return &Type{Kind: KindRecord, Name: name, Props: props}
}

// Property returns the type of the named member of a record type.
func (t *Type) Property(name string) (*Type, bool) {
	if t == nil || t.Kind != KindRecord {
		return nil, false
	}
	for _, p := range t.Props {
		if p.Name == name {
			return p.Type, true
		}
	}
	return nil, false
}

// Equal reports structural identity: kind, name, properties and element type.
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind || t.Name != o.Name {
		return false
	}
	switch t.Kind {
	case KindList:
		return t.Elem.Equal(o.Elem)
	case KindRecord:
		if len(t.Props) != len(o.Props) {
			return false
		}
		for i := range t.Props {
			if t.Props[i].Name != o.Props[i].Name || !t.Props[i].Type.Equal(o.Props[i].Type) {
				return false
			}
		}
	}
	return true
}

func (t *Type) String() string {
	if t == nil {
		return "<untyped>"
	}
	switch t.Kind {
	case KindVoid:
		return "Void"
	case KindBoolean:
		return "Boolean"
	case KindInteger:
		return "Integer"
	case KindString:
		return "String"
	case KindList:
		return "List<" + t.Elem.String() + ">"
	case KindRecord:
		if t.Name != "" {
			return t.Name
		}
		var b strings.Builder
		b.WriteString("Record{")
		for i, p := range t.Props {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Name)
			b.WriteString(": ")
			b.WriteString(p.Type.String())
		}
		b.WriteString("}")
		return b.String()
	default:
		return "<unknown>"
	}
}
