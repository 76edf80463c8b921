package rules

import (
	"sort"
	"strconv"
	"strings"
)

// Runtime values are plain Go values:
//
//	nil       absent
//	bool      Boolean
//	int       Integer
//	string    String
//	[]any     List
//	*Record   Url, Partition, Arn and property maps

// Record is an immutable structured value with ordered members.
type Record struct {
	Type   *Type
	names  []string
	values map[string]any
}

// NewRecord builds a record; later fields with a repeated name overwrite earlier ones.
func NewRecord(typ *Type, fields ...RecordField) *Record {
	r := &Record{Type: typ, values: make(map[string]any, len(fields))}
	for _, f := range fields {
		if _, dup := r.values[f.Name]; !dup {
			r.names = append(r.names, f.Name)
		}
		r.values[f.Name] = f.Value
	}
	return r
}

// RecordField is one member passed to NewRecord.
type RecordField struct {
	Name  string
	Value any
}

// Get returns a member value; nil when the member is missing or unset.
func (r *Record) Get(name string) any {
	if r == nil {
		return nil
	}
	return r.values[name]
}

// Map converts the record and any nested records into plain maps.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, len(r.names))
	for _, n := range r.names {
		out[n] = PlainValue(r.values[n])
	}
	return out
}

func (r *Record) String() string {
	var b strings.Builder
	if r.Type != nil && r.Type.Name != "" {
		b.WriteString(r.Type.Name)
	}
	b.WriteString("{")
	for i, n := range r.names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(n)
		b.WriteString(": ")
		b.WriteString(formatValue(r.values[n]))
	}
	b.WriteString("}")
	return b.String()
}

// PlainValue strips Record wrappers so a value can be serialized.
func PlainValue(v any) any {
	switch x := v.(type) {
	case *Record:
		return x.Map()
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = PlainValue(item)
		}
		return out
	default:
		return v
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "<unset>"
	case string:
		return "\"" + x + "\""
	case *Record:
		return x.String()
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = formatValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return toString(x)
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	default:
		return "<unknown>"
	}
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
