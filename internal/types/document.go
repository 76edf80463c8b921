// internal/types/document.go
package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
)

/*
 * Rule document model.
 *
 * A rule document is a JSON object with "version", "parameters" and "rules".
 * Documents decode into a Node tree rather than map[string]any because object
 * key order is meaningful: endpoint properties and headers keep document order,
 * and parameter declarations keep declaration order in the symbol table.
 *
 * Key types:
 *   - Node: one decoded JSON value (null, bool, number, string, array, object)
 *   - Document: parameters plus the raw rule nodes, ready for the rules parser
 *   - ParameterDecl: declared type, built-in tag, required flag, default, deprecation
 *
 * Numbers are kept as json.Number so integer literals survive decoding exactly.
 */

// NodeKind tags the JSON value held by a Node.
type NodeKind int

const (
	NodeNull NodeKind = iota
	NodeBool
	NodeNumber
	NodeString
	NodeArray
	NodeObject
)

func (k NodeKind) String() string {
	switch k {
	case NodeNull:
		return "null"
	case NodeBool:
		return "boolean"
	case NodeNumber:
		return "number"
	case NodeString:
		return "string"
	case NodeArray:
		return "array"
	case NodeObject:
		return "object"
	default:
		return "unknown"
	}
}

// Field is one key/value pair of an object node.
type Field struct {
	Key   string
	Value *Node
}

// Node is an order-preserving JSON value.
type Node struct {
	Kind   NodeKind
	Bool   bool
	Number json.Number
	Str    string
	Items  []*Node
	Fields []Field
}

// StringNode returns a string node.
func StringNode(s string) *Node { return &Node{Kind: NodeString, Str: s} }

// BoolNode returns a boolean node.
func BoolNode(b bool) *Node { return &Node{Kind: NodeBool, Bool: b} }

// IntNode returns a number node holding an integer.
func IntNode(i int) *Node { return &Node{Kind: NodeNumber, Number: json.Number(strconv.Itoa(i))} }

// ArrayNode returns an array node.
func ArrayNode(items ...*Node) *Node { return &Node{Kind: NodeArray, Items: items} }

// ObjectNode returns an object node with fields in the given order.
func ObjectNode(fields ...Field) *Node { return &Node{Kind: NodeObject, Fields: fields} }

// Get returns the value stored under key in an object node.
func (n *Node) Get(key string) (*Node, bool) {
	if n == nil || n.Kind != NodeObject {
		return nil, false
	}
	for _, f := range n.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Has reports whether an object node has key.
func (n *Node) Has(key string) bool {
	_, ok := n.Get(key)
	return ok
}

// Int returns the integer value of a number node.
func (n *Node) Int() (int, bool) {
	if n == nil || n.Kind != NodeNumber {
		return 0, false
	}
	i, err := strconv.Atoi(n.Number.String())
	if err != nil {
		return 0, false
	}
	return i, true
}

// Interface converts the node to plain Go values (map keys lose their order).
func (n *Node) Interface() any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case NodeBool:
		return n.Bool
	case NodeNumber:
		if i, ok := n.Int(); ok {
			return i
		}
		f, _ := n.Number.Float64()
		return f
	case NodeString:
		return n.Str
	case NodeArray:
		out := make([]any, len(n.Items))
		for i, item := range n.Items {
			out[i] = item.Interface()
		}
		return out
	case NodeObject:
		out := make(map[string]any, len(n.Fields))
		for _, f := range n.Fields {
			out[f.Key] = f.Value.Interface()
		}
		return out
	default:
		return nil
	}
}

// NodeFromValue converts plain Go values (as produced by encoding/json or
// structpb.AsMap) into a Node. Map keys are sorted for determinism.
func NodeFromValue(v any) (*Node, error) {
	switch t := v.(type) {
	case nil:
		return &Node{Kind: NodeNull}, nil
	case bool:
		return BoolNode(t), nil
	case string:
		return StringNode(t), nil
	case int:
		return IntNode(t), nil
	case float64:
		if t != float64(int(t)) {
			return nil, fmt.Errorf("%w: non-integer number %v", ErrInvalidDocument, t)
		}
		return IntNode(int(t)), nil
	case json.Number:
		return &Node{Kind: NodeNumber, Number: t}, nil
	case []any:
		items := make([]*Node, 0, len(t))
		for _, e := range t {
			item, err := NodeFromValue(e)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return ArrayNode(items...), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]Field, 0, len(keys))
		for _, k := range keys {
			value, err := NodeFromValue(t[k])
			if err != nil {
				return nil, err
			}
			fields = append(fields, Field{Key: k, Value: value})
		}
		return ObjectNode(fields...), nil
	default:
		return nil, fmt.Errorf("%w: unsupported value of type %T", ErrInvalidDocument, v)
	}
}

// MarshalJSON implements json.Marshaler, preserving object key order.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) encode(buf *bytes.Buffer) error {
	if n == nil {
		buf.WriteString("null")
		return nil
	}
	switch n.Kind {
	case NodeNull:
		buf.WriteString("null")
	case NodeBool:
		buf.WriteString(strconv.FormatBool(n.Bool))
	case NodeNumber:
		buf.WriteString(n.Number.String())
	case NodeString:
		b, err := json.Marshal(n.Str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case NodeArray:
		buf.WriteByte('[')
		for i, item := range n.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case NodeObject:
		buf.WriteByte('{')
		for i, f := range n.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := f.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// DecodeNode decodes a single JSON value preserving object key order.
func DecodeNode(data []byte) (*Node, error) {
	if len(data) > MaxDocumentSize {
		return nil, ErrDocumentTooLarge
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	n, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after document", ErrInvalidDocument)
	}
	return n, nil
}

// decodeValue reads one value from the token stream.
func decodeValue(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case nil:
		return &Node{Kind: NodeNull}, nil
	case bool:
		return BoolNode(t), nil
	case json.Number:
		return &Node{Kind: NodeNumber, Number: t}, nil
	case string:
		return StringNode(t), nil
	case json.Delim:
		switch t {
		case '[':
			n := &Node{Kind: NodeArray}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				n.Items = append(n.Items, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		case '{':
			n := &Node{Kind: NodeObject}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key must be a string, got %v", keyTok)
				}
				value, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				n.Fields = append(n.Fields, Field{Key: key, Value: value})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// Deprecation marks a parameter as deprecated.
type Deprecation struct {
	Message string
	Since   string
}

// ParameterDecl declares one rule set parameter.
type ParameterDecl struct {
	Name          string
	Type          ParamType
	BuiltIn       string // e.g. "AWS::Region"; empty for plain parameters
	Required      bool
	Default       any // nil, bool, string or []string matching Type
	Documentation string
	Deprecated    *Deprecation
}

// Document is a decoded rule document ready for parsing.
type Document struct {
	Version    string
	Parameters []ParameterDecl
	Rules      []*Node
}

// ParseDocument decodes a JSON rule document.
func ParseDocument(data []byte) (*Document, error) {
	root, err := DecodeNode(data)
	if err != nil {
		return nil, err
	}
	return DocumentFromNode(root)
}

// DocumentFromNode extracts parameters and rules from a decoded document root.
func DocumentFromNode(root *Node) (*Document, error) {
	if root == nil || root.Kind != NodeObject {
		return nil, fmt.Errorf("%w: document must be an object", ErrInvalidDocument)
	}

	doc := &Document{}
	if v, ok := root.Get("version"); ok {
		if v.Kind != NodeString {
			return nil, fmt.Errorf("%w: version must be a string", ErrInvalidDocument)
		}
		doc.Version = v.Str
	}

	if params, ok := root.Get("parameters"); ok {
		if params.Kind != NodeObject {
			return nil, fmt.Errorf("%w: parameters must be an object", ErrInvalidDocument)
		}
		if len(params.Fields) > MaxParameters {
			return nil, fmt.Errorf("%w: %d parameters exceeds limit of %d", ErrInvalidDocument, len(params.Fields), MaxParameters)
		}
		for _, f := range params.Fields {
			decl, err := parseParameterDecl(f.Key, f.Value)
			if err != nil {
				return nil, err
			}
			doc.Parameters = append(doc.Parameters, decl)
		}
	}

	rules, ok := root.Get("rules")
	if !ok || rules.Kind != NodeArray {
		return nil, fmt.Errorf("%w: rules must be an array", ErrInvalidDocument)
	}
	doc.Rules = rules.Items
	return doc, nil
}

func parseParameterDecl(name string, n *Node) (ParameterDecl, error) {
	if n.Kind != NodeObject {
		return ParameterDecl{}, fmt.Errorf("%w: parameter %s must be an object", ErrInvalidDocument, name)
	}
	decl := ParameterDecl{Name: name}

	typeNode, ok := n.Get("type")
	if !ok || typeNode.Kind != NodeString {
		return ParameterDecl{}, fmt.Errorf("%w: parameter %s has no type", ErrInvalidDocument, name)
	}
	pt, err := ParseParamType(typeNode.Str)
	if err != nil {
		return ParameterDecl{}, fmt.Errorf("parameter %s: %w", name, err)
	}
	decl.Type = pt

	if v, ok := n.Get("builtIn"); ok && v.Kind == NodeString {
		decl.BuiltIn = v.Str
	}
	if v, ok := n.Get("required"); ok {
		if v.Kind != NodeBool {
			return ParameterDecl{}, fmt.Errorf("%w: parameter %s: required must be a boolean", ErrInvalidDocument, name)
		}
		decl.Required = v.Bool
	}
	if v, ok := n.Get("documentation"); ok && v.Kind == NodeString {
		decl.Documentation = v.Str
	}
	if v, ok := n.Get("deprecated"); ok && v.Kind == NodeObject {
		dep := &Deprecation{}
		if m, ok := v.Get("message"); ok {
			dep.Message = m.Str
		}
		if s, ok := v.Get("since"); ok {
			dep.Since = s.Str
		}
		decl.Deprecated = dep
	}
	if v, ok := n.Get("default"); ok && v.Kind != NodeNull {
		def, err := defaultValue(pt, v)
		if err != nil {
			return ParameterDecl{}, fmt.Errorf("parameter %s: %w", name, err)
		}
		decl.Default = def
	}
	return decl, nil
}

// defaultValue checks a default against the declared type.
func defaultValue(pt ParamType, n *Node) (any, error) {
	switch pt {
	case ParamTypeString:
		if n.Kind == NodeString {
			return n.Str, nil
		}
	case ParamTypeBoolean:
		if n.Kind == NodeBool {
			return n.Bool, nil
		}
	case ParamTypeStringArray:
		if n.Kind == NodeArray {
			out := make([]string, 0, len(n.Items))
			for _, item := range n.Items {
				if item.Kind != NodeString {
					return nil, fmt.Errorf("%w: stringArray default must contain strings", ErrInvalidDocument)
				}
				out = append(out, item.Str)
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: default of kind %s does not match type %s", ErrInvalidDocument, n.Kind, pt)
}
