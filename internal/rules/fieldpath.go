// internal/rules/fieldpath.go
package rules

import (
	"fmt"
	"strings"
)

/*
 * Attribute path resolution.
 *
 * getAttr takes a path string such as "resourceId[2]" or "a.b[0][1]". The path
 * is parsed once into PathSegments at parse time and turned into nested
 * MemberAccess / IndexedAccess nodes. At evaluation time each segment resolves
 * against a runtime value:
 *   - member segment: the value must be a *Record holding the member
 *   - index segment: the value must be a list with the index in range
 *
 * A miss at any step yields nil. Missing attributes are absent values, not
 * evaluation errors, so isSet(getAttr(...)) works on partial data.
 */

// PathSegment is one step of an attribute path.
type PathSegment struct {
	Key     string
	Index   int
	IsIndex bool
}

func (s PathSegment) String() string {
	if s.IsIndex {
		return fmt.Sprintf("[%d]", s.Index)
	}
	return s.Key
}

// ParseAttrPath parses dot-separated segments of the form name, name[n] or [n].
func ParseAttrPath(path string) ([]PathSegment, error) {
	if path == "" {
		return nil, &ParseError{Msg: "empty attribute path"}
	}
	var out []PathSegment
	for _, part := range strings.Split(path, ".") {
		s := newTokenStream(part)
		matched := false
		if s.peek(0).Kind == TokenIdentifier {
			name, _ := s.expect(TokenIdentifier)
			out = append(out, PathSegment{Key: name.Text})
			matched = true
		}
		for s.peek(0).Kind == TokenOpenSquare {
			index, err := s.consumeIndex()
			if err != nil {
				return nil, err
			}
			out = append(out, PathSegment{Index: index, IsIndex: true})
			matched = true
		}
		if tok := s.peek(0); tok.Kind != TokenEOF || !matched {
			return nil, s.errorAt(tok, "invalid attribute path segment %q", part)
		}
	}
	return out, nil
}

// accessExpr wraps source in one access node per segment.
func accessExpr(source Expr, path []PathSegment) Expr {
	out := source
	for _, seg := range path {
		if seg.IsIndex {
			out = &IndexedAccess{Source: out, Index: seg.Index}
		} else {
			out = &MemberAccess{Source: out, Name: seg.Key}
		}
	}
	return out
}

// Resolve follows path through a runtime value. Returns nil on any miss.
func Resolve(value any, path []PathSegment) any {
	current := value
	for _, seg := range path {
		if seg.IsIndex {
			current = indexOf(current, seg.Index)
		} else {
			current = memberOf(current, seg.Key)
		}
		if current == nil {
			return nil
		}
	}
	return current
}

// memberOf reads a record member.
func memberOf(value any, name string) any {
	r, ok := value.(*Record)
	if !ok {
		return nil
	}
	return r.Get(name)
}

// indexOf reads a list element; out of range yields nil.
func indexOf(value any, index int) any {
	list, ok := value.([]any)
	if !ok || index < 0 || index >= len(list) {
		return nil
	}
	return list[index]
}
