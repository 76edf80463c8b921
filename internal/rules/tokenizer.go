// internal/rules/tokenizer.go
package rules

import (
	"fmt"
	"strconv"
	"strings"
)

/*
 * String template tokenizer.
 *
 * Rule documents embed references inside plain strings:
 *   - "{Region}"                reference to a parameter or local
 *   - "{url#scheme}"            member access on a record value
 *   - "resourceId[0]"           indexed access on a list value
 *   - "{{", "}}", "[[", "]]"    a literal brace or bracket
 *
 * Lexing is run-based: text up to the next delimiter becomes one token that is
 * classified as NUMBER (digits), IDENTIFIER (letter or underscore followed by
 * letters, digits, underscores) or STRING (anything else). Inside braces the
 * hash is a delimiter too, outside it is ordinary text.
 *
 * A doubled delimiter outside its own bracket pair is an escape and lexes as a
 * STRING token holding one character, so "{{literal}}" is the plain text
 * "{literal}". Inside a pair the closing character always closes.
 *
 * The token stream is finite and not restartable: after EOF every call to Next
 * returns EOF again.
 */

// TokenKind classifies a template token.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenString
	TokenNumber
	TokenIdentifier
	TokenHash
	TokenOpenCurly
	TokenCloseCurly
	TokenOpenSquare
	TokenCloseSquare
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "EOF"
	case TokenString:
		return "STRING"
	case TokenNumber:
		return "NUMBER"
	case TokenIdentifier:
		return "IDENTIFIER"
	case TokenHash:
		return "HASH"
	case TokenOpenCurly:
		return "OPEN_CURLY"
	case TokenCloseCurly:
		return "CLOSE_CURLY"
	case TokenOpenSquare:
		return "OPEN_SQUARE"
	case TokenCloseSquare:
		return "CLOSE_SQUARE"
	default:
		return "UNKNOWN"
	}
}

// Token is one lexeme of a template string.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int // byte offset in the input
}

func (t Token) String() string {
	if t.Kind == TokenEOF {
		return "EOF"
	}
	return fmt.Sprintf("%s(%q)@%d", t.Kind, t.Text, t.Pos)
}

// Tokenizer lexes one template string.
type Tokenizer struct {
	input    string
	pos      int
	inCurly  bool
	inSquare bool
}

// NewTokenizer returns a tokenizer over input.
func NewTokenizer(input string) *Tokenizer {
	return &Tokenizer{input: input}
}

// Next returns the next token.
func (t *Tokenizer) Next() Token {
	if t.pos >= len(t.input) {
		return Token{Kind: TokenEOF, Pos: len(t.input)}
	}
	start := t.pos
	c := t.input[t.pos]

	switch c {
	case '{':
		if !t.inCurly && t.peekIs(1, '{') {
			t.pos += 2
			return Token{Kind: TokenString, Text: "{", Pos: start}
		}
		t.pos++
		t.inCurly = true
		return Token{Kind: TokenOpenCurly, Text: "{", Pos: start}
	case '}':
		if !t.inCurly && t.peekIs(1, '}') {
			t.pos += 2
			return Token{Kind: TokenString, Text: "}", Pos: start}
		}
		t.pos++
		t.inCurly = false
		return Token{Kind: TokenCloseCurly, Text: "}", Pos: start}
	case '[':
		if !t.inSquare && t.peekIs(1, '[') {
			t.pos += 2
			return Token{Kind: TokenString, Text: "[", Pos: start}
		}
		t.pos++
		t.inSquare = true
		return Token{Kind: TokenOpenSquare, Text: "[", Pos: start}
	case ']':
		if !t.inSquare && t.peekIs(1, ']') {
			t.pos += 2
			return Token{Kind: TokenString, Text: "]", Pos: start}
		}
		t.pos++
		t.inSquare = false
		return Token{Kind: TokenCloseSquare, Text: "]", Pos: start}
	case '#':
		if t.inCurly {
			t.pos++
			return Token{Kind: TokenHash, Text: "#", Pos: start}
		}
	}

	for t.pos < len(t.input) && !t.isDelimiter(t.input[t.pos]) {
		t.pos++
	}
	if t.pos == start {
		// a lone hash outside braces
		t.pos++
	}
	text := t.input[start:t.pos]
	return Token{Kind: classify(text), Text: text, Pos: start}
}

// All drains the tokenizer, including the trailing EOF token.
func (t *Tokenizer) All() []Token {
	var out []Token
	for {
		tok := t.Next()
		out = append(out, tok)
		if tok.Kind == TokenEOF {
			return out
		}
	}
}

func (t *Tokenizer) peekIs(offset int, c byte) bool {
	i := t.pos + offset
	return i < len(t.input) && t.input[i] == c
}

func (t *Tokenizer) isDelimiter(c byte) bool {
	switch c {
	case '{', '}', '[', ']':
		return true
	case '#':
		return t.inCurly
	}
	return false
}

func classify(text string) TokenKind {
	if isNumber(text) {
		return TokenNumber
	}
	if IsIdentifier(text) {
		return TokenIdentifier
	}
	return TokenString
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// IsIdentifier reports whether s is a valid reference name.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// tokenStream is a cursor over a drained token slice.
type tokenStream struct {
	input  string
	tokens []Token
	pos    int
}

func newTokenStream(input string) *tokenStream {
	return &tokenStream{input: input, tokens: NewTokenizer(input).All()}
}

func (s *tokenStream) peek(offset int) Token {
	i := s.pos + offset
	if i >= len(s.tokens) {
		return s.tokens[len(s.tokens)-1]
	}
	return s.tokens[i]
}

func (s *tokenStream) kindsAt(kinds ...TokenKind) bool {
	for i, k := range kinds {
		if s.peek(i).Kind != k {
			return false
		}
	}
	return true
}

// isReference matches {identifier}.
func (s *tokenStream) isReference() bool {
	return s.kindsAt(TokenOpenCurly, TokenIdentifier, TokenCloseCurly)
}

// isNamedAccess matches {identifier#identifier}, optionally followed by an
// index inside the braces: {identifier#identifier[number]}.
func (s *tokenStream) isNamedAccess() bool {
	return s.kindsAt(TokenOpenCurly, TokenIdentifier, TokenHash, TokenIdentifier)
}

// isIndexedAccess matches identifier[number].
func (s *tokenStream) isIndexedAccess() bool {
	return s.kindsAt(TokenIdentifier, TokenOpenSquare, TokenNumber, TokenCloseSquare)
}

func (s *tokenStream) errorAt(tok Token, format string, args ...any) error {
	return &ParseError{
		Msg:   fmt.Sprintf(format, args...),
		Token: tok.String(),
		Input: s.input,
	}
}

func (s *tokenStream) expect(kind TokenKind) (Token, error) {
	tok := s.peek(0)
	if tok.Kind != kind {
		return tok, s.errorAt(tok, "expected %s", kind)
	}
	s.pos++
	return tok, nil
}

// consumeReference consumes {identifier}.
func (s *tokenStream) consumeReference() (Expr, error) {
	if _, err := s.expect(TokenOpenCurly); err != nil {
		return nil, err
	}
	name, err := s.expect(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	if _, err := s.expect(TokenCloseCurly); err != nil {
		return nil, err
	}
	return &VariableRef{Name: name.Text}, nil
}

// consumeNamedAccess consumes {identifier#identifier} or {identifier#identifier[n]}.
func (s *tokenStream) consumeNamedAccess() (Expr, error) {
	if _, err := s.expect(TokenOpenCurly); err != nil {
		return nil, err
	}
	source, err := s.expect(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	if _, err := s.expect(TokenHash); err != nil {
		return nil, err
	}
	member, err := s.expect(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	var out Expr = &MemberAccess{Source: &VariableRef{Name: source.Text}, Name: member.Text}
	if s.peek(0).Kind == TokenOpenSquare {
		index, err := s.consumeIndex()
		if err != nil {
			return nil, err
		}
		out = &IndexedAccess{Source: out, Index: index}
	}
	if _, err := s.expect(TokenCloseCurly); err != nil {
		return nil, err
	}
	return out, nil
}

// consumeIndexedAccess consumes identifier[number].
func (s *tokenStream) consumeIndexedAccess() (Expr, error) {
	name, err := s.expect(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	index, err := s.consumeIndex()
	if err != nil {
		return nil, err
	}
	return &IndexedAccess{Source: &VariableRef{Name: name.Text}, Index: index}, nil
}

func (s *tokenStream) consumeIndex() (int, error) {
	if _, err := s.expect(TokenOpenSquare); err != nil {
		return 0, err
	}
	num, err := s.expect(TokenNumber)
	if err != nil {
		return 0, err
	}
	if _, err := s.expect(TokenCloseSquare); err != nil {
		return 0, err
	}
	index, convErr := strconv.Atoi(num.Text)
	if convErr != nil {
		return 0, s.errorAt(num, "index out of range")
	}
	return index, nil
}

// ParseTemplate parses a string that may embed references, member access and
// indexed access. Literal runs are merged; a template with a single segment
// returns that segment, otherwise the segments form a StringConcat.
func ParseTemplate(input string) (Expr, error) {
	s := newTokenStream(input)
	var parts []Expr
	var lit strings.Builder
	hasLit := false

	flush := func() {
		if hasLit {
			parts = append(parts, &StringLiteral{Value: lit.String()})
			lit.Reset()
			hasLit = false
		}
	}

	for s.peek(0).Kind != TokenEOF {
		var (
			part Expr
			err  error
		)
		switch {
		case s.isNamedAccess():
			part, err = s.consumeNamedAccess()
		case s.isReference():
			part, err = s.consumeReference()
		case s.isIndexedAccess():
			part, err = s.consumeIndexedAccess()
		default:
			tok := s.peek(0)
			switch tok.Kind {
			case TokenString, TokenIdentifier, TokenNumber:
				lit.WriteString(tok.Text)
				hasLit = true
				s.pos++
				continue
			default:
				return nil, s.errorAt(tok, "unexpected token in template")
			}
		}
		if err != nil {
			return nil, err
		}
		flush()
		parts = append(parts, part)
	}
	flush()

	switch len(parts) {
	case 0:
		return &StringLiteral{Value: ""}, nil
	case 1:
		return parts[0], nil
	default:
		return &StringConcat{Parts: parts}, nil
	}
}
