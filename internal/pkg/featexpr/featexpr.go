// Package featexpr parses and evaluates boolean expressions over node
// feature or GRES type tokens. Feature names are free form and may contain
// characters such as '-', '+' and ':', so the tokenizer treats them as part
// of a term rather than requiring any escaping.
package featexpr

import (
	"fmt"
	"strings"
)

// Set is the per-node token set an expression is evaluated against.
type Set map[string]struct{}

// NewSet builds a Set from a token slice, dropping empty tokens.
func NewSet(tokens []string) Set {
	s := make(Set, len(tokens))
	for _, t := range tokens {
		if t != "" {
			s[t] = struct{}{}
		}
	}
	return s
}

// Has reports whether the token is in the set.
func (s Set) Has(token string) bool {
	_, ok := s[token]
	return ok
}

// Expr is a parsed boolean expression. Evaluation is a pure function of the
// token set; it cannot fail.
type Expr interface {
	Eval(s Set) bool
	String() string
}

// matchAll is the expression an empty argument list parses to.
type matchAll struct{}

func (matchAll) Eval(Set) bool  { return true }
func (matchAll) String() string { return "true" }

type term string

func (t term) Eval(s Set) bool { return s.Has(string(t)) }
func (t term) String() string  { return string(t) }

type notExpr struct{ x Expr }

func (n notExpr) Eval(s Set) bool { return !n.x.Eval(s) }
func (n notExpr) String() string  { return "not " + n.x.String() }

type andExpr struct{ l, r Expr }

func (a andExpr) Eval(s Set) bool { return a.l.Eval(s) && a.r.Eval(s) }
func (a andExpr) String() string  { return fmt.Sprintf("(%s and %s)", a.l, a.r) }

type orExpr struct{ l, r Expr }

func (o orExpr) Eval(s Set) bool { return o.l.Eval(s) || o.r.Eval(s) }
func (o orExpr) String() string  { return fmt.Sprintf("(%s or %s)", o.l, o.r) }

type tokKind int

const (
	tokTerm tokKind = iota
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokKind
	text string
	pos  int
}

// isTermChar reports whether c may appear inside a term. Besides word
// characters this includes '-', '+', ':' and '.', which occur in real
// feature and GRES type names (v100-32gb, gpu:a100).
func isTermChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '-', c == '+', c == ':', c == '.', c == '=':
		return true
	}
	return false
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++
		case c == '!':
			tokens = append(tokens, token{tokNot, "!", i})
			i++
		case c == '&':
			if i+1 >= len(input) || input[i+1] != '&' {
				return nil, fmt.Errorf("position %d: expected '&&', found single '&'", i)
			}
			tokens = append(tokens, token{tokAnd, "&&", i})
			i += 2
		case c == '|':
			if i+1 >= len(input) || input[i+1] != '|' {
				return nil, fmt.Errorf("position %d: expected '||', found single '|'", i)
			}
			tokens = append(tokens, token{tokOr, "||", i})
			i += 2
		case isTermChar(c):
			start := i
			for i < len(input) && isTermChar(input[i]) {
				i++
			}
			word := input[start:i]
			switch strings.ToLower(word) {
			case "and":
				tokens = append(tokens, token{tokAnd, word, start})
			case "or":
				tokens = append(tokens, token{tokOr, word, start})
			case "not":
				tokens = append(tokens, token{tokNot, word, start})
			default:
				tokens = append(tokens, token{tokTerm, word, start})
			}
		default:
			return nil, fmt.Errorf("position %d: unexpected character %q", i, c)
		}
	}
	tokens = append(tokens, token{tokEOF, "", len(input)})
	return tokens, nil
}

// Operator binding strength, lowest first. 'not' binds tightest.
const (
	precNone = iota
	precOr
	precAnd
	precPrefix
)

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) advance() token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func precedence(t token) int {
	switch t.kind {
	case tokOr:
		return precOr
	case tokAnd:
		return precAnd
	}
	return precNone
}

func (p *parser) parsePrefix() (Expr, error) {
	t := p.advance()
	switch t.kind {
	case tokTerm:
		return term(t.text), nil
	case tokNot:
		x, err := p.parsePrecedence(precPrefix)
		if err != nil {
			return nil, err
		}
		return notExpr{x}, nil
	case tokLParen:
		x, err := p.parsePrecedence(precNone)
		if err != nil {
			return nil, err
		}
		if closing := p.advance(); closing.kind != tokRParen {
			return nil, fmt.Errorf("position %d: expected ')'", closing.pos)
		}
		return x, nil
	case tokEOF:
		return nil, fmt.Errorf("position %d: unexpected end of expression", t.pos)
	}
	return nil, fmt.Errorf("position %d: expected a feature name, 'not' or '(', found %q", t.pos, t.text)
}

func (p *parser) parsePrecedence(min int) (Expr, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}
	for min < precedence(p.peek()) {
		op := p.advance()
		right, err := p.parsePrecedence(precedence(op))
		if err != nil {
			return nil, err
		}
		switch op.kind {
		case tokAnd:
			left = andExpr{left, right}
		case tokOr:
			left = orExpr{left, right}
		}
	}
	return left, nil
}

// Parse turns an expression string into an Expr. Whitespace-only input
// yields the match-everything expression. A malformed expression is a user
// error and the only way this package fails.
func Parse(input string) (Expr, error) {
	if strings.TrimSpace(input) == "" {
		return matchAll{}, nil
	}
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	expr, err := p.parsePrecedence(precNone)
	if err != nil {
		return nil, err
	}
	if trailing := p.peek(); trailing.kind != tokEOF {
		return nil, fmt.Errorf("position %d: unexpected %q after expression", trailing.pos, trailing.text)
	}
	return expr, nil
}
