package visibility

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokTrue
	tokFalse
	tokNull
	tokEq
	tokNeq
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input string
	pos   int
}

func isSpace(ch byte) bool { return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' }

func isIdentByte(ch byte) bool {
	return ch == '_' || ch == '.' || ch == '-' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: start}, nil
	}

	two := ""
	if l.pos+1 < len(l.input) {
		two = l.input[l.pos : l.pos+2]
	}
	switch two {
	case "==":
		l.pos += 2
		return token{kind: tokEq, text: two, pos: start}, nil
	case "!=":
		l.pos += 2
		return token{kind: tokNeq, text: two, pos: start}, nil
	case "&&":
		l.pos += 2
		return token{kind: tokAnd, text: two, pos: start}, nil
	case "||":
		l.pos += 2
		return token{kind: tokOr, text: two, pos: start}, nil
	}

	ch := l.input[l.pos]
	switch ch {
	case '!':
		l.pos++
		return token{kind: tokNot, text: "!", pos: start}, nil
	case '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case '"', '\'':
		return l.quoted(ch)
	}

	for l.pos < len(l.input) && isIdentByte(l.input[l.pos]) {
		l.pos++
	}
	word := l.input[start:l.pos]
	if word == "" {
		return token{}, fmt.Errorf("visibility: unexpected %q at %d", string(ch), start)
	}
	switch strings.ToLower(word) {
	case "true":
		return token{kind: tokTrue, text: word, pos: start}, nil
	case "false":
		return token{kind: tokFalse, text: word, pos: start}, nil
	case "null", "nil":
		return token{kind: tokNull, text: word, pos: start}, nil
	}
	if _, err := strconv.ParseFloat(word, 64); err == nil {
		return token{kind: tokNumber, text: word, pos: start}, nil
	}
	return token{kind: tokIdent, text: word, pos: start}, nil
}

func (l *lexer) quoted(quote byte) (token, error) {
	start := l.pos
	l.pos++
	var b strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		l.pos++
		switch {
		case ch == '\\' && l.pos < len(l.input):
			b.WriteByte(l.input[l.pos])
			l.pos++
		case ch == quote:
			return token{kind: tokString, text: b.String(), pos: start}, nil
		default:
			b.WriteByte(ch)
		}
	}
	return token{}, fmt.Errorf("visibility: unterminated string at %d", start)
}

type node interface {
	eval(data map[string]any) any
}

type literal struct{ value any }

func (n literal) eval(map[string]any) any { return n.value }

type ident struct{ path string }

func (n ident) eval(data map[string]any) any {
	value, _ := Lookup(data, n.path)
	return value
}

type not struct{ operand node }

func (n not) eval(data map[string]any) any { return !truthy(n.operand.eval(data)) }

type binary struct {
	op          tokenKind
	left, right node
}

func (n binary) eval(data map[string]any) any {
	switch n.op {
	case tokAnd:
		return truthy(n.left.eval(data)) && truthy(n.right.eval(data))
	case tokOr:
		return truthy(n.left.eval(data)) || truthy(n.right.eval(data))
	case tokEq:
		return equal(n.left.eval(data), n.right.eval(data))
	default:
		return !equal(n.left.eval(data), n.right.eval(data))
	}
}

type parser struct {
	lex lexer
	tok token
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binary{op: tokOr, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binary{op: tokAnd, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.tok.kind == tokNot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return not{operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	if p.tok.kind == tokLParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, fmt.Errorf("visibility: expected ')' at %d", p.tok.pos)
		}
		return inner, p.advance()
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEq && p.tok.kind != tokNeq {
		return left, nil
	}
	op := p.tok.kind
	if err := p.advance(); err != nil {
		return nil, err
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return binary{op: op, left: left, right: right}, nil
}

func (p *parser) parseOperand() (node, error) {
	tok := p.tok
	var n node
	switch tok.kind {
	case tokIdent:
		n = ident{path: tok.text}
	case tokString:
		n = literal{value: tok.text}
	case tokNumber:
		value, _ := strconv.ParseFloat(tok.text, 64)
		n = literal{value: value}
	case tokTrue:
		n = literal{value: true}
	case tokFalse:
		n = literal{value: false}
	case tokNull:
		n = literal{value: nil}
	case tokEOF:
		return nil, fmt.Errorf("visibility: unexpected end of rule")
	default:
		return nil, fmt.Errorf("visibility: unexpected %q at %d", tok.text, tok.pos)
	}
	return n, p.advance()
}
