// Package arith evaluates a restricted arithmetic grammar:
//
//	expr   = term { ("+" | "-") term }
//	term   = unary { ("*" | "/") unary }
//	unary  = [ "+" | "-" ] unary | factor
//	factor = number | "(" expr ")"
//
// Identifiers, function calls and any other syntax are rejected.
package arith

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxDepth limits parenthesis/unary nesting.
const MaxDepth = 64

// ErrDivisionByZero is returned when a divisor evaluates to zero.
var ErrDivisionByZero = errors.New("division by zero")

// SyntaxError reports an invalid expression and where parsing stopped.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Msg)
}

// Eval parses and evaluates expr.
func Eval(expr string) (float64, error) {
	p := &parser{src: expr}
	p.next()
	v, err := p.expr(0)
	if err != nil {
		return 0, err
	}
	if p.tok.kind != tokEOF {
		return 0, p.errorf("unexpected %q", p.tok.text)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errors.New("result is not a finite number")
	}
	return v, nil
}

// Format renders v the way a calculator would: integers without a fraction,
// everything else with the shortest exact representation.
func Format(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokOp
	tokLParen
	tokRParen
	tokInvalid
)

type token struct {
	kind tokKind
	text string
	num  float64
	pos  int
}

type parser struct {
	src string
	pos int
	tok token
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Pos: p.tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) next() {
	for p.pos < len(p.src) && strings.ContainsRune(" \t\r\n", rune(p.src[p.pos])) {
		p.pos++
	}
	start := p.pos
	if p.pos >= len(p.src) {
		p.tok = token{kind: tokEOF, pos: start}
		return
	}

	c := p.src[p.pos]
	switch {
	case c == '+' || c == '-' || c == '*' || c == '/':
		p.pos++
		p.tok = token{kind: tokOp, text: string(c), pos: start}
	case c == '(':
		p.pos++
		p.tok = token{kind: tokLParen, text: "(", pos: start}
	case c == ')':
		p.pos++
		p.tok = token{kind: tokRParen, text: ")", pos: start}
	case isDigit(c) || c == '.':
		for p.pos < len(p.src) && (isDigit(p.src[p.pos]) || p.src[p.pos] == '.' || p.src[p.pos] == '_') {
			p.pos++
		}
		text := p.src[start:p.pos]
		n, err := strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64)
		if err != nil {
			p.tok = token{kind: tokInvalid, text: text, pos: start}
			return
		}
		p.tok = token{kind: tokNum, text: text, num: n, pos: start}
	default:
		end := p.pos + 1
		for end < len(p.src) && !strings.ContainsRune(" \t\r\n+-*/()", rune(p.src[end])) {
			end++
		}
		p.tok = token{kind: tokInvalid, text: p.src[start:end], pos: start}
		p.pos = end
	}
}

func (p *parser) expr(depth int) (float64, error) {
	left, err := p.term(depth)
	if err != nil {
		return 0, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text
		p.next()
		right, err := p.term(depth)
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}
	return left, nil
}

func (p *parser) term(depth int) (float64, error) {
	left, err := p.unary(depth)
	if err != nil {
		return 0, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "*" || p.tok.text == "/") {
		op := p.tok.text
		p.next()
		// "**" is not part of the grammar.
		if p.tok.kind == tokOp && p.tok.text == "*" {
			return 0, p.errorf("unexpected %q", "*")
		}
		right, err := p.unary(depth)
		if err != nil {
			return 0, err
		}
		if op == "*" {
			left *= right
			continue
		}
		if right == 0 {
			return 0, ErrDivisionByZero
		}
		left /= right
	}
	return left, nil
}

func (p *parser) unary(depth int) (float64, error) {
	if depth > MaxDepth {
		return 0, p.errorf("expression nested too deeply")
	}
	if p.tok.kind == tokOp && (p.tok.text == "-" || p.tok.text == "+") {
		neg := p.tok.text == "-"
		p.next()
		v, err := p.unary(depth + 1)
		if err != nil {
			return 0, err
		}
		if neg {
			return -v, nil
		}
		return v, nil
	}
	return p.factor(depth)
}

func (p *parser) factor(depth int) (float64, error) {
	switch p.tok.kind {
	case tokNum:
		v := p.tok.num
		p.next()
		return v, nil
	case tokLParen:
		p.next()
		v, err := p.expr(depth + 1)
		if err != nil {
			return 0, err
		}
		if p.tok.kind != tokRParen {
			return 0, p.errorf("expected %q", ")")
		}
		p.next()
		return v, nil
	case tokEOF:
		return 0, p.errorf("unexpected end of expression")
	case tokInvalid:
		return 0, p.errorf("unsupported token %q", p.tok.text)
	default:
		return 0, p.errorf("unexpected %q", p.tok.text)
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
