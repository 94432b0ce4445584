package expr

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/quarrydata/quarry/internal/qdef"
)

// ParseText parses free-form calculated-column text into an expression tree.
//
// This is the capability-restricted entry point for user-written expression
// strings. The grammar covers exactly the subset calculated columns use:
// column references (bare or table-qualified identifiers), string and number
// literals, nested function calls, and infix arithmetic/comparison/logical
// operators. There is no ambient namespace: the output is a plain AST, and
// the only callables ever reachable from it are the helpers the evaluator's
// dialect registry whitelists. Anything else fails at evaluation with an
// unknown-function error, never executes.
//
// Example:
//
//	if_else(contains(lower(territory), "north"), amount * 1.1, amount)
func ParseText(text string) (Expr, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &textParser{input: text, toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, qdef.Definitionf("expression", "unexpected %q at offset %d", p.peek().text, p.peek().pos)
	}
	return e, nil
}

// lexOperator matches an operator at the start of s, longest match first.
// Returns the operator text and its byte length, or ("", 0) on no match.
func lexOperator(s string) (string, int) {
	for _, op := range []string{"<=", ">=", "!=", "==", "&&", "||"} {
		if strings.HasPrefix(s, op) {
			return op, 2
		}
	}
	if len(s) > 0 && strings.ContainsRune("+-*/<>=", rune(s[0])) {
		return s[:1], 1
	}
	return "", 0
}

type tokKind int

const (
	tokIdent tokKind = iota
	tokNumber
	tokString
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokDot
)

type token struct {
	kind tokKind
	text string
	pos  int
}

// lex splits expression text into tokens. Strings accept single or double
// quotes with backslash escapes.
func lex(text string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(text) {
		c := rune(text[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == '.':
			toks = append(toks, token{tokDot, ".", i})
			i++
		case c == '\'' || c == '"':
			quote := byte(c)
			j := i + 1
			var sb strings.Builder
			for j < len(text) && text[j] != quote {
				if text[j] == '\\' && j+1 < len(text) {
					j++
				}
				sb.WriteByte(text[j])
				j++
			}
			if j >= len(text) {
				return nil, qdef.Definitionf("expression", "unterminated string at offset %d", i)
			}
			toks = append(toks, token{tokString, sb.String(), i})
			i = j + 1
		case c >= '0' && c <= '9':
			j := i
			for j < len(text) && (text[j] >= '0' && text[j] <= '9' || text[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, text[i:j], i})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(text) && (unicode.IsLetter(rune(text[j])) || unicode.IsDigit(rune(text[j])) || text[j] == '_') {
				j++
			}
			toks = append(toks, token{tokIdent, text[i:j], i})
			i = j
		default:
			op, n := lexOperator(text[i:])
			if n == 0 {
				return nil, qdef.Definitionf("expression", "unexpected character %q at offset %d", c, i)
			}
			toks = append(toks, token{tokOp, op, i})
			i += n
		}
	}
	return toks, nil
}

type textParser struct {
	input string
	toks  []token
	pos   int
}

func (p *textParser) atEnd() bool    { return p.pos >= len(p.toks) }
func (p *textParser) peek() token    { return p.toks[p.pos] }
func (p *textParser) advance() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *textParser) matchOp(ops ...string) (string, bool) {
	if p.atEnd() || p.toks[p.pos].kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if p.toks[p.pos].text == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *textParser) expect(kind tokKind, what string) (token, error) {
	if p.atEnd() {
		return token{}, qdef.Definitionf("expression", "unexpected end of expression, wanted %s", what)
	}
	t := p.advance()
	if t.kind != kind {
		return token{}, qdef.Definitionf("expression", "wanted %s at offset %d, got %q", what, t.pos, t.text)
	}
	return t, nil
}

func (p *textParser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.matchOp("||"); !ok {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Binary{Operator: "||", Left: left, Right: right}
	}
}

func (p *textParser) parseAnd() (Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.matchOp("&&"); !ok {
			return left, nil
		}
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = Binary{Operator: "&&", Left: left, Right: right}
	}
}

func (p *textParser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	op, ok := p.matchOp("=", "==", "!=", "<=", ">=", "<", ">")
	if !ok {
		return left, nil
	}
	if op == "==" {
		op = "="
	}
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return Binary{Operator: op, Left: left, Right: right}, nil
}

func (p *textParser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOp("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = Binary{Operator: op, Left: left, Right: right}
	}
}

func (p *textParser) parseMultiplicative() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOp("*", "/")
		if !ok {
			return left, nil
		}
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = Binary{Operator: op, Left: left, Right: right}
	}
}

func (p *textParser) parsePrimary() (Expr, error) {
	if p.atEnd() {
		return nil, qdef.Definitionf("expression", "unexpected end of expression")
	}
	t := p.advance()
	switch t.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, qdef.Definitionf("expression", "malformed number %q at offset %d", t.text, t.pos)
		}
		return Literal{Kind: KindNumber, Value: f}, nil

	case tokString:
		return Literal{Kind: KindString, Value: t.text}, nil

	case tokLParen:
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return e, nil

	case tokOp:
		if t.text == "-" {
			inner, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			return Binary{Operator: "*", Left: Literal{Kind: KindNumber, Value: float64(-1)}, Right: inner}, nil
		}
		return nil, qdef.Definitionf("expression", "unexpected operator %q at offset %d", t.text, t.pos)

	case tokIdent:
		// ident "(" → function call; ident "." ident → qualified column;
		// bare ident → column on the current relation.
		if !p.atEnd() && p.peek().kind == tokLParen {
			p.advance()
			var args []Expr
			if !p.atEnd() && p.peek().kind != tokRParen {
				for {
					a, err := p.parseOr()
					if err != nil {
						return nil, err
					}
					args = append(args, a)
					if p.atEnd() || p.peek().kind != tokComma {
						break
					}
					p.advance()
				}
			}
			if _, err := p.expect(tokRParen, ")"); err != nil {
				return nil, err
			}
			return Call{Function: t.text, Arguments: args}, nil
		}
		if !p.atEnd() && p.peek().kind == tokDot {
			p.advance()
			col, err := p.expect(tokIdent, "column name")
			if err != nil {
				return nil, err
			}
			return Column{Table: t.text, Column: col.text}, nil
		}
		return Column{Column: t.text}, nil

	default:
		return nil, qdef.Definitionf("expression", "unexpected %q at offset %d", t.text, t.pos)
	}
}
