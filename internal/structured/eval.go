package structured

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Evaluate computes an arithmetic expression. It supports + - * / %,
// exponentiation with ** or ^, parentheses, unary signs and the functions
// cube, sqrt and abs.
func Evaluate(expr string) (float64, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	if len(toks) == 0 {
		return 0, errors.New("empty expression")
	}
	p := &exprParser{toks: toks}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if p.pos < len(p.toks) {
		return 0, fmt.Errorf("unexpected %q", p.toks[p.pos].text)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errors.New("result is not a finite number")
	}
	return v, nil
}

// FormatNumber renders v without trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type tokKind int

const (
	tokNum tokKind = iota
	tokIdent
	tokOp
)

type token struct {
	kind tokKind
	text string
	num  float64
}

func tokenize(s string) ([]token, error) {
	var toks []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		c := rs[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case unicode.IsDigit(c) || c == '.':
			j := i
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.') {
				j++
			}
			// exponent suffix: 1e3, 2.5E-2
			if j < len(rs) && (rs[j] == 'e' || rs[j] == 'E') {
				k := j + 1
				if k < len(rs) && (rs[k] == '+' || rs[k] == '-') {
					k++
				}
				if k < len(rs) && unicode.IsDigit(rs[k]) {
					for k < len(rs) && unicode.IsDigit(rs[k]) {
						k++
					}
					j = k
				}
			}
			text := string(rs[i:j])
			n, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", text)
			}
			toks = append(toks, token{kind: tokNum, text: text, num: n})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(rs) && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '_') {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: strings.ToLower(string(rs[i:j]))})
			i = j
		case c == '*' && i+1 < len(rs) && rs[i+1] == '*':
			toks = append(toks, token{kind: tokOp, text: "**"})
			i += 2
		case strings.ContainsRune("+-*/%^()", c):
			toks = append(toks, token{kind: tokOp, text: string(c)})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q", c)
		}
	}
	return toks, nil
}

type exprParser struct {
	toks []token
	pos  int
}

func (p *exprParser) peekOp(ops ...string) (string, bool) {
	if p.pos >= len(p.toks) || p.toks[p.pos].kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if p.toks[p.pos].text == op {
			return op, true
		}
	}
	return "", false
}

func (p *exprParser) expr() (float64, error) {
	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOp("+", "-")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *exprParser) term() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOp("*", "/", "%")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "*":
			left *= right
		case "/":
			if right == 0 {
				return 0, errors.New("division by zero")
			}
			left /= right
		case "%":
			if right == 0 {
				return 0, errors.New("modulo by zero")
			}
			r := math.Mod(left, right)
			if r != 0 && (r < 0) != (right < 0) {
				r += right
			}
			left = r
		}
	}
}

func (p *exprParser) unary() (float64, error) {
	if op, ok := p.peekOp("+", "-"); ok {
		p.pos++
		v, err := p.unary()
		if err != nil {
			return 0, err
		}
		if op == "-" {
			return -v, nil
		}
		return v, nil
	}
	return p.power()
}

// power is right-associative and binds tighter than unary minus on its
// left: -2**2 == -4.
func (p *exprParser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	if _, ok := p.peekOp("**", "^"); ok {
		p.pos++
		exp, err := p.unary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *exprParser) primary() (float64, error) {
	if p.pos >= len(p.toks) {
		return 0, errors.New("unexpected end of expression")
	}
	t := p.toks[p.pos]
	switch t.kind {
	case tokNum:
		p.pos++
		return t.num, nil
	case tokIdent:
		p.pos++
		fn, ok := functions[t.text]
		if !ok {
			return 0, fmt.Errorf("unknown function %q", t.text)
		}
		if _, ok := p.peekOp("("); !ok {
			return 0, fmt.Errorf("expected ( after %s", t.text)
		}
		arg, err := p.group()
		if err != nil {
			return 0, err
		}
		return fn(arg)
	}
	if t.text == "(" {
		return p.group()
	}
	return 0, fmt.Errorf("unexpected %q", t.text)
}

func (p *exprParser) group() (float64, error) {
	p.pos++ // (
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if _, ok := p.peekOp(")"); !ok {
		return 0, errors.New("missing )")
	}
	p.pos++
	return v, nil
}

var functions = map[string]func(float64) (float64, error){
	"cube": func(x float64) (float64, error) { return x * x * x, nil },
	"sqrt": func(x float64) (float64, error) {
		if x < 0 {
			return 0, errors.New("sqrt of negative number")
		}
		return math.Sqrt(x), nil
	},
	"abs": func(x float64) (float64, error) { return math.Abs(x), nil },
}
