package tool

import (
	"fmt"
	"strconv"
	"strings"
)

// Quantities may arrive as arithmetic ("2*(4+5)", "3,5 + 2", "4 x 5") when the
// operator dictates measurements. They are evaluated here, never by the model.
// Decimal commas are accepted; "x" and "×" multiply.
func evaluateQuantityExpression(raw string) (float64, error) {
	tokens, err := tokenizeQuantity(raw)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, fmt.Errorf("expression is empty")
	}

	e := &quantityEval{tokens: tokens}
	v, err := e.expr(0)
	if err != nil {
		return 0, fmt.Errorf("expression %q: %w", raw, err)
	}
	if e.pos < len(e.tokens) {
		return 0, fmt.Errorf("expression %q: unexpected %q", raw, e.tokens[e.pos].text)
	}
	return v, nil
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokOperator
	tokOpen
	tokClose
)

type quantityToken struct {
	kind  tokenKind
	text  string
	value float64
}

func tokenizeQuantity(raw string) ([]quantityToken, error) {
	var out []quantityToken
	runes := []rune(strings.TrimSpace(raw))
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == ' ' || r == '\t':
			i++
		case r >= '0' && r <= '9' || r == '.' || r == ',':
			start := i
			for i < len(runes) && (runes[i] >= '0' && runes[i] <= '9' || runes[i] == '.' || runes[i] == ',') {
				i++
			}
			text := strings.ReplaceAll(string(runes[start:i]), ",", ".")
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", string(runes[start:i]))
			}
			out = append(out, quantityToken{kind: tokNumber, text: text, value: v})
		case r == '+' || r == '-' || r == '*' || r == '/':
			out = append(out, quantityToken{kind: tokOperator, text: string(r)})
			i++
		case r == 'x' || r == 'X' || r == '×':
			out = append(out, quantityToken{kind: tokOperator, text: "*"})
			i++
		case r == '(':
			out = append(out, quantityToken{kind: tokOpen, text: "("})
			i++
		case r == ')':
			out = append(out, quantityToken{kind: tokClose, text: ")"})
			i++
		default:
			return nil, fmt.Errorf("expression %q contains invalid character %q", raw, r)
		}
	}
	return out, nil
}

var operatorPrecedence = map[string]int{"+": 1, "-": 1, "*": 2, "/": 2}

// quantityEval evaluates by precedence climbing over the token list.
type quantityEval struct {
	tokens []quantityToken
	pos    int
}

func (e *quantityEval) expr(minPrec int) (float64, error) {
	left, err := e.unary()
	if err != nil {
		return 0, err
	}
	for e.pos < len(e.tokens) {
		tok := e.tokens[e.pos]
		prec, ok := operatorPrecedence[tok.text]
		if tok.kind != tokOperator || !ok || prec <= minPrec {
			break
		}
		e.pos++
		right, err := e.expr(prec)
		if err != nil {
			return 0, err
		}
		if left, err = applyOperator(tok.text, left, right); err != nil {
			return 0, err
		}
	}
	return left, nil
}

func (e *quantityEval) unary() (float64, error) {
	if e.pos >= len(e.tokens) {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	tok := e.tokens[e.pos]
	e.pos++

	switch tok.kind {
	case tokNumber:
		return tok.value, nil
	case tokOpen:
		v, err := e.expr(0)
		if err != nil {
			return 0, err
		}
		if e.pos >= len(e.tokens) || e.tokens[e.pos].kind != tokClose {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		e.pos++
		return v, nil
	case tokOperator:
		if tok.text == "-" || tok.text == "+" {
			v, err := e.unary()
			if tok.text == "-" {
				v = -v
			}
			return v, err
		}
	}
	return 0, fmt.Errorf("unexpected %q", tok.text)
}

func applyOperator(op string, a, b float64) (float64, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	default:
		if b == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return a / b, nil
	}
}
