// Package filter parses OData-style filter expressions into query
// expression trees. Attribute paths come out as unresolved Column nodes
// (the Name may span associations, e.g. customer/email); callers resolve
// them against a model afterwards.
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jinzhu/now"
	"github.com/modelkit/modelq/query"
)

// Param is a named placeholder inside a parsed expression, written as
// @name in the source text. Bind replaces it with a literal value.
type Param struct {
	Name string
}

func (p Param) Canonical(w query.Writer) {
	w.WriteByte('@')
	w.WriteString(p.Name)
}

var comparisonOps = map[string]query.Operator{
	"eq": query.Eq,
	"ne": query.Ne,
	"gt": query.Gt,
	"ge": query.Ge,
	"lt": query.Lt,
	"le": query.Le,
}

// boolFuncs are predicate functions usable directly in boolean position.
var boolFuncs = map[string]query.Operator{
	"contains":   query.Contains,
	"startswith": query.StartsWith,
	"endswith":   query.EndsWith,
}

var arithmeticOps = map[string]string{
	"add": "add",
	"sub": "subtract",
	"mul": "multiply",
	"div": "divide",
	"mod": "mod",
}

// valueFuncs are the transforms accepted in operand position. Aggregates
// are deliberately absent; a filter predicate is evaluated per row.
var valueFuncs = map[string]bool{
	"indexof": true, "substring": true, "substr": true, "concat": true,
	"length": true, "trim": true, "tolower": true, "toupper": true,
	"round": true, "floor": true, "ceiling": true,
	"year": true, "month": true, "day": true,
	"hour": true, "minute": true, "second": true, "date": true,
}

// Parse reads a filter expression and returns its expression tree.
func Parse(input string) (query.Expression, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	p := &parser{lex: &lexer{input: input}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokenEOF {
		return nil, fmt.Errorf("unexpected %q at position %d", p.tok.text, p.tok.pos)
	}
	return expr, nil
}

// Bind replaces every Param node with its value from params. A parameter
// missing from the map is an error.
func Bind(expr query.Expression, params map[string]interface{}) (query.Expression, error) {
	switch e := expr.(type) {
	case nil:
		return nil, nil
	case Param:
		v, ok := params[e.Name]
		if !ok {
			return nil, fmt.Errorf("filter parameter @%s was not supplied", e.Name)
		}
		return query.Value{V: v}, nil
	case query.Comparison:
		left, err := Bind(e.Left, params)
		if err != nil {
			return nil, err
		}
		right, err := Bind(e.Right, params)
		if err != nil {
			return nil, err
		}
		return query.Comparison{Left: left, Op: e.Op, Right: right}, nil
	case query.Group:
		exprs := make([]query.Expression, len(e.Exprs))
		for i, member := range e.Exprs {
			bound, err := Bind(member, params)
			if err != nil {
				return nil, err
			}
			exprs[i] = bound
		}
		return query.Group{Op: e.Op, Exprs: exprs}, nil
	case query.Not:
		inner, err := Bind(e.Expr, params)
		if err != nil {
			return nil, err
		}
		return query.Not{Expr: inner}, nil
	case query.Func:
		args := make([]query.Expression, len(e.Args))
		for i, arg := range e.Args {
			bound, err := Bind(arg, params)
			if err != nil {
				return nil, err
			}
			args[i] = bound
		}
		return query.Func{Name: e.Name, Alias: e.Alias, Args: args}, nil
	default:
		return expr, nil
	}
}

type parser struct {
	lex *lexer
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

func (p *parser) isKeyword(word string) bool {
	return p.tok.kind == tokenIdent && strings.EqualFold(p.tok.text, word)
}

func (p *parser) parseOr() (query.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = query.Or(left, right)
	}
	return left, nil
}

func (p *parser) parseAnd() (query.Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = query.And(left, right)
	}
	return left, nil
}

func (p *parser) parseNot() (query.Expression, error) {
	if p.isKeyword("not") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return query.Not{Expr: inner}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (query.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	if p.tok.kind == tokenIdent {
		word := strings.ToLower(p.tok.text)
		if op, ok := comparisonOps[word]; ok {
			if err := p.advance(); err != nil {
				return nil, err
			}
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			// contains(a,'x') eq false reads as a negated predicate
			if cmp, ok := left.(query.Comparison); ok && isPredicate(cmp.Op) {
				if b, ok := boolLiteral(right); ok {
					if (op == query.Eq) == b {
						return cmp, nil
					}
					return query.Not{Expr: cmp}, nil
				}
			}
			return query.Comparison{Left: left, Op: op, Right: right}, nil
		}
		if word == "in" {
			if err := p.advance(); err != nil {
				return nil, err
			}
			values, err := p.parseValueList()
			if err != nil {
				return nil, err
			}
			return query.Comparison{Left: left, Op: query.In, Right: values}, nil
		}
	}
	return left, nil
}

func (p *parser) parseAdditive() (query.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("add") || p.isKeyword("sub") {
		name := arithmeticOps[strings.ToLower(p.tok.text)]
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = query.Func{Name: name, Args: []query.Expression{left, right}}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (query.Expression, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("mul") || p.isKeyword("div") || p.isKeyword("mod") {
		name := arithmeticOps[strings.ToLower(p.tok.text)]
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = query.Func{Name: name, Args: []query.Expression{left, right}}
	}
	return left, nil
}

func (p *parser) parsePrimary() (query.Expression, error) {
	switch p.tok.kind {
	case tokenLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokenRParen {
			return nil, fmt.Errorf("expected ) at position %d", p.tok.pos)
		}
		return inner, p.advance()
	case tokenString:
		v := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if t, err := now.Parse(v); err == nil && looksLikeDate(v) {
			return query.Value{V: t}, nil
		}
		return query.Value{V: v}, nil
	case tokenNumber:
		text := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if strings.ContainsRune(text, '.') {
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed number %q", text)
			}
			return query.Value{V: f}, nil
		}
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed number %q", text)
		}
		return query.Value{V: n}, nil
	case tokenParam:
		name := p.tok.text
		return Param{Name: name}, p.advance()
	case tokenIdent:
		word := p.tok.text
		lower := strings.ToLower(word)
		switch lower {
		case "null":
			return nil, p.advance()
		case "true":
			return query.Value{V: true}, p.advance()
		case "false":
			return query.Value{V: false}, p.advance()
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind == tokenLParen {
			return p.parseCall(lower, word)
		}
		return query.Column{Name: word}, nil
	}
	return nil, fmt.Errorf("unexpected %q at position %d", p.tok.text, p.tok.pos)
}

func (p *parser) parseCall(lower, word string) (query.Expression, error) {
	if err := p.advance(); err != nil { // consume (
		return nil, err
	}
	var args []query.Expression
	if p.tok.kind != tokenRParen {
		for {
			arg, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.tok.kind != tokenComma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if p.tok.kind != tokenRParen {
		return nil, fmt.Errorf("expected ) at position %d", p.tok.pos)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	if op, ok := boolFuncs[lower]; ok {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s expects two arguments", lower)
		}
		return query.Comparison{Left: args[0], Op: op, Right: args[1]}, nil
	}
	if !valueFuncs[lower] {
		return nil, fmt.Errorf("unknown function %q", word)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%s expects at least one argument", lower)
	}
	return query.Func{Name: lower, Args: args}, nil
}

func (p *parser) parseValueList() (query.Expression, error) {
	if p.tok.kind != tokenLParen {
		return nil, fmt.Errorf("expected ( after in at position %d", p.tok.pos)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var values []interface{}
	for p.tok.kind != tokenRParen {
		member, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		switch m := member.(type) {
		case query.Value:
			values = append(values, m.V)
		case nil:
			values = append(values, nil)
		default:
			return nil, fmt.Errorf("in expects literal members")
		}
		if p.tok.kind == tokenComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	return query.Values{V: values}, p.advance()
}

func isPredicate(op query.Operator) bool {
	return op == query.Contains || op == query.StartsWith || op == query.EndsWith
}

func boolLiteral(expr query.Expression) (bool, bool) {
	v, ok := expr.(query.Value)
	if !ok {
		return false, false
	}
	b, ok := v.V.(bool)
	return b, ok
}

// looksLikeDate guards now.Parse, which is permissive enough to accept
// plain numbers and time-of-day fragments.
func looksLikeDate(s string) bool {
	if len(s) < 8 {
		return false
	}
	dashes := strings.Count(s, "-")
	return dashes >= 2
}
