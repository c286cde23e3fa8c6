package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"sysdb/core/expr"
	"sysdb/core/matcher"
	"sysdb/core/sdbdata"
)

// ParseFilter reads a filter expression of the shape
//
//	field op value [(and|or) field op value ...]
//
// into a matcher tree. field is either a uniform field name (name,
// last_update, age, interval, backend) or attr.<name> to reach a host,
// service or metric's attribute of that name. op is one of
// = != < <= > >= ~ !~, the last two meaning "matches regex"/"does not
// match regex". Values are single- or double-quoted strings, or bare
// tokens with no embedded whitespace. Clauses combine with "and"/"or",
// "and" binding tighter than "or" ("a or b and c" is "a or (b and c)"),
// and "not" negates the clause that follows it; parentheses group
// sub-expressions.
//
// This is the hand-written reader named in spec.md §1 as standing in for
// the real query language's flex/bison grammar: it covers what the
// frontend and alerting rule evaluator need (a flat filter string) without
// attempting the full expression language core/expr and core/matcher
// otherwise support.
func ParseFilter(input string) (matcher.Matcher, error) {
	p := &filterParser{tokens: tokenizeFilter(input)}
	m, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("query: unexpected trailing token %q", p.tokens[p.pos])
	}
	return m, nil
}

type filterParser struct {
	tokens []string
	pos    int
}

func (p *filterParser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *filterParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *filterParser) peekLower() string {
	return strings.ToLower(p.peek())
}

func (p *filterParser) parseOr() (matcher.Matcher, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peekLower() == "or" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = matcher.Or(left, right)
	}
	return left, nil
}

func (p *filterParser) parseAnd() (matcher.Matcher, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peekLower() == "and" {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = matcher.And(left, right)
	}
	return left, nil
}

func (p *filterParser) parseUnary() (matcher.Matcher, error) {
	if p.peekLower() == "not" {
		p.next()
		sub, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return matcher.Not(sub), nil
	}
	if p.peek() == "(" {
		p.next()
		m, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ")" {
			return nil, fmt.Errorf("query: expected ')', got %q", p.peek())
		}
		p.next()
		return m, nil
	}
	return p.parseComparison()
}

func (p *filterParser) parseComparison() (matcher.Matcher, error) {
	field := p.next()
	if field == "" {
		return nil, fmt.Errorf("query: expected a field, got end of input")
	}

	op := p.next()
	if !validCmpToken(op) {
		return nil, fmt.Errorf("query: expected a comparison operator after %q, got %q", field, op)
	}

	rawValue := p.next()
	if rawValue == "" {
		return nil, fmt.Errorf("query: expected a value after %q %q", field, op)
	}
	value := unquoteFilterToken(rawValue)

	if attrName, ok := strings.CutPrefix(field, "attr."); ok {
		switch op {
		case "=":
			return Attr(attrName, value), nil
		case "!=":
			return Not(Attr(attrName, value)), nil
		case "~":
			return AttrRegex(attrName, value)
		case "!~":
			m, err := AttrRegex(attrName, value)
			if err != nil {
				return nil, err
			}
			return Not(m), nil
		default:
			return nil, fmt.Errorf("query: operator %q not supported on attributes", op)
		}
	}

	left, err := Field(field)
	if err != nil {
		return nil, err
	}
	right := literalExpr(value)

	switch op {
	case "~":
		return Regex(left, value)
	case "!~":
		m, err := Regex(left, value)
		if err != nil {
			return nil, err
		}
		return Not(m), nil
	default:
		return Cmp(op, left, right)
	}
}

// literalExpr turns a bare or quoted value token into a constant
// expression, preferring an integer or decimal reading when the token
// parses cleanly as one. None of the five uniform fields is numeric (age,
// last_update and interval are datetimes), so a numeric literal compared
// against one of them is a type mismatch and never matches ("age > 300"
// is always false).
func literalExpr(value string) expr.Expr {
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return expr.Const(sdbdata.Integer(i))
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return expr.Const(sdbdata.Decimal(f))
	}
	return ConstString(value)
}

func validCmpToken(op string) bool {
	switch op {
	case "=", "!=", "<", "<=", ">", ">=", "~", "!~":
		return true
	default:
		return false
	}
}

// tokenizeFilter splits input into field/operator/value/paren/keyword
// tokens, keeping quoted strings intact (including embedded whitespace).
func tokenizeFilter(input string) []string {
	var tokens []string
	runes := []rune(input)
	i, n := 0, len(runes)

	for i < n {
		c := runes[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(' || c == ')':
			tokens = append(tokens, string(c))
			i++
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < n && runes[j] != quote {
				j++
			}
			end := j
			if j < n {
				end = j + 1
			}
			tokens = append(tokens, string(runes[i:end]))
			i = end
		case c == '!' || c == '<' || c == '>' || c == '=' || c == '~':
			j := i + 1
			if j < n && (runes[j] == '=' || (c == '!' && runes[j] == '~')) {
				j++
			}
			tokens = append(tokens, string(runes[i:j]))
			i = j
		default:
			j := i
			for j < n && !unicode.IsSpace(runes[j]) && runes[j] != '(' && runes[j] != ')' &&
				runes[j] != '!' && runes[j] != '<' && runes[j] != '>' && runes[j] != '=' && runes[j] != '~' {
				j++
			}
			tokens = append(tokens, string(runes[i:j]))
			i = j
		}
	}
	return tokens
}

func unquoteFilterToken(tok string) string {
	if len(tok) >= 2 {
		if (tok[0] == '\'' && tok[len(tok)-1] == '\'') || (tok[0] == '"' && tok[len(tok)-1] == '"') {
			return tok[1 : len(tok)-1]
		}
	}
	return tok
}
