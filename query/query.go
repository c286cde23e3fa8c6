// Package query is the connection layer's translation contract: the thin
// constructor surface frontend and alerting code uses to build expression
// and matcher trees without importing core/expr and core/matcher directly,
// plus a small hand-written filter-string reader. It deliberately stops
// short of a real query language grammar (no flex/bison, no operator
// precedence climbing beyond and/or/not) — that parser is kept as an
// external collaborator, per spec.md §1.
package query

import (
	"fmt"
	"regexp"

	"sysdb/core/expr"
	"sysdb/core/matcher"
	"sysdb/core/sdbdata"
	"sysdb/core/store"
)

// Field builds an expression reading one of the five uniform object fields.
func Field(name string) (expr.Expr, error) {
	id, ok := fieldIDs[name]
	if !ok {
		return nil, fmt.Errorf("query: unknown field %q", name)
	}
	return expr.Field(id), nil
}

var fieldIDs = map[string]store.FieldID{
	"name":        store.FieldName,
	"last_update": store.FieldLastUpdate,
	"age":         store.FieldAge,
	"interval":    store.FieldInterval,
	"backend":     store.FieldBackend,
}

// Value builds the expression naming an attribute's own value, for use in
// a sub-matcher evaluated against an attribute (see Attr below).
func Value() expr.Expr { return expr.Value() }

// ConstString builds a constant string expression. Callers assembling a
// matcher tree in code can reach for sdbdata.Integer/Decimal/etc and
// expr.Const directly for other literal types.
func ConstString(s string) expr.Expr { return expr.Const(sdbdata.String(s)) }

// Cmp builds a comparison matcher from two expressions and an operator
// name ("=", "!=", "<", "<=", ">", ">=").
func Cmp(op string, left, right expr.Expr) (matcher.Matcher, error) {
	cmpOp, ok := cmpOps[op]
	if !ok {
		return nil, fmt.Errorf("query: unknown comparison operator %q", op)
	}
	return matcher.Cmp(cmpOp, left, right), nil
}

var cmpOps = map[string]matcher.CmpOp{
	"=":  matcher.CmpEQ,
	"!=": matcher.CmpNE,
	"<":  matcher.CmpLT,
	"<=": matcher.CmpLE,
	">":  matcher.CmpGT,
	">=": matcher.CmpGE,
}

// Regex builds a matcher testing e against a compiled regular expression.
func Regex(e expr.Expr, pattern string) (matcher.Matcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("query: invalid regex %q: %w", pattern, err)
	}
	return matcher.Regex(e, re), nil
}

// Attr builds a matcher testing a host, service or metric's attribute
// named attrName for string equality against value, mirroring the
// original implementation's attr_matcher_t (store-private.h: name plus a
// string_matcher_t value), expressed here through the any/value/name
// primitives already in core/matcher and core/expr.
func Attr(attrName, value string) matcher.Matcher {
	return matcher.Any(matcher.ChildAttribute, matcher.And(
		matcher.Name(store.ObjAttribute, attrName),
		matcher.Eq(Value(), ConstString(value)),
	))
}

// AttrRegex is Attr's regex variant.
func AttrRegex(attrName, pattern string) (matcher.Matcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("query: invalid regex %q: %w", pattern, err)
	}
	return matcher.Any(matcher.ChildAttribute, matcher.And(
		matcher.Name(store.ObjAttribute, attrName),
		matcher.Regex(Value(), re),
	)), nil
}

// And, Or and Not re-export the boolean combinators so callers never need
// to import core/matcher just to compose filters built through this
// package.
func And(left, right matcher.Matcher) matcher.Matcher { return matcher.And(left, right) }
func Or(left, right matcher.Matcher) matcher.Matcher  { return matcher.Or(left, right) }
func Not(sub matcher.Matcher) matcher.Matcher         { return matcher.Not(sub) }
