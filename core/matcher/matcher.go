// Package matcher implements the boolean predicate engine of spec.md §4.4:
// comparisons and regex tests over expressions, structural any/all over a
// host's attributes, services and metrics, and the boolean combinators that
// tie them together. It is grounded on the original implementation's
// MATCHER_* enum and the constructors used by its query frontend
// (store-private.h, frontend/query.c).
package matcher

import (
	"regexp"
	"strings"

	"sysdb/core/expr"
	"sysdb/core/sdbdata"
	"sysdb/core/store"
)

// Matcher decides whether an object satisfies a predicate. Implementations
// never mutate the object they're given.
type Matcher interface {
	Match(obj store.Object) bool
}

// --- comparisons -----------------------------------------------------------

// CmpOp identifies a scalar comparison.
type CmpOp int

const (
	CmpEQ CmpOp = iota
	CmpNE
	CmpLT
	CmpLE
	CmpGT
	CmpGE
)

type cmpMatcher struct {
	op          CmpOp
	left, right expr.Expr
}

// Cmp builds a matcher comparing two expressions with op. A type mismatch
// between the evaluated operands is not an error: it makes every
// comparison, NE included, false, mirroring the original implementation's
// "incomparable values never match" rule. Same-typed values that are not
// ordered (arrays) are still tested for equality by EQ and NE.
func Cmp(op CmpOp, left, right expr.Expr) Matcher {
	return cmpMatcher{op: op, left: left, right: right}
}

func Eq(left, right expr.Expr) Matcher { return Cmp(CmpEQ, left, right) }
func Ne(left, right expr.Expr) Matcher { return Cmp(CmpNE, left, right) }
func Lt(left, right expr.Expr) Matcher { return Cmp(CmpLT, left, right) }
func Le(left, right expr.Expr) Matcher { return Cmp(CmpLE, left, right) }
func Gt(left, right expr.Expr) Matcher { return Cmp(CmpGT, left, right) }
func Ge(left, right expr.Expr) Matcher { return Cmp(CmpGE, left, right) }

func (m cmpMatcher) Match(obj store.Object) bool {
	l, err := m.left.Eval(obj)
	if err != nil {
		return false
	}
	r, err := m.right.Eval(obj)
	if err != nil {
		return false
	}

	cmp, ok := sdbdata.Compare(l, r)
	if !ok {
		if l.Type() != r.Type() {
			return false
		}
		switch m.op {
		case CmpEQ:
			return sdbdata.Equal(l, r)
		case CmpNE:
			return !sdbdata.Equal(l, r)
		default:
			return false
		}
	}

	switch m.op {
	case CmpEQ:
		return cmp == 0
	case CmpNE:
		return cmp != 0
	case CmpLT:
		return cmp < 0
	case CmpLE:
		return cmp <= 0
	case CmpGT:
		return cmp > 0
	case CmpGE:
		return cmp >= 0
	default:
		return false
	}
}

// --- regex ------------------------------------------------------------------

type regexMatcher struct {
	expr   expr.Expr
	re     *regexp.Regexp
	negate bool
}

// Regex builds a matcher testing expr's evaluated value against re. A
// non-string, non-matchable value never matches.
func Regex(e expr.Expr, re *regexp.Regexp) Matcher {
	return regexMatcher{expr: e, re: re}
}

// NotRegex matches a string value that re does not match. Like Regex, it
// never matches a non-string value.
func NotRegex(e expr.Expr, re *regexp.Regexp) Matcher {
	return regexMatcher{expr: e, re: re, negate: true}
}

func (m regexMatcher) Match(obj store.Object) bool {
	d, err := m.expr.Eval(obj)
	if err != nil {
		return false
	}
	matched, ok := sdbdata.MatchRegex(d, m.re)
	if !ok {
		return false
	}
	if m.negate {
		return !matched
	}
	return matched
}

// --- null checks -------------------------------------------------------------

type nullMatcher struct {
	expr   expr.Expr
	negate bool
}

// IsNull matches when expr evaluates to the null datum, or to an error
// (a missing field behaves as null rather than propagating a failure).
func IsNull(e expr.Expr) Matcher { return nullMatcher{expr: e} }

// IsNotNull is IsNull's negation.
func IsNotNull(e expr.Expr) Matcher { return nullMatcher{expr: e, negate: true} }

func (m nullMatcher) Match(obj store.Object) bool {
	d, err := m.expr.Eval(obj)
	isNull := err != nil || d.IsNull()
	if m.negate {
		return !isNull
	}
	return isNull
}

// --- boolean combinators -----------------------------------------------------

type andMatcher struct{ left, right Matcher }
type orMatcher struct{ left, right Matcher }
type notMatcher struct{ sub Matcher }

// And short-circuits: right is never evaluated once left is false.
func And(left, right Matcher) Matcher { return andMatcher{left, right} }

// Or short-circuits: right is never evaluated once left is true.
func Or(left, right Matcher) Matcher { return orMatcher{left, right} }

func Not(sub Matcher) Matcher { return notMatcher{sub} }

func (m andMatcher) Match(obj store.Object) bool { return m.left.Match(obj) && m.right.Match(obj) }
func (m orMatcher) Match(obj store.Object) bool  { return m.left.Match(obj) || m.right.Match(obj) }
func (m notMatcher) Match(obj store.Object) bool { return !m.sub.Match(obj) }

// --- membership ---------------------------------------------------------------

type inMatcher struct {
	expr  expr.Expr
	array sdbdata.Datum
}

// In matches when expr's evaluated value occurs in the array datum.
func In(e expr.Expr, array sdbdata.Datum) Matcher {
	return inMatcher{expr: e, array: array}
}

func (m inMatcher) Match(obj store.Object) bool {
	d, err := m.expr.Eval(obj)
	if err != nil {
		return false
	}
	return sdbdata.Contains(m.array, d)
}

// --- name matching ------------------------------------------------------------

type nameMatcher struct {
	objType store.ObjType
	name    string
	re      *regexp.Regexp
}

// Name matches objects of the given type (0 meaning "any type") by exact
// case-insensitive name. Present in the original implementation's matcher
// table as MATCHER_NAME but dropped from the distilled spec's matcher list;
// restored here since every lookup path in practice filters by name.
func Name(objType store.ObjType, name string) Matcher {
	return nameMatcher{objType: objType, name: name}
}

// NameRegex is Name's regex variant.
func NameRegex(objType store.ObjType, re *regexp.Regexp) Matcher {
	return nameMatcher{objType: objType, re: re}
}

func (m nameMatcher) Match(obj store.Object) bool {
	if m.objType != 0 && obj.Type() != m.objType {
		return false
	}
	if m.re != nil {
		return m.re.MatchString(obj.Name())
	}
	return strings.EqualFold(obj.Name(), m.name)
}

// --- structural any/all -------------------------------------------------------

// ChildKind selects which structural child set any/all iterate over.
type ChildKind int

const (
	ChildAttribute ChildKind = iota
	ChildService
	ChildMetric
)

// attrHolder, serviceHolder and metricHolder are satisfied by whichever of
// Host, Service and Metric actually carries that kind of child; Attribute
// satisfies none of them, so Any/All evaluated against an attribute is
// simply empty.
type attrHolder interface{ Attributes() []*store.Attribute }
type serviceHolder interface{ Services() []*store.Service }
type metricHolder interface{ Metrics() []*store.Metric }

func childrenOf(obj store.Object, kind ChildKind) []store.Object {
	switch kind {
	case ChildAttribute:
		h, ok := obj.(attrHolder)
		if !ok {
			return nil
		}
		attrs := h.Attributes()
		out := make([]store.Object, len(attrs))
		for i, a := range attrs {
			out[i] = a
		}
		return out
	case ChildService:
		h, ok := obj.(serviceHolder)
		if !ok {
			return nil
		}
		svcs := h.Services()
		out := make([]store.Object, len(svcs))
		for i, s := range svcs {
			out[i] = s
		}
		return out
	case ChildMetric:
		h, ok := obj.(metricHolder)
		if !ok {
			return nil
		}
		metrics := h.Metrics()
		out := make([]store.Object, len(metrics))
		for i, m := range metrics {
			out[i] = m
		}
		return out
	default:
		return nil
	}
}

type anyMatcher struct {
	kind ChildKind
	sub  Matcher
}

type allMatcher struct {
	kind ChildKind
	sub  Matcher
}

// Any matches if at least one child of the given kind satisfies sub. An
// empty child set never matches.
func Any(kind ChildKind, sub Matcher) Matcher { return anyMatcher{kind: kind, sub: sub} }

// All matches if every child of the given kind satisfies sub. An empty
// child set always matches, per the usual universal-quantifier convention.
func All(kind ChildKind, sub Matcher) Matcher { return allMatcher{kind: kind, sub: sub} }

func (m anyMatcher) Match(obj store.Object) bool {
	for _, c := range childrenOf(obj, m.kind) {
		if m.sub.Match(c) {
			return true
		}
	}
	return false
}

func (m allMatcher) Match(obj store.Object) bool {
	for _, c := range childrenOf(obj, m.kind) {
		if !m.sub.Match(c) {
			return false
		}
	}
	return true
}
