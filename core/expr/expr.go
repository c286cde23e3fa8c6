// Package expr implements the expression engine of spec.md §4.3: field
// references, constants, and binary arithmetic over them, evaluated
// against a store object without ever mutating it.
package expr

import (
	"fmt"

	"sysdb/core/sdbdata"
	"sysdb/core/store"
)

// Expr is a node in an expression tree. Eval never mutates obj.
type Expr interface {
	Eval(obj store.Object) (sdbdata.Datum, error)
}

// fieldExpr references one of the uniform fields GetField exposes on the
// current object (NAME, LAST_UPDATE, AGE, INTERVAL, BACKEND).
type fieldExpr struct {
	field store.FieldID
}

// Field builds an expression that reads field off whatever object it is
// evaluated against.
func Field(field store.FieldID) Expr { return fieldExpr{field} }

func (e fieldExpr) Eval(obj store.Object) (sdbdata.Datum, error) {
	return store.GetField(obj, e.field)
}

// constExpr holds a literal datum.
type constExpr struct {
	value sdbdata.Datum
}

// Const builds an expression that always evaluates to value, regardless of
// the object it's evaluated against.
func Const(value sdbdata.Datum) Expr { return constExpr{value} }

func (e constExpr) Eval(store.Object) (sdbdata.Datum, error) {
	return e.value, nil
}

// valueHolder is satisfied by store.Attribute; Value evaluates against it
// directly rather than going through a FieldID, since an attribute's value
// is not one of GetField's five uniform fields.
type valueHolder interface{ Value() sdbdata.Datum }

type valueExpr struct{}

// Value builds an expression reading the evaluated object's own value,
// meaningful only when evaluated against a store.Attribute (typically from
// inside a matcher.Any/All predicate walking a host or service's
// attributes). Mirrors the original implementation's attr_matcher_t, which
// compares an attribute's value directly rather than through a field id.
func Value() Expr { return valueExpr{} }

func (valueExpr) Eval(obj store.Object) (sdbdata.Datum, error) {
	h, ok := obj.(valueHolder)
	if !ok {
		return sdbdata.Datum{}, fmt.Errorf("value: %T has no value", obj)
	}
	return h.Value(), nil
}

// arithExpr is a binary arithmetic expression over two sub-expressions,
// typed by datum promotion (sdbdata.Eval implements the promotion rules).
type arithExpr struct {
	op          sdbdata.Arith
	left, right Expr
}

func binary(op sdbdata.Arith, left, right Expr) Expr {
	return arithExpr{op: op, left: left, right: right}
}

func Add(left, right Expr) Expr    { return binary(sdbdata.ArithAdd, left, right) }
func Sub(left, right Expr) Expr    { return binary(sdbdata.ArithSub, left, right) }
func Mul(left, right Expr) Expr    { return binary(sdbdata.ArithMul, left, right) }
func Div(left, right Expr) Expr    { return binary(sdbdata.ArithDiv, left, right) }
func Mod(left, right Expr) Expr    { return binary(sdbdata.ArithMod, left, right) }
func Concat(left, right Expr) Expr { return binary(sdbdata.ArithConcat, left, right) }

func (e arithExpr) Eval(obj store.Object) (sdbdata.Datum, error) {
	l, err := e.left.Eval(obj)
	if err != nil {
		return sdbdata.Datum{}, err
	}
	r, err := e.right.Eval(obj)
	if err != nil {
		return sdbdata.Datum{}, err
	}
	return sdbdata.Eval(e.op, l, r)
}
