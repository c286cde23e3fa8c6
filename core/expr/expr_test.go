package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysdb/core/sdbdata"
	"sysdb/core/store"
)

func TestFieldExpr(t *testing.T) {
	s := store.New()
	_, err := s.StoreHost("h1", 100, "be1")
	require.NoError(t, err)
	h := s.GetHost("h1")

	d, err := Field(store.FieldName).Eval(h)
	require.NoError(t, err)
	assert.Equal(t, "h1", d.Str())
}

func TestConstExpr(t *testing.T) {
	s := store.New()
	_, _ = s.StoreHost("h1", 1, "be1")
	h := s.GetHost("h1")

	d, err := Const(sdbdata.Integer(42)).Eval(h)
	require.NoError(t, err)
	assert.Equal(t, int64(42), d.Integer())
}

func TestArithExpr(t *testing.T) {
	s := store.New()
	_, _ = s.StoreHost("h1", 1, "be1")
	h := s.GetHost("h1")

	sum, err := Add(Const(sdbdata.Integer(2)), Const(sdbdata.Integer(3))).Eval(h)
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum.Integer())

	_, err = Add(Const(sdbdata.String("x")), Const(sdbdata.Integer(1))).Eval(h)
	assert.Error(t, err)
}

func TestConcatExpr(t *testing.T) {
	s := store.New()
	_, _ = s.StoreHost("h1", 1, "be1")
	h := s.GetHost("h1")

	d, err := Concat(Const(sdbdata.String("foo")), Const(sdbdata.String("bar"))).Eval(h)
	require.NoError(t, err)
	assert.Equal(t, "foobar", d.Str())
}

func TestFieldExprPropagatesError(t *testing.T) {
	s := store.New()
	_, _ = s.StoreHost("h1", 1, "be1")
	h := s.GetHost("h1")

	_, err := Field(store.FieldID(999)).Eval(h)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestValueExprReadsAttribute(t *testing.T) {
	s := store.New()
	_, _ = s.StoreHost("h1", 1, "be1")
	_, _ = s.StoreAttribute("h1", "role", sdbdata.String("frontend"), 2, "be1")
	h := s.GetHost("h1")
	a, ok := h.Attribute("role")
	require.True(t, ok)

	d, err := Value().Eval(a)
	require.NoError(t, err)
	assert.Equal(t, "frontend", d.Str())
}

func TestValueExprErrorsOnNonAttribute(t *testing.T) {
	s := store.New()
	_, _ = s.StoreHost("h1", 1, "be1")
	h := s.GetHost("h1")

	_, err := Value().Eval(h)
	assert.Error(t, err)
}
