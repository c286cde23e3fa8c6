package matcher

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysdb/core/expr"
	"sysdb/core/sdbdata"
	"sysdb/core/store"
)

func setupHost(t *testing.T) (*store.Store, *store.Host) {
	t.Helper()
	s := store.New()
	_, err := s.StoreHost("h1", 1, "be1")
	require.NoError(t, err)
	_, err = s.StoreAttribute("h1", "role", sdbdata.String("db"), 2, "be1")
	require.NoError(t, err)
	_, err = s.StoreService("h1", "svc1", 2, "be1")
	require.NoError(t, err)
	h := s.GetHost("h1")
	require.NotNil(t, h)
	return s, h
}

func TestCmpMatchers(t *testing.T) {
	_, h := setupHost(t)
	m := Eq(expr.Const(sdbdata.String("h1")), expr.Const(sdbdata.String("h1")))
	assert.True(t, m.Match(h))

	m = Ne(expr.Const(sdbdata.String("h1")), expr.Const(sdbdata.String("h2")))
	assert.True(t, m.Match(h))
}

func TestCmpTypeMismatchIsFalseNotError(t *testing.T) {
	_, h := setupHost(t)
	m := Eq(expr.Const(sdbdata.Integer(1)), expr.Const(sdbdata.String("1")))
	assert.False(t, m.Match(h))

	m = Ne(expr.Const(sdbdata.Integer(1)), expr.Const(sdbdata.String("1")))
	assert.False(t, m.Match(h))

	m = Lt(expr.Const(sdbdata.Integer(1)), expr.Const(sdbdata.String("1")))
	assert.False(t, m.Match(h))
}

func TestRegexMatchers(t *testing.T) {
	_, h := setupHost(t)
	re := regexp.MustCompile("^h")
	assert.True(t, Regex(expr.Field(store.FieldName), re).Match(h))
	assert.False(t, NotRegex(expr.Field(store.FieldName), re).Match(h))
}

func TestNullMatchers(t *testing.T) {
	_, h := setupHost(t)
	assert.True(t, IsNull(expr.Const(sdbdata.Null)).Match(h))
	assert.False(t, IsNotNull(expr.Const(sdbdata.Null)).Match(h))
}

func TestBooleanCombinators(t *testing.T) {
	_, h := setupHost(t)
	trueM := Eq(expr.Field(store.FieldName), expr.Const(sdbdata.String("h1")))
	falseM := Eq(expr.Field(store.FieldName), expr.Const(sdbdata.String("nope")))

	assert.True(t, And(trueM, trueM).Match(h))
	assert.False(t, And(trueM, falseM).Match(h))
	assert.True(t, Or(falseM, trueM).Match(h))
	assert.True(t, Not(falseM).Match(h))
}

func TestInMatcher(t *testing.T) {
	_, h := setupHost(t)
	m := In(expr.Field(store.FieldName), sdbdata.StringArray([]string{"h1", "h2"}))
	assert.True(t, m.Match(h))
}

func TestNameMatcher(t *testing.T) {
	_, h := setupHost(t)
	assert.True(t, Name(store.ObjHost, "H1").Match(h))
	assert.False(t, Name(store.ObjService, "h1").Match(h))
}

func TestAnyAllOverAttributesAndServices(t *testing.T) {
	_, h := setupHost(t)

	hasRoleDb := Eq(expr.Field(store.FieldName), expr.Const(sdbdata.String("role")))
	assert.True(t, Any(ChildAttribute, hasRoleDb).Match(h))

	noSuchAttr := Eq(expr.Field(store.FieldName), expr.Const(sdbdata.String("nope")))
	assert.False(t, Any(ChildAttribute, noSuchAttr).Match(h))

	anyService := Eq(expr.Field(store.FieldName), expr.Const(sdbdata.String("svc1")))
	assert.True(t, All(ChildService, anyService).Match(h))
}

func TestAllOverEmptySetIsTrue(t *testing.T) {
	_, h := setupHost(t)
	assert.True(t, All(ChildMetric, Eq(expr.Field(store.FieldName), expr.Const(sdbdata.String("x")))).Match(h))
	assert.False(t, Any(ChildMetric, Eq(expr.Field(store.FieldName), expr.Const(sdbdata.String("x")))).Match(h))
}
