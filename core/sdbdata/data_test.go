package sdbdata

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullDatum(t *testing.T) {
	assert.True(t, Null.IsNull())
	assert.False(t, Integer(0).IsNull())
}

func TestStringFormatting(t *testing.T) {
	assert.Equal(t, "42", Integer(42).String())
	assert.Equal(t, "hello", String("hello").String())

	d := DatetimeMicros(1)
	assert.Equal(t, "1970-01-01 00:00:00 +0000", d.String())
}

func TestFormatTruncates(t *testing.T) {
	d := String("hello world")
	assert.Equal(t, "hello", d.Format(5))
	assert.Equal(t, "hello world", d.Format(-1))
}

func TestCopyIsIndependent(t *testing.T) {
	orig := IntegerArray([]int64{1, 2, 3})
	cp := orig.Copy()
	cp.integerArr[0] = 99
	assert.Equal(t, int64(1), orig.integerArr[0])
}

func TestCompareSameType(t *testing.T) {
	cmp, ok := Compare(Integer(1), Integer(2))
	require.True(t, ok)
	assert.Equal(t, -1, cmp)

	_, ok = Compare(Integer(1), String("1"))
	assert.False(t, ok)
}

func TestEqualAcrossArrays(t *testing.T) {
	assert.True(t, Equal(StringArray([]string{"a", "b"}), StringArray([]string{"a", "b"})))
	assert.False(t, Equal(StringArray([]string{"a"}), StringArray([]string{"a", "b"})))
	assert.False(t, Equal(Integer(1), String("1")))
}

func TestContains(t *testing.T) {
	arr := IntegerArray([]int64{1, 2, 3})
	assert.True(t, Contains(arr, Integer(2)))
	assert.False(t, Contains(arr, Integer(4)))
	assert.False(t, Contains(arr, String("2")))
}

func TestMatchRegex(t *testing.T) {
	re := regexp.MustCompile("^foo")
	matched, ok := MatchRegex(String("foobar"), re)
	require.True(t, ok)
	assert.True(t, matched)

	_, ok = MatchRegex(Integer(1), re)
	assert.False(t, ok)
}

func TestEvalPromotion(t *testing.T) {
	sum, err := Eval(ArithAdd, Integer(2), Integer(3))
	require.NoError(t, err)
	assert.Equal(t, Integer(5), sum)

	mixed, err := Eval(ArithAdd, Integer(2), Decimal(0.5))
	require.NoError(t, err)
	assert.Equal(t, TypeDecimal, mixed.Type())
	assert.Equal(t, 2.5, mixed.Decimal())

	concat, err := Eval(ArithConcat, String("foo"), String("bar"))
	require.NoError(t, err)
	assert.Equal(t, "foobar", concat.Str())

	_, err = Eval(ArithAdd, String("foo"), Integer(1))
	assert.Error(t, err)
}

func TestEvalDivisionByZero(t *testing.T) {
	_, err := Eval(ArithDiv, Integer(1), Integer(0))
	assert.Error(t, err)
}

func TestDatetimeRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d := Datetime(now)
	assert.True(t, d.Time().Equal(now))
}
