package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysdb/core/sdbdata"
)

func TestStoreHostCreateAndTouch(t *testing.T) {
	s := New()

	status, err := s.StoreHost("h1", 1, "be1")
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, status)
	assert.Equal(t, 1, s.HostCount())

	status, err = s.StoreHost("H1", 2, "be2")
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, status)
	assert.Equal(t, 1, s.HostCount(), "case-insensitive identity: same host, not a second one")

	h := s.GetHost("h1")
	require.NotNil(t, h)
	assert.Equal(t, "h1", h.Name(), "display name keeps the casing of the first update")
	assert.Equal(t, []string{"be1", "be2"}, h.Backends())
}

func TestStoreHostRejectsEmptyName(t *testing.T) {
	s := New()
	_, err := s.StoreHost("", 1, "be1")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestStoreServiceRequiresExistingHost(t *testing.T) {
	s := New()
	_, err := s.StoreService("h1", "svc1", 1, "be1")
	assert.ErrorIs(t, err, ErrMissingParent)
}

func TestSameOrEarlierTimestampIsNoop(t *testing.T) {
	s := New()
	_, err := s.StoreHost("l", 1, "be1")
	require.NoError(t, err)
	_, err = s.StoreAttribute("l", "k1", sdbdata.String("v1"), 1, "be1")
	require.NoError(t, err)

	status, err := s.StoreAttribute("l", "k1", sdbdata.String("v3"), 1, "be1")
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, status)

	h := s.GetHost("l")
	require.NotNil(t, h)
	attr, ok := h.Attribute("k1")
	require.True(t, ok)
	assert.Equal(t, "v1", attr.Value().Str(), "ts == last_update must not mutate the value")
}

func TestNullMetricDescriptorDoesNotRevertExisting(t *testing.T) {
	s := New()
	_, err := s.StoreHost("h1", 1, "be1")
	require.NoError(t, err)

	_, err = s.StoreMetric("h1", "m1", &MetricStoreRef{Type: "localblock", ID: "abc"}, 2, "be1")
	require.NoError(t, err)

	status, err := s.StoreMetric("h1", "m1", nil, 3, "be1")
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, status)

	h := s.GetHost("h1")
	m, ok := h.Metric("m1")
	require.True(t, ok)
	require.NotNil(t, m.StoreRef())
	assert.Equal(t, "abc", m.StoreRef().ID)
}

func TestUpdateIntervalEstimator(t *testing.T) {
	s := New()
	for _, ts := range []Timestamp{10, 20, 30, 40} {
		_, err := s.StoreHost("h1", ts, "be1")
		require.NoError(t, err)
	}
	h := s.GetHost("h1")
	require.NotNil(t, h)
	assert.Equal(t, Timestamp(10), h.Interval())

	_, err := s.StoreHost("h1", 60, "be1")
	require.NoError(t, err)
	assert.Equal(t, Timestamp(11), h.Interval())

	_, err = s.StoreHost("h1", 100, "be1")
	require.NoError(t, err)
	assert.Equal(t, Timestamp(13), h.Interval())
}

func TestAttributeHierarchy(t *testing.T) {
	s := New()
	_, err := s.StoreHost("h1", 1, "be1")
	require.NoError(t, err)
	_, err = s.StoreService("h1", "svc1", 1, "be1")
	require.NoError(t, err)
	_, err = s.StoreServiceAttribute("h1", "svc1", "k1", sdbdata.Integer(42), 2, "be1")
	require.NoError(t, err)

	h := s.GetHost("h1")
	svc, ok := h.Service("svc1")
	require.True(t, ok)
	attr, ok := svc.Attribute("k1")
	require.True(t, ok)
	assert.Equal(t, int64(42), attr.Value().Integer())
	assert.Equal(t, h, attr.Parent().Host)
	assert.Equal(t, svc, attr.Parent().Service)
}

func TestIterateEmptyStore(t *testing.T) {
	s := New()
	err := s.Iterate(func(h *Host) int { return 0 })
	assert.ErrorIs(t, err, ErrEmptyStore)
}

func TestIterateAbort(t *testing.T) {
	s := New()
	_, _ = s.StoreHost("a", 1, "be1")
	_, _ = s.StoreHost("b", 1, "be1")

	seen := 0
	err := s.Iterate(func(h *Host) int {
		seen++
		return -1
	})
	var aborted *ErrIterationAborted
	require.True(t, errors.As(err, &aborted))
	assert.Equal(t, -1, aborted.Code)
	assert.Equal(t, 1, seen)
}

func TestGetFieldAt(t *testing.T) {
	s := New()
	_, _ = s.StoreHost("h1", 100, "be1")
	h := s.GetHost("h1")

	name, err := GetFieldAt(h, FieldName, 1000)
	require.NoError(t, err)
	assert.Equal(t, "h1", name.Str())

	age, err := GetFieldAt(h, FieldAge, 1000)
	require.NoError(t, err)
	assert.False(t, age.IsNull())

	_, err = GetFieldAt(h, FieldID(999), 1000)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestHostsMatchingAttrCondition(t *testing.T) {
	s := New()
	_, _ = s.StoreHost("h1", 1, "be1")
	_, _ = s.StoreHost("h2", 1, "be1")
	_, _ = s.StoreAttribute("h1", "role", sdbdata.String("db"), 2, "be1")
	_, _ = s.StoreAttribute("h2", "role", sdbdata.String("web"), 2, "be1")

	matches := s.HostsMatching(&AttrCondition{Name: "role", Value: sdbdata.String("db")})
	require.Len(t, matches, 1)
	assert.Equal(t, "h1", matches[0].Name())

	assert.Len(t, s.HostsMatching(nil), 2)
}

func TestRefCounting(t *testing.T) {
	s := New()
	_, _ = s.StoreHost("h1", 1, "be1")
	h := s.GetHost("h1")
	require.NotNil(t, h)
	assert.EqualValues(t, 2, h.RefCount(), "newHost seeds refcount 1, GetHost retains a second")
	h.Release()
	assert.EqualValues(t, 1, h.RefCount())
}
