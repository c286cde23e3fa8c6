package storejson

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysdb/core/matcher"
	"sysdb/core/sdbdata"
	"sysdb/core/store"
)

func TestWriteHostBareHeader(t *testing.T) {
	s := store.New()
	_, err := s.StoreHost("h1", 1, "")
	require.NoError(t, err)
	h := s.GetHost("h1")

	var buf strings.Builder
	require.NoError(t, WriteHost(&buf, h, SkipAll, nil))

	got := buf.String()
	assert.True(t, strings.HasPrefix(got, `{"name": "h1", "last_update": "1970-01-01 00:00:00 +0000", "update_interval": "0s", "backends": []`))
	assert.True(t, strings.HasSuffix(got, "}"))
	assert.NotContains(t, got, "attributes")
}

func TestWriteHostWithChildren(t *testing.T) {
	s := store.New()
	_, err := s.StoreHost("h1", 1, "be1")
	require.NoError(t, err)
	_, err = s.StoreAttribute("h1", "role", sdbdata.String("db"), 2, "be1")
	require.NoError(t, err)
	_, err = s.StoreService("h1", "svc1", 2, "be1")
	require.NoError(t, err)
	_, err = s.StoreMetric("h1", "m1", &store.MetricStoreRef{Type: "localblock", ID: "abc"}, 2, "be1")
	require.NoError(t, err)
	h := s.GetHost("h1")

	var buf strings.Builder
	require.NoError(t, WriteHost(&buf, h, 0, nil))

	got := buf.String()
	assert.Contains(t, got, `"attributes": [{"name": "role"`)
	assert.Contains(t, got, `"value": "db"`)
	assert.Contains(t, got, `"services": [{"name": "svc1"`)
	assert.Contains(t, got, `"metrics": [{"name": "m1"`)
	assert.Contains(t, got, `"timeseries": {"type": "localblock", "id": "abc"}`)
}

func TestWriteStoreFiltersByMatcher(t *testing.T) {
	s := store.New()
	_, _ = s.StoreHost("h1", 1, "be1")
	_, _ = s.StoreHost("h2", 1, "be1")

	m := matcher.Name(store.ObjHost, "h1")
	var buf strings.Builder
	require.NoError(t, WriteStore(&buf, s, SkipAll, m))

	got := buf.String()
	assert.Contains(t, got, `"name": "h1"`)
	assert.NotContains(t, got, `"name": "h2"`)
}

func TestWriteStoreEmpty(t *testing.T) {
	s := store.New()
	var buf strings.Builder
	require.NoError(t, WriteStore(&buf, s, SkipAll, nil))
	assert.Equal(t, "[]", buf.String())
}
