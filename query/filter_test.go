package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysdb/core/sdbdata"
	"sysdb/core/store"
)

func setupTestHost(t *testing.T) *store.Host {
	t.Helper()
	s := store.New()
	now := store.Timestamp(time.Now().UnixMicro())

	_, err := s.StoreHost("web1", now, "test")
	require.NoError(t, err)
	_, err = s.StoreAttribute("web1", "role", sdbdata.String("frontend"), now, "test")
	require.NoError(t, err)
	_, err = s.StoreService("web1", "nginx", now, "test")
	require.NoError(t, err)

	h := s.GetHost("web1")
	require.NotNil(t, h)
	return h
}

func TestParseFilterSimpleComparison(t *testing.T) {
	h := setupTestHost(t)
	m, err := ParseFilter(`name = 'web1'`)
	require.NoError(t, err)
	assert.True(t, m.Match(h))

	m, err = ParseFilter(`name = 'web2'`)
	require.NoError(t, err)
	assert.False(t, m.Match(h))
}

func TestParseFilterAndOr(t *testing.T) {
	h := setupTestHost(t)

	m, err := ParseFilter(`name = 'web1' and attr.role = 'frontend'`)
	require.NoError(t, err)
	assert.True(t, m.Match(h))

	m, err = ParseFilter(`name = 'web2' or attr.role = 'frontend'`)
	require.NoError(t, err)
	assert.True(t, m.Match(h))

	m, err = ParseFilter(`name = 'web2' and attr.role = 'frontend'`)
	require.NoError(t, err)
	assert.False(t, m.Match(h))
}

func TestParseFilterNotAndParens(t *testing.T) {
	h := setupTestHost(t)

	m, err := ParseFilter(`not (name = 'web2')`)
	require.NoError(t, err)
	assert.True(t, m.Match(h))

	m, err = ParseFilter(`not name = 'web1'`)
	require.NoError(t, err)
	assert.False(t, m.Match(h))
}

func TestParseFilterRegex(t *testing.T) {
	h := setupTestHost(t)

	m, err := ParseFilter(`name ~ '^web'`)
	require.NoError(t, err)
	assert.True(t, m.Match(h))

	m, err = ParseFilter(`name !~ '^web'`)
	require.NoError(t, err)
	assert.False(t, m.Match(h))
}

func TestParseFilterAttrMismatch(t *testing.T) {
	h := setupTestHost(t)

	m, err := ParseFilter(`attr.role = 'backend'`)
	require.NoError(t, err)
	assert.False(t, m.Match(h))

	m, err = ParseFilter(`attr.missing = 'anything'`)
	require.NoError(t, err)
	assert.False(t, m.Match(h))
}

func TestParseFilterUnknownField(t *testing.T) {
	_, err := ParseFilter(`bogus = 'x'`)
	assert.Error(t, err)
}

func TestParseFilterUnbalancedParens(t *testing.T) {
	_, err := ParseFilter(`(name = 'web1'`)
	assert.Error(t, err)
}

func TestParseFilterNumericComparison(t *testing.T) {
	h := setupTestHost(t)
	// age compares against a datetime-typed datum; a bare integer literal
	// never matches it, but the parse itself must succeed.
	m, err := ParseFilter(`age > 300`)
	require.NoError(t, err)
	assert.False(t, m.Match(h))
}
