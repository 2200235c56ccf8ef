package cursorstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cursor.db")
	s, err := Open(Options{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetReturnsZeroWhenUnset(t *testing.T) {
	s := openTestStore(t)
	assert.Equal(t, int64(0), s.Get())
}

func TestSetThenGetRoundTrips(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Set(12345))
	assert.Equal(t, int64(12345), s.Get())
}

func TestSetSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.db")
	s, err := Open(Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Set(99))
	require.NoError(t, s.Close())

	s2, err := Open(Options{Path: path})
	require.NoError(t, err)
	defer s2.Close()
	assert.Equal(t, int64(99), s2.Get())
}
