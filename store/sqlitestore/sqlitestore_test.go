package sqlitestore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/repometa/cache"
)

var _ cache.Store = (*Store)(nil)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetSetDelete(t *testing.T) {
	s := openMemory(t)

	_, found, err := s.Get("k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set("k", []byte(`{"data":1}`)))
	require.NoError(t, s.Set("k", []byte(`{"data":2}`)))

	data, found, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"data":2}`, string(data))

	require.NoError(t, s.Delete("k"))
	_, found, err = s.Get("k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClearByPrefix(t *testing.T) {
	s := openMemory(t)
	for _, k := range []string{"repometa:github:a/b", "repometa:gitlab:g/s/p", "repometa_other", "other:x"} {
		require.NoError(t, s.Set(k, []byte(`{}`)))
	}

	require.NoError(t, s.Clear("repometa:"))

	keys, err := s.Keys("")
	require.NoError(t, err)
	assert.Equal(t, []string{"other:x", "repometa_other"}, keys)
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("repometa:gitea:o/r", []byte(`{"data":{}}`)))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	data, found, err := s.Get("repometa:gitea:o/r")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"data":{}}`, string(data))
}
