package fsstore

import (
	"sort"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/repometa/cache"
)

var _ cache.Store = (*Store)(nil)

func TestGetSetDelete(t *testing.T) {
	s := New(memfs.New())

	_, found, err := s.Get("repometa:github:o/r")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set("repometa:github:o/r", []byte(`{"data":1}`)))

	data, found, err := s.Get("repometa:github:o/r")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"data":1}`, string(data))

	require.NoError(t, s.Set("repometa:github:o/r", []byte(`{"data":2}`)))
	data, _, err = s.Get("repometa:github:o/r")
	require.NoError(t, err)
	assert.Equal(t, `{"data":2}`, string(data))

	require.NoError(t, s.Delete("repometa:github:o/r"))
	_, found, err = s.Get("repometa:github:o/r")
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, s.Delete("never-set"), "deleting a missing key is not an error")
}

func TestKeysAreFlatFiles(t *testing.T) {
	fs := memfs.New()
	s := New(fs)

	require.NoError(t, s.Set("repometa:gitlab:group/sub/project", []byte(`x`)))

	entries, err := fs.ReadDir("/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].IsDir())
	assert.Equal(t, "repometa%3Agitlab%3Agroup%2Fsub%2Fproject.json", entries[0].Name())
}

func TestLongKeysFitFileNameLimit(t *testing.T) {
	fs := memfs.New()
	s := New(fs)

	long := "repometa:gitlab:" + strings.Repeat("deeply-nested-group/", 15) + "project"
	short := "repometa:github:o/r"
	require.NoError(t, s.Set(long, []byte(`{"data":"long"}`)))
	require.NoError(t, s.Set(short, []byte(`{"data":"short"}`)))

	entries, err := fs.ReadDir("/")
	require.NoError(t, err)
	for _, e := range entries {
		assert.LessOrEqual(t, len(e.Name()), 255, e.Name())
	}
	assert.Contains(t, names(t, fs), "repometa%3Agithub%3Ao%2Fr.json", "short keys keep readable names")

	data, found, err := s.Get(long)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"data":"long"}`, string(data))

	keys, err := s.Keys("repometa:gitlab:")
	require.NoError(t, err)
	assert.Equal(t, []string{long}, keys)

	// A different key sharing the readable part must not collide.
	other := long + "-fork"
	require.NoError(t, s.Set(other, []byte(`{"data":"other"}`)))
	data, _, err = s.Get(long)
	require.NoError(t, err)
	assert.Equal(t, `{"data":"long"}`, string(data))

	require.NoError(t, s.Delete(other))
	require.NoError(t, s.Clear("repometa:gitlab:"))
	_, found, err = s.Get(long)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, []string{"repometa%3Agithub%3Ao%2Fr.json"}, names(t, fs), "no entry or key files left behind")
}

func names(t *testing.T, fs billy.Filesystem) []string {
	t.Helper()
	entries, err := fs.ReadDir("/")
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func TestClearByPrefix(t *testing.T) {
	fs := memfs.New()
	s := New(fs)

	for _, k := range []string{"repometa:a", "repometa:b", "other:a"} {
		require.NoError(t, s.Set(k, []byte(k)))
	}
	require.NoError(t, util.WriteFile(fs, "README", []byte("not an entry"), 0o644))

	require.NoError(t, s.Clear("repometa:"))

	keys, err := s.Keys("")
	require.NoError(t, err)
	assert.Equal(t, []string{"other:a"}, keys)

	_, err = fs.Stat("README")
	assert.NoError(t, err, "foreign files must survive Clear")
}

func TestKeys(t *testing.T) {
	s := New(memfs.New())

	keys, err := s.Keys("repometa:")
	require.NoError(t, err)
	assert.Empty(t, keys)

	for _, k := range []string{"repometa:github:a/b", "repometa:gitea:c/d", "x"} {
		require.NoError(t, s.Set(k, []byte(`{}`)))
	}

	keys, err = s.Keys("repometa:")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"repometa:gitea:c/d", "repometa:github:a/b"}, keys)
}

func TestNewOS(t *testing.T) {
	dir := t.TempDir()
	s, err := NewOS(dir + "/nested/cache")
	require.NoError(t, err)

	require.NoError(t, s.Set("k", []byte("v")))
	data, found, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", string(data))
}
