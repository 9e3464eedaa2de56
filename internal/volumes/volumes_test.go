package volumes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForIsGetOrInsert(t *testing.T) {
	base := t.TempDir()
	a, err := New(base)
	require.NoError(t, err)

	first, err := a.For("repo")
	require.NoError(t, err)
	again, err := a.For("repo")
	require.NoError(t, err)
	other, err := a.For("artifact")
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.NotEqual(t, first, other)
	assert.Equal(t, base, filepath.Dir(first))
	assert.True(t, strings.HasPrefix(filepath.Base(first), "repo-"), "directory is named after the artifact")
	assert.DirExists(t, first)
	assert.Equal(t, []string{"artifact", "repo"}, a.Names())
}

func TestLookupDoesNotAllocate(t *testing.T) {
	a, err := New(t.TempDir())
	require.NoError(t, err)

	_, ok := a.Lookup("repo")
	assert.False(t, ok)
	assert.Empty(t, a.Names())

	dir, err := a.For("repo")
	require.NoError(t, err)
	found, ok := a.Lookup("repo")
	assert.True(t, ok)
	assert.Equal(t, dir, found)
}

func TestCleanup(t *testing.T) {
	a, err := New(t.TempDir())
	require.NoError(t, err)

	dir, err := a.For("repo")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file"), []byte("x"), 0o644))

	require.NoError(t, a.Cleanup())
	assert.NoDirExists(t, dir)
	assert.Empty(t, a.Names())
}

func TestNewMakesBaseAbsolute(t *testing.T) {
	a, err := New("relative")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(a.base))
}
