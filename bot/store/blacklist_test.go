package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlacklistCreatesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.txt")
	bl, err := NewBlacklist(path, nil)
	require.NoError(t, err)
	assert.Empty(t, bl.Names())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "#"), "new file starts with the comment header")
}

func TestBlacklistContains(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.txt")
	content := "# 注释\n\n熊出没\nPeppa Pig\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	bl, err := NewBlacklist(path, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"熊出没", "Peppa Pig"}, bl.Names())

	hit, ok := bl.Contains("熊出没·重启未来")
	assert.True(t, ok)
	assert.Equal(t, "熊出没", hit)

	_, ok = bl.Contains("peppa pig goes swimming")
	assert.True(t, ok, "matching is case-insensitive")

	_, ok = bl.Contains("千与千寻")
	assert.False(t, ok)

	_, ok = bl.Contains("  ")
	assert.False(t, ok)
}

func TestBlacklistAdd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.txt")
	bl, err := NewBlacklist(path, nil)
	require.NoError(t, err)

	added, err := bl.Add("小猪佩奇")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = bl.Add("小猪佩奇")
	require.NoError(t, err)
	assert.False(t, added, "duplicates are not written twice")

	_, err = bl.Add("# not a name")
	require.Error(t, err)

	reopened, err := NewBlacklist(path, nil)
	require.NoError(t, err)
	_, ok := reopened.Contains("小猪佩奇 第二季")
	assert.True(t, ok)
}
