package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifyLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identify.txt")
	content := "# 注释\n中餐厅 S09 => 中餐厅·非洲创业季 S01\n快乐再出发 S3 => 快乐再出发·山海季 S01\nbroken line without separator\n坏规则 => 没有季号\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	id, err := NewIdentify(path, nil)
	require.NoError(t, err)

	rule, ok := id.Lookup("中餐厅", 9)
	require.True(t, ok, "padded rule matches unpadded query")
	assert.Equal(t, "中餐厅·非洲创业季", rule.Name)
	assert.Equal(t, 1, rule.Season)

	rule, ok = id.Lookup("快乐再出发", 3)
	require.True(t, ok, "unpadded rule matches")
	assert.Equal(t, "快乐再出发·山海季", rule.Name)

	_, ok = id.Lookup("中餐厅", 8)
	assert.False(t, ok)

	_, ok = id.Lookup("坏规则", 1)
	assert.False(t, ok, "malformed right side is skipped")
}

func TestIdentifyAddAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identify.txt")
	id, err := NewIdentify(path, nil)
	require.NoError(t, err)
	assert.Empty(t, id.Rules())

	require.NoError(t, id.Add("哈尔滨一九四四", 2, "哈尔滨一九四四·风雪再起", 1))
	require.Error(t, id.Add("哈尔滨一九四四", 2, "别名", 1), "duplicate source pattern is rejected")
	require.Error(t, id.Add("  ", 1, "x", 1))

	rule, ok := id.Lookup("哈尔滨一九四四", 2)
	require.True(t, ok)
	assert.Equal(t, "哈尔滨一九四四·风雪再起", rule.Name)
	assert.Equal(t, 1, rule.Season)

	reopened, err := NewIdentify(path, nil)
	require.NoError(t, err)
	_, ok = reopened.Lookup("哈尔滨一九四四", 2)
	assert.True(t, ok, "rule survives restart")
}

func TestIdentifyCreatesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "identify.txt")
	_, err := NewIdentify(path, nil)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "# 影视名称自定义识别词文件")
}
