package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"danmakubot/bot"
)

func TestUsersRolesAndSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.json")
	users, err := NewUsers(path, []int64{100, 200}, []int64{1}, nil)
	require.NoError(t, err)

	assert.Equal(t, bot.RoleAdmin, users.Role(1))
	assert.Equal(t, bot.RoleAllowed, users.Role(100))
	assert.Equal(t, bot.RoleUnauthorized, users.Role(999))

	assert.True(t, users.IsAllowed(1), "admins are implicitly allowed")
	assert.False(t, users.IsAdmin(100))
}

func TestUsersAddPersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.json")

	users, err := NewUsers(path, []int64{100}, []int64{1}, nil)
	require.NoError(t, err)

	added, err := users.Add(300)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = users.Add(300)
	require.NoError(t, err)
	assert.False(t, added, "re-adding is a no-op")

	reopened, err := NewUsers(path, nil, []int64{1}, nil)
	require.NoError(t, err)
	assert.True(t, reopened.IsAllowed(300))
	assert.True(t, reopened.IsAllowed(100), "seed from first run survives on disk")
}

func TestUsersRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.json")
	users, err := NewUsers(path, []int64{100}, []int64{1}, nil)
	require.NoError(t, err)

	_, err = users.Remove(1)
	require.Error(t, err, "admins cannot be removed")

	removed, err := users.Remove(100)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = users.Remove(100)
	require.NoError(t, err)
	assert.False(t, removed, "removing an unknown user is a no-op")

	reopened, err := NewUsers(path, nil, []int64{1}, nil)
	require.NoError(t, err)
	assert.False(t, reopened.IsAllowed(100))
}

func TestUsersFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.json")
	users, err := NewUsers(path, []int64{200, 100}, []int64{1}, nil)
	require.NoError(t, err)

	_, err = users.Add(300)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		AllowedUserIDs []int64 `json:"allowed_user_ids"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, []int64{100, 200, 300}, doc.AllowedUserIDs)
}

func TestUsersListings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.json")
	users, err := NewUsers(path, []int64{300, 100}, []int64{2, 1}, nil)
	require.NoError(t, err)

	assert.Equal(t, []int64{100, 300}, users.Allowed())
	assert.Equal(t, []int64{1, 2}, users.Admins())
}
