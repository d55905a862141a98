package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"danmakubot/bot"
)

// Users holds the authorization state of the bot. Admin IDs come from
// the environment and are immutable; allowed users are the union of
// the environment seed and the persisted user.json document.
type Users struct {
	mu      sync.RWMutex
	path    string
	admins  map[int64]struct{}
	allowed map[int64]struct{}
	logger  bot.Logger
}

type userDocument struct {
	AllowedUserIDs []int64 `json:"allowed_user_ids"`
}

// NewUsers loads user.json (creating it on first run) and merges the
// environment-provided IDs.
func NewUsers(path string, seedAllowed, admins []int64, logger bot.Logger) (*Users, error) {
	u := &Users{
		path:    path,
		admins:  make(map[int64]struct{}, len(admins)),
		allowed: make(map[int64]struct{}, len(seedAllowed)),
		logger:  logger,
	}
	for _, id := range admins {
		u.admins[id] = struct{}{}
	}
	for _, id := range seedAllowed {
		u.allowed[id] = struct{}{}
	}

	if err := u.load(); err != nil {
		return nil, err
	}
	if err := u.persistLocked(); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *Users) load() error {
	raw, err := os.ReadFile(u.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read user config: %w", err)
	}

	var doc userDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse user config %s: %w", u.path, err)
	}
	for _, id := range doc.AllowedUserIDs {
		u.allowed[id] = struct{}{}
	}
	return nil
}

// Role classifies a user. Admins are implicitly allowed.
func (u *Users) Role(userID int64) bot.Role {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if _, ok := u.admins[userID]; ok {
		return bot.RoleAdmin
	}
	if _, ok := u.allowed[userID]; ok {
		return bot.RoleAllowed
	}
	return bot.RoleUnauthorized
}

// IsAllowed reports whether the user may use the bot at all.
func (u *Users) IsAllowed(userID int64) bool {
	return u.Role(userID) >= bot.RoleAllowed
}

// IsAdmin reports whether the user may manage the bot.
func (u *Users) IsAdmin(userID int64) bool {
	return u.Role(userID) == bot.RoleAdmin
}

// Add grants a user access and persists the change. Adding an already
// allowed user is a no-op success.
func (u *Users) Add(userID int64) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.allowed[userID]; ok {
		return false, nil
	}
	if _, ok := u.admins[userID]; ok {
		return false, nil
	}
	u.allowed[userID] = struct{}{}
	if err := u.persistLocked(); err != nil {
		delete(u.allowed, userID)
		return false, err
	}
	return true, nil
}

// Remove revokes a user's access. Admins cannot be removed.
func (u *Users) Remove(userID int64) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.admins[userID]; ok {
		return false, fmt.Errorf("store: admin %d cannot be removed", userID)
	}
	if _, ok := u.allowed[userID]; !ok {
		return false, nil
	}
	delete(u.allowed, userID)
	if err := u.persistLocked(); err != nil {
		u.allowed[userID] = struct{}{}
		return false, err
	}
	return true, nil
}

// Allowed lists non-admin allowed user IDs, sorted.
func (u *Users) Allowed() []int64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	ids := make([]int64, 0, len(u.allowed))
	for id := range u.allowed {
		if _, isAdmin := u.admins[id]; isAdmin {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Admins lists admin user IDs, sorted.
func (u *Users) Admins() []int64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	ids := make([]int64, 0, len(u.admins))
	for id := range u.admins {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// persistLocked writes user.json atomically: temp file in the same
// directory, then rename over the target.
func (u *Users) persistLocked() error {
	dir := filepath.Dir(u.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	ids := make([]int64, 0, len(u.allowed))
	for id := range u.allowed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	raw, err := json.MarshalIndent(userDocument{AllowedUserIDs: ids}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".user-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, u.path)
}
