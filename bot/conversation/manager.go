package conversation

import (
	"sync"
	"time"

	"danmakubot/bot"
	"danmakubot/bot/danmaku"
	"danmakubot/bot/resolver"
)

const (
	defaultTTL    = 10 * time.Minute
	sweepInterval = time.Minute
)

// Key identifies one in-flight dialogue. Conversations are scoped per
// user per chat so two admins in a group do not trample each other.
type Key struct {
	ChatID int64
	UserID int64
}

// State carries everything a multi-step command collected so far.
type State struct {
	Command        string
	Step           string
	Data           map[string]string
	MediaType      bot.MediaType
	Candidates     []resolver.Candidate
	SearchID       string
	Results        []danmaku.SearchItem
	SearchEpisodes []danmaku.SearchEpisode
	Matches        []danmaku.LibraryItem
	Sources        []danmaku.Source
	Episodes       []danmaku.Episode
	UpdatedAt      time.Time
}

// Manager owns all conversation state, expiring entries that have gone
// quiet.
type Manager struct {
	mu     sync.Mutex
	states map[Key]*State
	ttl    time.Duration
	logger bot.Logger
	stop   chan struct{}
	once   sync.Once
}

// NewManager starts a manager with the given idle TTL; ttl <= 0 uses
// the default of ten minutes.
func NewManager(ttl time.Duration, logger bot.Logger) *Manager {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	m := &Manager{
		states: make(map[Key]*State),
		ttl:    ttl,
		logger: logger,
		stop:   make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Begin starts a conversation, superseding any previous one under the
// same key. It returns the fresh state.
func (m *Manager) Begin(key Key, command string) *State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.states[key]; ok && m.logger != nil {
		m.logger.Debug("conversation: superseding",
			"chat_id", key.ChatID, "user_id", key.UserID,
			"old_command", old.Command, "new_command", command)
	}

	state := &State{
		Command:   command,
		Data:      make(map[string]string),
		UpdatedAt: time.Now(),
	}
	m.states[key] = state
	return state
}

// Get returns the live state for the key, or nil when no conversation
// is active (or it has expired).
func (m *Manager) Get(key Key) *State {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[key]
	if !ok {
		return nil
	}
	if time.Since(state.UpdatedAt) > m.ttl {
		delete(m.states, key)
		return nil
	}
	return state
}

// Touch refreshes the idle timer after the state was mutated.
func (m *Manager) Touch(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.states[key]; ok {
		state.UpdatedAt = time.Now()
	}
}

// End discards the conversation. Ending a key with no active
// conversation reports false.
func (m *Manager) End(key Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[key]; !ok {
		return false
	}
	delete(m.states, key)
	return true
}

// Active returns the number of live conversations.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

// Close stops the background sweeper.
func (m *Manager) Close() {
	m.once.Do(func() { close(m.stop) })
}

func (m *Manager) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			now := time.Now()
			for key, state := range m.states {
				if now.Sub(state.UpdatedAt) > m.ttl {
					delete(m.states, key)
					if m.logger != nil {
						m.logger.Debug("conversation: expired",
							"chat_id", key.ChatID, "user_id", key.UserID,
							"command", state.Command)
					}
				}
			}
			m.mu.Unlock()
		}
	}
}
