package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginSupersedes(t *testing.T) {
	m := NewManager(time.Minute, nil)
	defer m.Close()

	key := Key{ChatID: -100, UserID: 42}

	first := m.Begin(key, "search")
	first.Data["keyword"] = "海贼王"

	second := m.Begin(key, "auto")
	got := m.Get(key)
	require.Same(t, second, got)
	assert.Equal(t, "auto", got.Command)
	assert.Empty(t, got.Data, "superseded state must not leak")
	assert.Equal(t, 1, m.Active())
}

func TestConversationsAreScopedPerUser(t *testing.T) {
	m := NewManager(time.Minute, nil)
	defer m.Close()

	a := Key{ChatID: -100, UserID: 1}
	b := Key{ChatID: -100, UserID: 2}

	m.Begin(a, "search")
	m.Begin(b, "url")

	require.NotNil(t, m.Get(a))
	require.NotNil(t, m.Get(b))
	assert.Equal(t, "search", m.Get(a).Command)
	assert.Equal(t, "url", m.Get(b).Command)
}

func TestEnd(t *testing.T) {
	m := NewManager(time.Minute, nil)
	defer m.Close()

	key := Key{ChatID: 7, UserID: 7}
	assert.False(t, m.End(key), "ending without a conversation reports false")

	m.Begin(key, "tokens")
	assert.True(t, m.End(key))
	assert.Nil(t, m.Get(key))
}

func TestGetExpiresIdleState(t *testing.T) {
	m := NewManager(20*time.Millisecond, nil)
	defer m.Close()

	key := Key{ChatID: 1, UserID: 1}
	m.Begin(key, "search")
	require.NotNil(t, m.Get(key))

	time.Sleep(40 * time.Millisecond)
	assert.Nil(t, m.Get(key), "idle state past TTL is dropped on access")
}

func TestTouchKeepsStateAlive(t *testing.T) {
	m := NewManager(50*time.Millisecond, nil)
	defer m.Close()

	key := Key{ChatID: 1, UserID: 1}
	m.Begin(key, "search")

	for i := 0; i < 3; i++ {
		time.Sleep(30 * time.Millisecond)
		m.Touch(key)
	}
	assert.NotNil(t, m.Get(key))
}
