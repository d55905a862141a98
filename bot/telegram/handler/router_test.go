package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"danmakubot/bot/conversation"
	"danmakubot/bot/danmaku"
)

func TestCommandName(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"/search 葬送的芙莉莲", "search"},
		{"/search@testbot 芙莉莲", "search"},
		{"/search@otherbot 芙莉莲", ""},
		{"plain text", ""},
		{"/", ""},
	}
	for _, tc := range cases {
		if got := commandName(tc.text, "testbot"); got != tc.want {
			t.Errorf("commandName(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestUnauthorizedUserMakesNoDanmakuCalls(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for _, text := range []string{"/search 芙莉莲", "/tasks", "/tokens", "/auto"} {
		env.router.Handle(ctx, env.bot, textUpdate(999, 999, text))
	}

	assert.Zero(t, env.danmakuCalls.Load(), "unauthorized user must never reach the API")
	assert.Equal(t, int64(4), env.tgCalls.Load(), "each attempt gets a denial reply")
	for _, text := range env.sentTexts() {
		assert.Equal(t, deniedText, text)
	}
}

func TestStartAndHelpAnswerEveryone(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.router.Handle(ctx, env.bot, textUpdate(999, 999, "/start"))
	env.router.Handle(ctx, env.bot, textUpdate(999, 999, "/help"))

	texts := env.sentTexts()
	require.Len(t, texts, 2)
	for _, text := range texts {
		assert.NotEqual(t, deniedText, text)
		assert.Contains(t, text, "使用方法")
	}
	assert.Zero(t, env.danmakuCalls.Load())
}

func TestAdminCommandsGated(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// 100 is allowed but not admin.
	env.router.Handle(ctx, env.bot, textUpdate(100, 100, "/users"))
	assert.Nil(t, env.deps.Conversations.Get(conversation.Key{ChatID: 100, UserID: 100}),
		"gated command must not open a conversation")

	// 1 is admin.
	env.router.Handle(ctx, env.bot, textUpdate(1, 1, "/users"))
	assert.NotNil(t, env.deps.Conversations.Get(conversation.Key{ChatID: 1, UserID: 1}))
}

func TestNewCommandSupersedesConversation(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"searchId":"s1","results":[{"title":"芙莉莲","provider":"bilibili","year":2023,"episodeCount":28}]}`))
	})
	ctx := context.Background()
	key := conversation.Key{ChatID: 1, UserID: 1}

	env.router.Handle(ctx, env.bot, textUpdate(1, 1, "/search"))
	state := env.deps.Conversations.Get(key)
	require.NotNil(t, state)
	require.Equal(t, "keyword", state.Step)

	env.router.Handle(ctx, env.bot, textUpdate(1, 1, "/url"))
	state = env.deps.Conversations.Get(key)
	require.NotNil(t, state)
	assert.Equal(t, "url", state.Command, "new command replaces the old flow")

	// Keyword input meant for the dead /search flow must not trigger
	// a library search.
	before := env.danmakuCalls.Load()
	env.router.Handle(ctx, env.bot, textUpdate(1, 1, "芙莉莲"))
	assert.Equal(t, before, env.danmakuCalls.Load(),
		"plain text goes to the /url flow, which rejects non-URLs locally")
	assert.Equal(t, "url", env.deps.Conversations.Get(key).Command)
}

func TestCancelEndsConversation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	key := conversation.Key{ChatID: 1, UserID: 1}

	env.router.Handle(ctx, env.bot, textUpdate(1, 1, "/search"))
	require.NotNil(t, env.deps.Conversations.Get(key))

	env.router.Handle(ctx, env.bot, textUpdate(1, 1, "/cancel"))
	assert.Nil(t, env.deps.Conversations.Get(key))
}

func TestSearchFlowStoresResults(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		w.Write([]byte(`{"searchId":"s1","results":[
			{"title":"芙莉莲","provider":"bilibili","year":2023,"episodeCount":28},
			{"title":"芙莉莲 第二季","provider":"gamer","year":2026,"episodeCount":12}
		]}`))
	})
	ctx := context.Background()
	key := conversation.Key{ChatID: 1, UserID: 1}

	env.router.Handle(ctx, env.bot, textUpdate(1, 1, "/search 芙莉莲"))

	state := env.deps.Conversations.Get(key)
	require.NotNil(t, state)
	assert.Equal(t, "pick", state.Step)
	assert.Equal(t, "s1", state.SearchID)
	require.Len(t, state.Results, 2)
	assert.Equal(t, "芙莉莲 第二季", state.Results[1].Title)
}

func TestRemoteTimeoutEndsConversation(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{}`))
	})
	// Shrink the client timeout below the handler sleep.
	env.deps.Danmaku = danmaku.New(env.danmakuURL, "test-key", 50*time.Millisecond, nopLogger{})

	ctx := context.Background()
	key := conversation.Key{ChatID: 1, UserID: 1}

	env.router.Handle(ctx, env.bot, textUpdate(1, 1, "/search 芙莉莲"))

	assert.Nil(t, env.deps.Conversations.Get(key),
		"remote failure is terminal for the flow")
}
