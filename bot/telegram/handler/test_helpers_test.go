package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/require"

	botpkg "danmakubot/bot"
	"danmakubot/bot/conversation"
	"danmakubot/bot/danmaku"
	"danmakubot/bot/resolver"
	"danmakubot/bot/store"
	"danmakubot/bot/telegram"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...any)    {}
func (nopLogger) Info(msg string, args ...any)     {}
func (nopLogger) Warn(msg string, args ...any)     {}
func (nopLogger) Error(msg string, args ...any)    {}
func (l nopLogger) With(args ...any) botpkg.Logger { return l }

type testEnv struct {
	router       *Router
	bot          *telego.Bot
	deps         *Deps
	danmakuURL   string
	danmakuCalls *atomic.Int64
	tgCalls      *atomic.Int64

	mu      sync.Mutex
	tgTexts []string
}

// sentTexts returns the text of every message the router pushed to the
// fake Bot API so far.
func (e *testEnv) sentTexts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.tgTexts...)
}

// newTestEnv wires a router against fake Telegram and Danmaku servers
// so tests can count outbound calls.
func newTestEnv(t *testing.T, danmakuHandler http.HandlerFunc) *testEnv {
	t.Helper()

	var tgCalls, dmCalls atomic.Int64
	env := &testEnv{}

	tgServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tgCalls.Add(1)
		if strings.HasSuffix(r.URL.Path, "sendMessage") || strings.HasSuffix(r.URL.Path, "editMessageText") {
			var params struct {
				Text string `json:"text"`
			}
			raw, _ := io.ReadAll(r.Body)
			if json.Unmarshal(raw, &params) == nil && params.Text != "" {
				env.mu.Lock()
				env.tgTexts = append(env.tgTexts, params.Text)
				env.mu.Unlock()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "answerCallbackQuery") || strings.HasSuffix(r.URL.Path, "deleteMessage") {
			w.Write([]byte(`{"ok":true,"result":true}`))
			return
		}
		w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":1,"chat":{"id":1,"type":"private"}}}`))
	}))
	t.Cleanup(tgServer.Close)

	if danmakuHandler == nil {
		danmakuHandler = func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}
	}
	dmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dmCalls.Add(1)
		danmakuHandler(w, r)
	}))
	t.Cleanup(dmServer.Close)

	// Format-valid throwaway token; the fake server never checks it.
	tgBot, err := telego.NewBot("123456:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		telego.WithAPIServer(tgServer.URL),
		telego.WithDiscardLogger(),
	)
	require.NoError(t, err)

	dir := t.TempDir()
	users, err := store.NewUsers(filepath.Join(dir, "user.json"), []int64{100}, []int64{1}, nopLogger{})
	require.NoError(t, err)
	blacklist, err := store.NewBlacklist(filepath.Join(dir, "blacklist.txt"), nopLogger{})
	require.NoError(t, err)
	identify, err := store.NewIdentify(filepath.Join(dir, "identify.txt"), nopLogger{})
	require.NoError(t, err)

	client := danmaku.New(dmServer.URL, "test-key", 5*time.Second, nopLogger{})
	manager := conversation.NewManager(time.Minute, nopLogger{})
	t.Cleanup(manager.Close)

	deps := &Deps{
		Danmaku:       client,
		Library:       danmaku.NewLibraryCache(client, time.Minute, nopLogger{}),
		Resolvers:     resolver.NewChain(nopLogger{}),
		Conversations: manager,
		Users:         users,
		Blacklist:     blacklist,
		Identify:      identify,
		Limiter:       telegram.NewRateLimiter(1000, 100),
		Logger:        nopLogger{},
	}

	env.router = NewRouter(deps, "testbot")
	env.bot = tgBot
	env.deps = deps
	env.danmakuURL = dmServer.URL
	env.danmakuCalls = &dmCalls
	env.tgCalls = &tgCalls
	return env
}

func callbackUpdate(chatID, userID int64, data string) telego.Update {
	return telego.Update{
		CallbackQuery: &telego.CallbackQuery{
			ID:   "cb-1",
			From: telego.User{ID: userID},
			Message: &telego.Message{
				MessageID: 11,
				Chat:      telego.Chat{ID: chatID, Type: "private"},
			},
			Data: data,
		},
	}
}

func textUpdate(chatID, userID int64, text string) telego.Update {
	return telego.Update{
		Message: &telego.Message{
			MessageID: 10,
			Text:      text,
			Chat:      telego.Chat{ID: chatID, Type: "private"},
			From:      &telego.User{ID: userID},
		},
	}
}
