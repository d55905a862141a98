package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	botpkg "danmakubot/bot"
	"danmakubot/bot/danmaku"
	"danmakubot/bot/store"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...any)    {}
func (nopLogger) Info(msg string, args ...any)     {}
func (nopLogger) Warn(msg string, args ...any)     {}
func (nopLogger) Error(msg string, args ...any)    {}
func (l nopLogger) With(args ...any) botpkg.Logger { return l }

// fakeAPI stands in for the Danmaku control API and records every call.
type fakeAPI struct {
	mu     sync.Mutex
	calls  []string
	bodies map[string][]byte
	routes map[string]string
	server *httptest.Server
}

func newFakeAPI(t *testing.T, routes map[string]string) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		bodies: make(map[string][]byte),
		routes: routes,
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.calls = append(f.calls, key)
		f.bodies[key] = body
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if resp, ok := f.routes[key]; ok {
			w.Write([]byte(resp))
			return
		}
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == key {
			n++
		}
	}
	return n
}

func (f *fakeAPI) countPrefix(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeAPI) body(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[key]
}

func newTestProcessor(t *testing.T, api *fakeAPI) *EmbyProcessor {
	t.Helper()
	dir := t.TempDir()
	blacklist, err := store.NewBlacklist(filepath.Join(dir, "blacklist.txt"), nopLogger{})
	require.NoError(t, err)
	identify, err := store.NewIdentify(filepath.Join(dir, "identify.txt"), nopLogger{})
	require.NoError(t, err)

	client := danmaku.New(api.server.URL, "test-key", 5*time.Second, nopLogger{})
	library := danmaku.NewLibraryCache(client, time.Minute, nopLogger{})
	return NewEmbyProcessor(client, library, identify, blacklist, nil, nil, nil, 0, nopLogger{})
}

func postEvent(t *testing.T, handler http.Handler, apiKey, body string) *httptest.ResponseRecorder {
	t.Helper()
	url := "/api/webhook/emby"
	if apiKey != "" {
		url += "?api_key=" + apiKey
	}
	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookRejectsBadAPIKey(t *testing.T) {
	api := newFakeAPI(t, nil)
	server := NewServer(0, "secret", newTestProcessor(t, api), nopLogger{})

	event := `{"Event":"playback.start","Item":{"Name":"Inception","Type":"Movie"}}`

	rec := postEvent(t, server.Handler(), "wrong", event)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postEvent(t, server.Handler(), "", event)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Zero(t, api.countPrefix(""), "rejected requests must not reach the API")
}

func TestWebhookRejectsMalformedJSON(t *testing.T) {
	api := newFakeAPI(t, nil)
	server := NewServer(0, "secret", newTestProcessor(t, api), nopLogger{})

	rec := postEvent(t, server.Handler(), "secret", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	api := newFakeAPI(t, nil)
	server := NewServer(0, "secret", newTestProcessor(t, api), nopLogger{})

	rec := postEvent(t, server.Handler(), "secret",
		`{"Event":"playback.stop","Item":{"Name":"Inception","Type":"Movie"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success   bool `json:"success"`
		Processed bool `json:"processed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.False(t, resp.Processed)
	assert.Zero(t, api.countPrefix(""))
}

func TestWebhookHealth(t *testing.T) {
	api := newFakeAPI(t, nil)
	server := NewServer(0, "secret", newTestProcessor(t, api), nopLogger{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookAcceptsPlaybackStart(t *testing.T) {
	api := newFakeAPI(t, map[string]string{
		"GET /library": `[]`,
	})
	server := NewServer(0, "secret", newTestProcessor(t, api), nopLogger{})

	rec := postEvent(t, server.Handler(), "secret",
		`{"Event":"playback.start","Item":{"Name":"Inception","Type":"Movie","ProviderIds":{"Tmdb":"27205"}}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Processed bool `json:"processed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Processed)

	// Enqueue is asynchronous; the import shows up shortly after.
	require.Eventually(t, func() bool {
		return api.count("POST /import/auto") == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestProcessMovieRefreshesExistingSource(t *testing.T) {
	api := newFakeAPI(t, map[string]string{
		"GET /library":                 `[{"animeId":3,"title":"inception","type":"movie"}]`,
		"GET /library/anime/3/sources": `[{"sourceId":9,"providerName":"bilibili"}]`,
	})
	p := newTestProcessor(t, api)

	p.Process(context.Background(), EmbyEvent{
		Event: "playback.start",
		Item: EmbyItem{
			Name:        "Inception",
			Type:        "Movie",
			ProviderIds: map[string]string{"Tmdb": "27205"},
		},
	})

	assert.Equal(t, 1, api.count("POST /refresh"))
	assert.Zero(t, api.count("POST /import/auto"), "known movie is refreshed, not re-imported")

	var payload struct {
		SourceID int64 `json:"sourceId"`
	}
	require.NoError(t, json.Unmarshal(api.body("POST /refresh"), &payload))
	assert.Equal(t, int64(9), payload.SourceID)
}

func TestProcessMovieImportsWhenMissing(t *testing.T) {
	api := newFakeAPI(t, map[string]string{
		"GET /library": `[{"animeId":3,"title":"Some Other Movie","type":"movie"}]`,
	})
	p := newTestProcessor(t, api)

	p.Process(context.Background(), EmbyEvent{
		Event: "playback.start",
		Item: EmbyItem{
			Name:        "Inception",
			Type:        "Movie",
			ProviderIds: map[string]string{"TheMovieDb": "27205"},
		},
	})

	require.Equal(t, 1, api.count("POST /import/auto"))

	var payload danmaku.ImportAutoRequest
	require.NoError(t, json.Unmarshal(api.body("POST /import/auto"), &payload))
	assert.Equal(t, "tmdb", payload.SearchType)
	assert.Equal(t, "27205", payload.SearchTerm)
	assert.Equal(t, botpkg.MediaTypeMovie, payload.MediaType)
}

func TestProcessEpisodeRefreshesCurrentAndNext(t *testing.T) {
	api := newFakeAPI(t, map[string]string{
		"GET /library":                    `[{"animeId":7,"title":"葬送的芙莉莲","type":"tv_series"}]`,
		"GET /library/anime/7/sources":    `[{"sourceId":42,"providerName":"gamer"}]`,
		"GET /library/source/42/episodes": `[{"episodeId":501,"episodeIndex":5,"title":"第5话"}]`,
	})
	p := newTestProcessor(t, api)

	p.Process(context.Background(), EmbyEvent{
		Event: "playback.start",
		Item: EmbyItem{
			Name:              "第5话",
			Type:              "Episode",
			SeriesName:        "葬送的芙莉莲",
			ParentIndexNumber: 1,
			IndexNumber:       5,
			ProviderIds:       map[string]string{"Tmdb": "209867"},
		},
	})

	// Episode 5 exists in the source and gets refreshed; episode 6 does
	// not exist yet and falls back to a single-episode import.
	assert.Equal(t, 1, api.count("POST /library/episode/501/refresh"))
	require.Equal(t, 1, api.count("POST /import/auto"))

	var payload danmaku.ImportAutoRequest
	require.NoError(t, json.Unmarshal(api.body("POST /import/auto"), &payload))
	assert.Equal(t, "tmdb", payload.SearchType)
	assert.Equal(t, botpkg.MediaTypeTVSeries, payload.MediaType)
	assert.Equal(t, 1, payload.Season)
	assert.Equal(t, 6, payload.Episode)
	assert.Equal(t, "auto", payload.ImportMethod)
}

func TestProcessSkipsBlacklistedTitle(t *testing.T) {
	api := newFakeAPI(t, nil)
	p := newTestProcessor(t, api)
	added, err := p.blacklist.Add("葬送的芙莉莲")
	require.NoError(t, err)
	require.True(t, added)

	p.Process(context.Background(), EmbyEvent{
		Event: "playback.start",
		Item: EmbyItem{
			Name:        "第5话",
			Type:        "Episode",
			SeriesName:  "葬送的芙莉莲",
			IndexNumber: 5,
			ProviderIds: map[string]string{"Tmdb": "209867"},
		},
	})

	assert.Zero(t, api.count("GET /library"))
	assert.Zero(t, api.count("POST /import/auto"))
	assert.Zero(t, api.countPrefix("POST /library"))
}

func TestProcessAppliesIdentifyConversion(t *testing.T) {
	api := newFakeAPI(t, map[string]string{
		"GET /library":                   `[{"animeId":5,"title":"新名字","type":"tv_series"}]`,
		"GET /library/anime/5/sources":   `[{"sourceId":8,"providerName":"bilibili"}]`,
		"GET /library/source/8/episodes": `[{"episodeId":801,"episodeIndex":2},{"episodeId":802,"episodeIndex":3}]`,
	})
	p := newTestProcessor(t, api)
	require.NoError(t, p.identify.Add("旧名字", 9, "新名字", 1))

	p.Process(context.Background(), EmbyEvent{
		Event: "playback.start",
		Item: EmbyItem{
			Name:              "第2话",
			Type:              "Episode",
			SeriesName:        "旧名字",
			ParentIndexNumber: 9,
			IndexNumber:       2,
		},
	})

	// The rewritten name matches the library record, so both the watched
	// and the following episode are refreshed in place.
	assert.Equal(t, 1, api.count("POST /library/episode/801/refresh"))
	assert.Equal(t, 1, api.count("POST /library/episode/802/refresh"))
	assert.Zero(t, api.count("POST /import/auto"))
}

func TestMatchSeriesPrefersSeasonMarker(t *testing.T) {
	items := []danmaku.LibraryItem{
		{AnimeID: 1, Title: "进击的巨人"},
		{AnimeID: 2, Title: "进击的巨人 第3季"},
	}

	match := matchSeries(items, "进击的巨人", 3)
	require.NotNil(t, match)
	assert.Equal(t, int64(2), match.AnimeID)

	// Without a season marker hit, the exact name wins.
	match = matchSeries(items, "进击的巨人", 1)
	require.NotNil(t, match)
	assert.Equal(t, int64(1), match.AnimeID)

	assert.Nil(t, matchSeries(items, "别的番", 1))
}
