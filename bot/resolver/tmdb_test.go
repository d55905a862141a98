package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"danmakubot/bot"
)

func TestTMDBSearchFiltersPersons(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search/multi", r.URL.Path)
		require.Equal(t, "key", r.URL.Query().Get("api_key"))
		w.Write([]byte(`{"results":[
			{"id":1,"media_type":"movie","title":"电影甲","original_title":"Movie A","release_date":"2019-07-19","popularity":51.2},
			{"id":2,"media_type":"person","name":"某演员","popularity":99.0},
			{"id":3,"media_type":"tv","name":"剧集乙","original_name":"Show B","first_air_date":"2021-01-08","popularity":12.5}
		]}`))
	}))
	defer server.Close()

	tmdb := NewTMDB("key", server.URL, nil)
	candidates, err := tmdb.Search(context.Background(), "甲")
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, bot.MediaTypeMovie, candidates[0].MediaType)
	assert.Equal(t, 2019, candidates[0].Year)
	assert.Equal(t, bot.MediaTypeTVSeries, candidates[1].MediaType)
	assert.Equal(t, "剧集乙", candidates[1].Title)
}

func TestTMDBResolveTV(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tv/292575", r.URL.Path)
		w.Write([]byte(`{"id":292575,"name":"缉毒行动","original_name":"The Narcotic Operation",
			"first_air_date":"2024-03-02","popularity":8.7,
			"seasons":[
				{"season_number":0,"name":"特别篇","episode_count":2},
				{"season_number":1,"name":"第 1 季","episode_count":24}
			]}`))
	}))
	defer server.Close()

	tmdb := NewTMDB("key", server.URL, nil)
	candidate, err := tmdb.Resolve(context.Background(), Match{ID: "292575", MediaType: bot.MediaTypeTVSeries})
	require.NoError(t, err)
	assert.Equal(t, "缉毒行动", candidate.Title)
	assert.Equal(t, 2024, candidate.Year)
	assert.Equal(t, bot.MediaTypeTVSeries, candidate.MediaType)

	seasons, err := tmdb.Seasons(context.Background(), "292575")
	require.NoError(t, err)
	require.Len(t, seasons, 1, "specials must be dropped")
	assert.Equal(t, 1, seasons[0].Number)
	assert.Equal(t, 24, seasons[0].EpisodeCount)
}

func TestTMDBNotConfigured(t *testing.T) {
	tmdb := NewTMDB("", "https://api.themoviedb.org/3", nil)
	_, err := tmdb.Search(context.Background(), "任意")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
