package resolver

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"danmakubot/bot"
)

var tmdbURLPattern = regexp.MustCompile(`^https?://(?:www\.)?themoviedb\.org/(tv|movie)/(\d+)(?:-[^/?]*)?(?:\?.*)?$`)

// TMDB resolves themoviedb.org URLs and is the free-text search
// fallback of the chain.
type TMDB struct {
	apiKey   string
	baseURL  string
	language string
	client   *retryablehttp.Client
	logger   bot.Logger
}

// NewTMDB creates a TMDB resolver. baseURL already carries the /3
// version path (see config.TMDBAPIBase).
func NewTMDB(apiKey, baseURL string, logger bot.Logger) *TMDB {
	return &TMDB{
		apiKey:   apiKey,
		baseURL:  baseURL,
		language: "zh-CN",
		client:   newHTTPClient(10 * time.Second),
		logger:   logger,
	}
}

func (t *TMDB) Name() string { return "tmdb" }

// Configured reports whether an API key is present.
func (t *TMDB) Configured() bool { return t.apiKey != "" }

func (t *TMDB) MatchInput(text string) (Match, bool) {
	groups := tmdbURLPattern.FindStringSubmatch(trimInput(text))
	if groups == nil {
		return Match{}, false
	}
	mediaType := bot.MediaTypeMovie
	if groups[1] == "tv" {
		mediaType = bot.MediaTypeTVSeries
	}
	return Match{ID: groups[2], MediaType: mediaType}, true
}

type tmdbDetails struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	OrigTitle    string  `json:"original_title"`
	OrigName     string  `json:"original_name"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	Popularity   float64 `json:"popularity"`
	Seasons      []struct {
		SeasonNumber int    `json:"season_number"`
		Name         string `json:"name"`
		EpisodeCount int    `json:"episode_count"`
	} `json:"seasons"`
}

func (t *TMDB) Resolve(ctx context.Context, m Match) (*Candidate, error) {
	if !t.Configured() {
		return nil, &ProviderError{Provider: "tmdb", ID: m.ID, Err: ErrNotConfigured}
	}

	apiType := "movie"
	if m.MediaType == bot.MediaTypeTVSeries {
		apiType = "tv"
	}
	endpoint := fmt.Sprintf("%s/%s/%s?api_key=%s&language=%s",
		t.baseURL, apiType, url.PathEscape(m.ID), url.QueryEscape(t.apiKey), t.language)

	var details tmdbDetails
	status, err := getJSON(ctx, t.client, endpoint, nil, &details)
	if err != nil {
		if status == 404 {
			return nil, notFound("tmdb", m.ID)
		}
		return nil, unavailable("tmdb", m.ID, err)
	}

	title := details.Title
	original := details.OrigTitle
	date := details.ReleaseDate
	if m.MediaType == bot.MediaTypeTVSeries {
		title = details.Name
		original = details.OrigName
		date = details.FirstAirDate
	}

	return &Candidate{
		Provider:      "tmdb",
		ID:            m.ID,
		Title:         title,
		OriginalTitle: original,
		MediaType:     m.MediaType,
		Year:          firstYear(date),
		Popularity:    details.Popularity,
	}, nil
}

type tmdbMultiResult struct {
	Results []struct {
		ID           int64   `json:"id"`
		MediaType    string  `json:"media_type"`
		Title        string  `json:"title"`
		Name         string  `json:"name"`
		OrigTitle    string  `json:"original_title"`
		OrigName     string  `json:"original_name"`
		ReleaseDate  string  `json:"release_date"`
		FirstAirDate string  `json:"first_air_date"`
		Popularity   float64 `json:"popularity"`
	} `json:"results"`
}

// Search runs /search/multi and keeps only movie and tv results.
func (t *TMDB) Search(ctx context.Context, query string) ([]Candidate, error) {
	if !t.Configured() {
		return nil, &ProviderError{Provider: "tmdb", Err: ErrNotConfigured}
	}

	endpoint := fmt.Sprintf("%s/search/multi?api_key=%s&language=%s&page=1&query=%s",
		t.baseURL, url.QueryEscape(t.apiKey), t.language, url.QueryEscape(query))

	var result tmdbMultiResult
	if _, err := getJSON(ctx, t.client, endpoint, nil, &result); err != nil {
		return nil, unavailable("tmdb", query, err)
	}

	candidates := make([]Candidate, 0, len(result.Results))
	for _, r := range result.Results {
		var mediaType bot.MediaType
		var title, original, date string
		switch r.MediaType {
		case "movie":
			mediaType = bot.MediaTypeMovie
			title, original, date = r.Title, r.OrigTitle, r.ReleaseDate
		case "tv":
			mediaType = bot.MediaTypeTVSeries
			title, original, date = r.Name, r.OrigName, r.FirstAirDate
		default:
			// Person results are noise here.
			continue
		}
		candidates = append(candidates, Candidate{
			Provider:      "tmdb",
			ID:            fmt.Sprintf("%d", r.ID),
			Title:         title,
			OriginalTitle: original,
			MediaType:     mediaType,
			Year:          firstYear(date),
			Popularity:    r.Popularity,
		})
	}
	return candidates, nil
}

// Season describes one season of a TV series.
type Season struct {
	Number       int
	Name         string
	EpisodeCount int
}

// Seasons lists the regular seasons of a TV series, dropping specials.
func (t *TMDB) Seasons(ctx context.Context, tmdbID string) ([]Season, error) {
	if !t.Configured() {
		return nil, &ProviderError{Provider: "tmdb", ID: tmdbID, Err: ErrNotConfigured}
	}

	endpoint := fmt.Sprintf("%s/tv/%s?api_key=%s&language=%s",
		t.baseURL, url.PathEscape(tmdbID), url.QueryEscape(t.apiKey), t.language)

	var details tmdbDetails
	status, err := getJSON(ctx, t.client, endpoint, nil, &details)
	if err != nil {
		if status == 404 {
			return nil, notFound("tmdb", tmdbID)
		}
		return nil, unavailable("tmdb", tmdbID, err)
	}

	seasons := make([]Season, 0, len(details.Seasons))
	for _, s := range details.Seasons {
		if s.SeasonNumber <= 0 {
			continue
		}
		seasons = append(seasons, Season{Number: s.SeasonNumber, Name: s.Name, EpisodeCount: s.EpisodeCount})
	}
	return seasons, nil
}
