package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"danmakubot/bot"
)

var tvdbURLPattern = regexp.MustCompile(`^https?://(?:www\.)?thetvdb\.com/series/([a-z0-9][a-z0-9-]*)(?:[/?#].*)?$`)

// TVDB resolves thetvdb.com series URLs. The v4 API requires a login
// call first; the bearer token is cached for the client lifetime.
type TVDB struct {
	apiKey  string
	baseURL string
	client  *retryablehttp.Client
	logger  bot.Logger

	mu    sync.Mutex
	token string
}

func NewTVDB(apiKey string, logger bot.Logger) *TVDB {
	return &TVDB{
		apiKey:  apiKey,
		baseURL: "https://api4.thetvdb.com/v4",
		client:  newHTTPClient(30 * time.Second),
		logger:  logger,
	}
}

func (t *TVDB) Name() string { return "tvdb" }

func (t *TVDB) Configured() bool { return t.apiKey != "" }

func (t *TVDB) MatchInput(text string) (Match, bool) {
	groups := tvdbURLPattern.FindStringSubmatch(trimInput(text))
	if groups == nil {
		return Match{}, false
	}
	return Match{ID: groups[1], MediaType: bot.MediaTypeTVSeries}, true
}

func (t *TVDB) login(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token != "" {
		return t.token, nil
	}

	payload, _ := json.Marshal(map[string]string{"apikey": t.apiKey})
	raw, status, err := fetch(ctx, t.client, http.MethodPost, t.baseURL+"/login",
		map[string]string{"Content-Type": "application/json"}, bytes.NewReader(payload))
	if err != nil {
		return "", unavailable("tvdb", "login", err)
	}
	if status != http.StatusOK {
		return "", unavailable("tvdb", "login", fmt.Errorf("unexpected status %d", status))
	}

	var result struct {
		Status string `json:"status"`
		Data   struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", unavailable("tvdb", "login", err)
	}
	if result.Status != "success" || result.Data.Token == "" {
		return "", unavailable("tvdb", "login", fmt.Errorf("login rejected"))
	}
	t.token = result.Data.Token
	return t.token, nil
}

func (t *TVDB) Resolve(ctx context.Context, m Match) (*Candidate, error) {
	if !t.Configured() {
		return nil, &ProviderError{Provider: "tvdb", ID: m.ID, Err: ErrNotConfigured}
	}

	token, err := t.login(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/search?query=%s&type=series", t.baseURL, url.QueryEscape(m.ID))
	headers := map[string]string{"Authorization": "Bearer " + token}

	var result struct {
		Data []struct {
			Name       string `json:"name"`
			Translated struct {
				ZHO string `json:"zho"`
			} `json:"name_translated"`
			Year string `json:"year"`
			Slug string `json:"slug"`
		} `json:"data"`
	}
	status, err := getJSON(ctx, t.client, endpoint, headers, &result)
	if err != nil {
		if status == 404 {
			return nil, notFound("tvdb", m.ID)
		}
		return nil, unavailable("tvdb", m.ID, err)
	}
	if len(result.Data) == 0 {
		return nil, notFound("tvdb", m.ID)
	}

	// Prefer the exact slug match when the search widens the result set.
	best := result.Data[0]
	for _, d := range result.Data {
		if d.Slug == m.ID {
			best = d
			break
		}
	}

	title := best.Translated.ZHO
	if title == "" {
		title = best.Name
	}

	return &Candidate{
		Provider:      "tvdb",
		ID:            m.ID,
		Title:         title,
		OriginalTitle: best.Name,
		MediaType:     bot.MediaTypeTVSeries,
		Year:          firstYear(best.Year),
	}, nil
}
