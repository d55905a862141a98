package resolver

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"danmakubot/bot"
)

var (
	imdbIDPattern    = regexp.MustCompile(`^tt\d+$`)
	imdbURLPattern   = regexp.MustCompile(`^https?://(?:www\.)?imdb\.com/title/(tt\d+)(?:/.*)?$`)
	imdbOGTitle      = regexp.MustCompile(`<meta property="og:title" content="([^"]+)"`)
	imdbTitleSuffix  = regexp.MustCompile(`\s*[-⭐|].*$`)
	imdbParenthetic  = regexp.MustCompile(`\(([^)]*)\)`)
	imdbSeriesMarker = regexp.MustCompile(`TV (Mini )?Series`)
)

// IMDB resolves tt-prefixed IDs and imdb.com title URLs by scraping
// the public title page.
type IMDB struct {
	client *retryablehttp.Client
	logger bot.Logger
}

func NewIMDB(logger bot.Logger) *IMDB {
	return &IMDB{client: newHTTPClient(15 * time.Second), logger: logger}
}

func (i *IMDB) Name() string { return "imdb" }

func (i *IMDB) MatchInput(text string) (Match, bool) {
	text = trimInput(text)
	if imdbIDPattern.MatchString(text) {
		return Match{ID: text}, true
	}
	if groups := imdbURLPattern.FindStringSubmatch(text); groups != nil {
		return Match{ID: groups[1]}, true
	}
	return Match{}, false
}

func (i *IMDB) Resolve(ctx context.Context, m Match) (*Candidate, error) {
	pageURL := fmt.Sprintf("https://www.imdb.com/title/%s/", m.ID)
	headers := map[string]string{"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8"}

	raw, status, err := fetch(ctx, i.client, http.MethodGet, pageURL, headers, nil)
	if err != nil {
		return nil, unavailable("imdb", m.ID, err)
	}
	if status == http.StatusNotFound {
		return nil, notFound("imdb", m.ID)
	}
	if status != http.StatusOK {
		return nil, unavailable("imdb", m.ID, fmt.Errorf("unexpected status %d", status))
	}

	page := string(raw)
	ogGroups := imdbOGTitle.FindStringSubmatch(page)
	if ogGroups == nil {
		return nil, notFound("imdb", m.ID)
	}

	ogTitle := ogGroups[1]
	mediaType := bot.MediaTypeMovie
	if imdbSeriesMarker.MatchString(ogTitle) {
		mediaType = bot.MediaTypeTVSeries
	}

	// og:title looks like "Title (TV Series 2009) ⭐ 8.2 | Action".
	title := ogTitle
	year := 0
	if paren := imdbParenthetic.FindStringSubmatch(ogTitle); paren != nil {
		year = firstYear(paren[1])
		title = strings.TrimSpace(ogTitle[:strings.Index(ogTitle, "(")])
	}
	title = strings.TrimSpace(imdbTitleSuffix.ReplaceAllString(title, ""))
	if year == 0 {
		year = firstYear(ogTitle)
	}

	return &Candidate{
		Provider:  "imdb",
		ID:        m.ID,
		Title:     title,
		MediaType: mediaType,
		Year:      year,
	}, nil
}
