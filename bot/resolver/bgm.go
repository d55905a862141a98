package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"danmakubot/bot"
)

var bgmURLPattern = regexp.MustCompile(`^https?://(?:www\.)?(?:bgm\.tv|bangumi\.tv|chii\.in)/subject/(\d+)(?:[/?#].*)?$`)

// BGM resolves Bangumi subject URLs through the api.bgm.tv subject API.
type BGM struct {
	accessToken string
	baseURL     string
	client      *retryablehttp.Client
	logger      bot.Logger
}

func NewBGM(accessToken string, logger bot.Logger) *BGM {
	return &BGM{
		accessToken: accessToken,
		baseURL:     "https://api.bgm.tv",
		client:      newHTTPClient(10 * time.Second),
		logger:      logger,
	}
}

func (b *BGM) Name() string { return "bgm" }

func (b *BGM) Configured() bool { return b.accessToken != "" }

func (b *BGM) MatchInput(text string) (Match, bool) {
	groups := bgmURLPattern.FindStringSubmatch(trimInput(text))
	if groups == nil {
		return Match{}, false
	}
	return Match{ID: groups[1]}, true
}

type bgmSubject struct {
	ID       int64  `json:"id"`
	Type     int    `json:"type"`
	Name     string `json:"name"`
	NameCN   string `json:"name_cn"`
	Date     string `json:"date"`
	Platform string `json:"platform"`
}

func (b *BGM) Resolve(ctx context.Context, m Match) (*Candidate, error) {
	if !b.Configured() {
		return nil, &ProviderError{Provider: "bgm", ID: m.ID, Err: ErrNotConfigured}
	}

	endpoint := fmt.Sprintf("%s/v0/subjects/%s", b.baseURL, m.ID)
	headers := map[string]string{
		"Authorization": "Bearer " + b.accessToken,
		"Accept":        "application/json",
	}

	var subject bgmSubject
	status, err := getJSON(ctx, b.client, endpoint, headers, &subject)
	if err != nil {
		if status == 404 {
			return nil, notFound("bgm", m.ID)
		}
		return nil, unavailable("bgm", m.ID, err)
	}

	title := subject.NameCN
	if title == "" {
		title = subject.Name
	}

	// Theatrical releases are movies; everything else on Bangumi is
	// treated as episodic.
	mediaType := bot.MediaTypeTVSeries
	platform := strings.TrimSpace(subject.Platform)
	if strings.Contains(platform, "剧场版") || strings.Contains(platform, "电影") {
		mediaType = bot.MediaTypeMovie
	}

	return &Candidate{
		Provider:      "bgm",
		ID:            m.ID,
		Title:         title,
		OriginalTitle: subject.Name,
		MediaType:     mediaType,
		Year:          firstYear(subject.Date),
	}, nil
}
