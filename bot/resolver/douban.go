package resolver

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"danmakubot/bot"
)

var (
	doubanURLPattern   = regexp.MustCompile(`^https?://movie\.douban\.com/subject/(\d+)(?:[/?#].*)?$`)
	doubanTitlePattern = regexp.MustCompile(`<title>\s*([^<]+?)\s*\(豆瓣\)\s*</title>`)
	doubanYearPattern  = regexp.MustCompile(`<span class="year">\((\d{4})\)</span>`)
	doubanSeasonSuffix = regexp.MustCompile(`第([0-9一二三四五六七八九十]+)季`)
)

// Douban resolves movie.douban.com subject URLs by scraping the
// public subject page.
type Douban struct {
	client *retryablehttp.Client
	logger bot.Logger
}

func NewDouban(logger bot.Logger) *Douban {
	return &Douban{client: newHTTPClient(15 * time.Second), logger: logger}
}

func (d *Douban) Name() string { return "douban" }

func (d *Douban) MatchInput(text string) (Match, bool) {
	groups := doubanURLPattern.FindStringSubmatch(trimInput(text))
	if groups == nil {
		return Match{}, false
	}
	return Match{ID: groups[1]}, true
}

func (d *Douban) Resolve(ctx context.Context, m Match) (*Candidate, error) {
	pageURL := fmt.Sprintf("https://movie.douban.com/subject/%s/", m.ID)
	headers := map[string]string{"Accept-Language": "zh-CN,zh;q=0.9"}

	raw, status, err := fetch(ctx, d.client, http.MethodGet, pageURL, headers, nil)
	if err != nil {
		return nil, unavailable("douban", m.ID, err)
	}
	if status == http.StatusNotFound {
		return nil, notFound("douban", m.ID)
	}
	if status != http.StatusOK {
		return nil, unavailable("douban", m.ID, fmt.Errorf("unexpected status %d", status))
	}

	page := string(raw)
	titleGroups := doubanTitlePattern.FindStringSubmatch(page)
	if titleGroups == nil {
		return nil, notFound("douban", m.ID)
	}
	title := strings.TrimSpace(titleGroups[1])

	year := 0
	if yearGroups := doubanYearPattern.FindStringSubmatch(page); yearGroups != nil {
		year, _ = strconv.Atoi(yearGroups[1])
	}

	// Subject pages list 集数 (episode count) only for episodic media.
	mediaType := bot.MediaTypeMovie
	if strings.Contains(page, "集数:") || strings.Contains(page, "单集片长") {
		mediaType = bot.MediaTypeTVSeries
	}

	season := 0
	if seasonGroups := doubanSeasonSuffix.FindStringSubmatch(title); seasonGroups != nil {
		season = parseCNNumber(seasonGroups[1])
		mediaType = bot.MediaTypeTVSeries
	}

	return &Candidate{
		Provider:  "douban",
		ID:        m.ID,
		Title:     title,
		MediaType: mediaType,
		Year:      year,
		Season:    season,
	}, nil
}

var cnDigits = map[rune]int{
	'一': 1, '二': 2, '三': 3, '四': 4, '五': 5,
	'六': 6, '七': 7, '八': 8, '九': 9, '十': 10,
}

// parseCNNumber handles the small Chinese numerals seen in season
// suffixes (up to 二十 or so) alongside plain digits.
func parseCNNumber(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	runes := []rune(s)
	switch len(runes) {
	case 1:
		return cnDigits[runes[0]]
	case 2:
		if runes[0] == '十' {
			return 10 + cnDigits[runes[1]]
		}
		if runes[1] == '十' {
			return cnDigits[runes[0]] * 10
		}
	case 3:
		if runes[1] == '十' {
			return cnDigits[runes[0]]*10 + cnDigits[runes[2]]
		}
	}
	return 0
}
