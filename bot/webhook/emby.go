package webhook

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mymmrac/telego"

	botpkg "danmakubot/bot"
	"danmakubot/bot/danmaku"
	"danmakubot/bot/db"
	"danmakubot/bot/store"
)

// EmbyEvent is the subset of the Emby notification payload the bot
// consumes.
type EmbyEvent struct {
	Event   string      `json:"Event"`
	Item    EmbyItem    `json:"Item"`
	Session EmbySession `json:"Session"`
	User    EmbyUser    `json:"User"`
}

type EmbyItem struct {
	Name              string            `json:"Name"`
	Type              string            `json:"Type"` // Movie | Episode
	ProductionYear    int               `json:"ProductionYear"`
	ParentIndexNumber int               `json:"ParentIndexNumber"`
	IndexNumber       int               `json:"IndexNumber"`
	SeriesName        string            `json:"SeriesName"`
	ProviderIds       map[string]string `json:"ProviderIds"`
}

type EmbySession struct {
	Client     string `json:"Client"`
	DeviceName string `json:"DeviceName"`
}

type EmbyUser struct {
	Name string `json:"Name"`
}

// TmdbID digs the TMDB id out of the provider map, which Emby spells
// in more than one way.
func (i EmbyItem) TmdbID() string {
	if id := i.ProviderIds["Tmdb"]; id != "" {
		return id
	}
	return i.ProviderIds["TheMovieDb"]
}

// Notifier sends the optional playback notification to Telegram.
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) (*telego.Message, error)
}

// EmbyProcessor turns playback.start events into library refreshes or
// automatic imports.
type EmbyProcessor struct {
	danmaku      *danmaku.Client
	library      *danmaku.LibraryCache
	identify     *store.Identify
	blacklist    *store.Blacklist
	repo         *db.Repository
	pool         botpkg.WorkerPool
	notifier     Notifier
	notifyChatID int64
	logger       botpkg.Logger

	filterOnce   sync.Once
	filterRegex  *regexp.Regexp
	filterIsDeny bool
}

// NewEmbyProcessor wires the processor. notifyChatID 0 disables the
// Telegram notification.
func NewEmbyProcessor(
	client *danmaku.Client,
	library *danmaku.LibraryCache,
	identify *store.Identify,
	blacklist *store.Blacklist,
	repo *db.Repository,
	pool botpkg.WorkerPool,
	notifier Notifier,
	notifyChatID int64,
	logger botpkg.Logger,
) *EmbyProcessor {
	return &EmbyProcessor{
		danmaku:      client,
		library:      library,
		identify:     identify,
		blacklist:    blacklist,
		repo:         repo,
		pool:         pool,
		notifier:     notifier,
		notifyChatID: notifyChatID,
		logger:       logger,
	}
}

// Enqueue schedules the event on the worker pool. A full pool drops
// the event with a log line rather than blocking the HTTP handler.
func (p *EmbyProcessor) Enqueue(event EmbyEvent) {
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		p.Process(ctx, event)
	}
	if p.pool == nil {
		go task()
		return
	}
	if err := p.pool.Submit(task); err != nil {
		p.logger.Warn("webhook: worker pool full, dropping event", "title", event.Item.Name)
	}
}

// Process runs the full management flow for one playback event.
func (p *EmbyProcessor) Process(ctx context.Context, event EmbyEvent) {
	item := event.Item

	title := item.Name
	seriesName := item.SeriesName
	season := item.ParentIndexNumber

	// Identify words rewrite what the media server reports before any
	// matching happens.
	if p.identify != nil && seriesName != "" {
		if rule, ok := p.identify.Lookup(seriesName, season); ok {
			p.logger.Info("webhook: identify conversion",
				"from", fmt.Sprintf("%s S%02d", seriesName, season),
				"to", fmt.Sprintf("%s S%02d", rule.Name, rule.Season))
			seriesName = rule.Name
			season = rule.Season
		}
	}

	checkName := title
	if item.Type == "Episode" && seriesName != "" {
		checkName = seriesName
	}

	if p.filtered(ctx, checkName) {
		p.record(ctx, event, seriesName, season, "skip", "filtered", checkName)
		return
	}
	if p.blacklist != nil {
		if hit, blocked := p.blacklist.Contains(checkName); blocked {
			p.logger.Info("webhook: title blacklisted", "title", checkName, "entry", hit)
			p.record(ctx, event, seriesName, season, "skip", "blacklisted", hit)
			return
		}
	}

	p.logger.Info("webhook: playback started",
		"title", title, "type", item.Type, "user", event.User.Name,
		"client", event.Session.Client, "device", event.Session.DeviceName)

	switch item.Type {
	case "Movie":
		p.processMovie(ctx, event)
	case "Episode":
		p.processEpisode(ctx, event, seriesName, season)
	default:
		p.logger.Debug("webhook: unsupported item type", "type", item.Type)
		return
	}

	p.notify(ctx, event)
}

// filtered applies the server-side webhook filter regex when the
// server runs it in blacklist mode. The filter is fetched once and
// cached for the process lifetime.
func (p *EmbyProcessor) filtered(ctx context.Context, title string) bool {
	p.filterOnce.Do(func() {
		cfg, err := p.danmaku.ServerConfig(ctx)
		if err != nil {
			p.logger.Warn("webhook: server config unavailable", "error", err)
			return
		}
		if cfg.WebhookFilterRegex == "" {
			return
		}
		re, err := regexp.Compile(cfg.WebhookFilterRegex)
		if err != nil {
			p.logger.Warn("webhook: bad server filter regex", "regex", cfg.WebhookFilterRegex, "error", err)
			return
		}
		p.filterRegex = re
		p.filterIsDeny = strings.EqualFold(cfg.WebhookFilterMode, "blacklist")
	})

	if p.filterRegex == nil || !p.filterIsDeny {
		return false
	}
	if p.filterRegex.MatchString(title) {
		p.logger.Info("webhook: title matches server filter", "title", title)
		return true
	}
	return false
}

func (p *EmbyProcessor) processMovie(ctx context.Context, event EmbyEvent) {
	item := event.Item
	tmdbID := item.TmdbID()
	if tmdbID == "" {
		p.logger.Info("webhook: movie without tmdb id, skipping", "title", item.Name)
		p.record(ctx, event, "", 0, "skip", "no-tmdb-id", "")
		return
	}

	items, err := p.library.Get(ctx)
	if err != nil {
		p.logger.Warn("webhook: library unavailable", "error", err)
		p.record(ctx, event, "", 0, "skip", "library-error", err.Error())
		return
	}

	var match *danmaku.LibraryItem
	for i := range items {
		if strings.EqualFold(items[i].Title, item.Name) {
			match = &items[i]
			break
		}
	}

	if match == nil {
		p.logger.Info("webhook: movie not in library, importing", "title", item.Name, "tmdb_id", tmdbID)
		err := p.danmaku.ImportAuto(ctx, danmaku.ImportAutoRequest{
			SearchType: "tmdb",
			SearchTerm: tmdbID,
			MediaType:  botpkg.MediaTypeMovie,
		})
		if err == nil {
			p.library.Invalidate()
		}
		p.recordOutcome(ctx, event, "", 0, "import", err)
		return
	}

	sources, err := p.danmaku.Sources(ctx, match.AnimeID)
	if err != nil || len(sources) == 0 {
		p.logger.Warn("webhook: no refreshable source", "title", match.Title, "error", err)
		p.record(ctx, event, "", 0, "skip", "no-source", "")
		return
	}
	err = p.danmaku.RefreshSource(ctx, sources[0].SourceID)
	p.recordOutcome(ctx, event, "", 0, "refresh", err)
}

func (p *EmbyProcessor) processEpisode(ctx context.Context, event EmbyEvent, seriesName string, season int) {
	item := event.Item
	if seriesName == "" {
		p.logger.Info("webhook: episode without series name, skipping")
		p.record(ctx, event, seriesName, season, "skip", "no-series-name", "")
		return
	}
	episode := item.IndexNumber
	tmdbID := item.TmdbID()

	items, err := p.library.Get(ctx)
	if err != nil {
		p.logger.Warn("webhook: library unavailable", "error", err)
		p.record(ctx, event, seriesName, season, "skip", "library-error", err.Error())
		return
	}
	match := matchSeries(items, seriesName, season)

	// The next episode is prefetched alongside the one being watched.
	episodes := []int{episode, episode + 1}

	if match == nil {
		if tmdbID == "" {
			p.logger.Info("webhook: series not in library and no tmdb id", "series", seriesName)
			p.record(ctx, event, seriesName, season, "skip", "no-tmdb-id", "")
			return
		}
		p.logger.Info("webhook: series not in library, importing",
			"series", seriesName, "season", season, "episodes", episodes)
		var lastErr error
		for _, ep := range episodes {
			if err := p.danmaku.ImportAuto(ctx, danmaku.ImportAutoRequest{
				SearchType: "tmdb",
				SearchTerm: tmdbID,
				MediaType:  botpkg.MediaTypeTVSeries,
				Season:     season,
				Episode:    ep,
			}); err != nil {
				lastErr = err
			}
		}
		if lastErr == nil {
			p.library.Invalidate()
		}
		p.recordOutcome(ctx, event, seriesName, season, "import", lastErr)
		return
	}

	sources, err := p.danmaku.Sources(ctx, match.AnimeID)
	if err != nil || len(sources) == 0 {
		p.logger.Warn("webhook: no refreshable source", "series", match.Title, "error", err)
		p.record(ctx, event, seriesName, season, "skip", "no-source", "")
		return
	}
	p.refreshEpisodes(ctx, event, sources[0].SourceID, tmdbID, seriesName, season, episodes)
}

// refreshEpisodes refreshes the listed episode indexes of a source,
// falling back to a single-episode import when the source does not
// carry an episode yet.
func (p *EmbyProcessor) refreshEpisodes(ctx context.Context, event EmbyEvent, sourceID int64, tmdbID, seriesName string, season int, wanted []int) {
	sourceEpisodes, err := p.danmaku.Episodes(ctx, sourceID)
	if err != nil {
		p.logger.Warn("webhook: episode list unavailable", "source_id", sourceID, "error", err)
		p.record(ctx, event, seriesName, season, "skip", "episodes-error", err.Error())
		return
	}

	byIndex := make(map[int]int64, len(sourceEpisodes))
	for _, ep := range sourceEpisodes {
		byIndex[ep.EpisodeIndex] = ep.EpisodeID
	}

	var lastErr error
	for _, index := range wanted {
		episodeID, ok := byIndex[index]
		if !ok {
			if tmdbID == "" {
				continue
			}
			p.logger.Info("webhook: episode missing from source, importing",
				"series", seriesName, "season", season, "episode", index)
			if err := p.danmaku.ImportAuto(ctx, danmaku.ImportAutoRequest{
				SearchType:   "tmdb",
				SearchTerm:   tmdbID,
				MediaType:    botpkg.MediaTypeTVSeries,
				ImportMethod: "auto",
				Season:       season,
				Episode:      index,
			}); err != nil {
				lastErr = err
			}
			continue
		}
		if err := p.danmaku.RefreshEpisode(ctx, episodeID); err != nil {
			p.logger.Warn("webhook: episode refresh failed", "episode_id", episodeID, "error", err)
			lastErr = err
		}
	}
	p.recordOutcome(ctx, event, seriesName, season, "refresh", lastErr)
}

// matchSeries picks the library record for a series and season. Season
// markers in the stored title win; an exact name match is the fallback.
func matchSeries(items []danmaku.LibraryItem, seriesName string, season int) *danmaku.LibraryItem {
	lowerName := strings.ToLower(seriesName)

	var candidates []*danmaku.LibraryItem
	for i := range items {
		if strings.Contains(strings.ToLower(items[i].Title), lowerName) {
			candidates = append(candidates, &items[i])
		}
	}

	var seasonMatches []*danmaku.LibraryItem
	if season > 0 {
		markers := []string{
			fmt.Sprintf("season %d", season),
			fmt.Sprintf("s%d", season),
			fmt.Sprintf("第%d季", season),
			fmt.Sprintf("第%d部", season),
		}
		for _, c := range candidates {
			title := strings.ToLower(c.Title)
			for _, marker := range markers {
				if strings.Contains(title, marker) {
					seasonMatches = append(seasonMatches, c)
					break
				}
			}
		}
	}

	switch {
	case len(seasonMatches) == 1:
		return seasonMatches[0]
	case len(seasonMatches) > 1:
		for _, c := range seasonMatches {
			if strings.EqualFold(c.Title, seriesName) {
				return c
			}
		}
		return seasonMatches[0]
	default:
		for _, c := range candidates {
			if strings.EqualFold(c.Title, seriesName) {
				return c
			}
		}
		return nil
	}
}

func (p *EmbyProcessor) notify(ctx context.Context, event EmbyEvent) {
	if p.notifier == nil || p.notifyChatID == 0 {
		return
	}
	item := event.Item
	title := item.Name
	if item.Type == "Episode" && item.SeriesName != "" {
		title = fmt.Sprintf("%s S%02dE%02d - %s",
			item.SeriesName, item.ParentIndexNumber, item.IndexNumber, item.Name)
	}
	message := fmt.Sprintf("🎬 Emby 播放通知\n\n媒体: %s\n用户: %s\n设备: %s (%s)",
		title, event.User.Name, event.Session.DeviceName, event.Session.Client)
	if _, err := p.notifier.SendMessage(ctx, p.notifyChatID, message); err != nil {
		p.logger.Warn("webhook: notification failed", "error", err)
	}
}

func (p *EmbyProcessor) record(ctx context.Context, event EmbyEvent, seriesName string, season int, action, status, detail string) {
	if p.repo == nil {
		return
	}
	rec := &db.WebhookEvent{
		Event:      event.Event,
		Title:      event.Item.Name,
		SeriesName: seriesName,
		Season:     season,
		Episode:    event.Item.IndexNumber,
		TmdbID:     event.Item.TmdbID(),
		Action:     action,
		Status:     status,
		Detail:     detail,
	}
	if err := p.repo.RecordWebhookEvent(ctx, rec); err != nil {
		p.logger.Warn("webhook: record failed", "error", err)
	}
}

func (p *EmbyProcessor) recordOutcome(ctx context.Context, event EmbyEvent, seriesName string, season int, action string, err error) {
	status, detail := "submitted", ""
	if err != nil {
		status = "failed"
		detail = danmaku.UserMessage(err)
	}
	p.record(ctx, event, seriesName, season, action, status, detail)
}
