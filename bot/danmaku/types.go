package danmaku

import "danmakubot/bot"

// SearchResponse is the payload of GET /search.
type SearchResponse struct {
	SearchID string       `json:"searchId"`
	Results  []SearchItem `json:"results"`
}

// SearchItem is one candidate from a library search.
type SearchItem struct {
	Title        string `json:"title"`
	Type         string `json:"type"`
	Provider     string `json:"provider"`
	Year         int    `json:"year"`
	Season       int    `json:"season"`
	EpisodeCount int    `json:"episodeCount"`
}

// LibraryItem is one record from GET /library.
type LibraryItem struct {
	AnimeID      int64  `json:"animeId"`
	Title        string `json:"title"`
	Type         string `json:"type"`
	Year         int    `json:"year"`
	Season       int    `json:"season"`
	EpisodeCount int    `json:"episodeCount"`
}

// Source is one danmaku source attached to a library record.
type Source struct {
	SourceID     int64  `json:"sourceId"`
	ProviderName string `json:"providerName"`
	EpisodeCount int    `json:"episodeCount"`
}

// Episode is one episode of a source.
type Episode struct {
	EpisodeID    int64  `json:"episodeId"`
	EpisodeIndex int    `json:"episodeIndex"`
	Title        string `json:"title"`
	CommentCount int    `json:"commentCount"`
}

// Token is an API access token managed through the bot.
type Token struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Token     string `json:"token"`
	IsEnabled bool   `json:"isEnabled"`
	CreatedAt string `json:"createdAt"`
	ExpiresAt string `json:"expiresAt"`
}

// TokenValidity values accepted by CreateToken.
var TokenValidities = []struct {
	Value string
	Label string
}{
	{"permanent", "永久"},
	{"1d", "1 天"},
	{"7d", "7 天"},
	{"30d", "30 天"},
	{"180d", "6 个月"},
	{"365d", "1 年"},
}

// Task is one entry from GET /tasks.
type Task struct {
	TaskID      string `json:"taskId"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
}

// ServerConfig is the subset of GET /config the bot consumes.
type ServerConfig struct {
	WebhookFilterMode  string `json:"webhookFilterMode"`
	WebhookFilterRegex string `json:"webhookFilterRegex"`
}

// RateLimitStatus is the payload of GET /rate-limit/status.
type RateLimitStatus struct {
	GlobalEnabled     bool `json:"globalEnabled"`
	SecondsUntilReset int  `json:"secondsUntilReset"`
}

// ImportAutoRequest is the body of POST /import/auto.
type ImportAutoRequest struct {
	SearchType   string        `json:"searchType"`
	SearchTerm   string        `json:"searchTerm"`
	MediaType    bot.MediaType `json:"mediaType,omitempty"`
	Season       int           `json:"season,omitempty"`
	Episode      int           `json:"episode,omitempty"`
	ImportMethod string        `json:"importMethod,omitempty"`
}

// ImportURLRequest is the body of POST /import/url.
type ImportURLRequest struct {
	SourceID     int64  `json:"sourceId"`
	EpisodeIndex int    `json:"episode_index"`
	URL          string `json:"url"`
}

// ImportDirectRequest is the body of POST /import/direct, importing one
// result of a previous GET /search by its position.
type ImportDirectRequest struct {
	SearchID    string `json:"searchId"`
	ResultIndex int    `json:"result_index"`
}

// SearchEpisode is one episode listed by GET /episodes for a search result.
type SearchEpisode struct {
	Provider     string `json:"provider"`
	EpisodeID    int64  `json:"episodeId"`
	Title        string `json:"title"`
	EpisodeIndex int    `json:"episodeIndex"`
}

// ImportEditedRequest is the body of POST /import/edited, importing a
// hand-picked subset of episodes of a search result.
type ImportEditedRequest struct {
	SearchID    string          `json:"searchId"`
	ResultIndex int             `json:"result_index"`
	Episodes    []SearchEpisode `json:"episodes"`
}

// TaskRef points at a server-side task spawned by an import request.
type TaskRef struct {
	TaskID string `json:"taskId"`
}
