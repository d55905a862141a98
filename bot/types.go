package bot

import "strings"

// MediaType classifies a media record as a movie or an episodic series.
type MediaType string

const (
	MediaTypeMovie    MediaType = "movie"
	MediaTypeTVSeries MediaType = "tv_series"
)

// ParseMediaType normalizes common provider spellings into a MediaType.
func ParseMediaType(s string) (MediaType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "电影":
		return MediaTypeMovie, true
	case "tv_series", "tv", "series", "tvseries", "电视剧":
		return MediaTypeTVSeries, true
	default:
		return "", false
	}
}

// Display returns the Chinese label used in bot messages.
func (t MediaType) Display() string {
	switch t {
	case MediaTypeMovie:
		return "电影"
	case MediaTypeTVSeries:
		return "电视剧"
	default:
		return string(t)
	}
}

// Role is the authorization level of a Telegram user.
type Role int

const (
	RoleUnauthorized Role = iota
	RoleAllowed
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleAllowed:
		return "allowed"
	default:
		return "unauthorized"
	}
}
