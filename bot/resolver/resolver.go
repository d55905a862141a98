package resolver

import (
	"context"

	"danmakubot/bot"
)

// Candidate is a normalized media record produced by a metadata provider.
type Candidate struct {
	Provider      string
	ID            string
	Title         string
	OriginalTitle string
	MediaType     bot.MediaType
	Year          int
	Season        int
	Popularity    float64
}

// Resolver resolves provider-specific identifiers into Candidates.
type Resolver interface {
	// Name returns the provider identifier (e.g. "tmdb").
	Name() string

	// MatchInput extracts a provider ID from free text when the text is a
	// URL or identifier this provider owns.
	MatchInput(text string) (Match, bool)

	// Resolve fetches metadata for a previously matched input.
	Resolve(ctx context.Context, m Match) (*Candidate, error)
}

// Match is the outcome of a successful MatchInput.
type Match struct {
	ID string
	// MediaType is set when the input itself pins the type, as TMDB URLs do.
	MediaType bot.MediaType
}

// Searcher is implemented by providers that support free-text search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// Chain tries resolvers in registration order; the first matching
// resolver wins. Free-text search falls back to the first registered
// Searcher.
type Chain struct {
	resolvers []Resolver
	logger    bot.Logger
}

// NewChain creates a resolver chain. Order is significant.
func NewChain(logger bot.Logger, resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers, logger: logger}
}

// Register appends a resolver to the chain.
func (c *Chain) Register(r Resolver) {
	if r != nil {
		c.resolvers = append(c.resolvers, r)
	}
}

// Names lists the registered provider names in order.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.resolvers))
	for _, r := range c.resolvers {
		names = append(names, r.Name())
	}
	return names
}

// Match classifies free text. When a provider owns the input, that
// provider and its match are returned.
func (c *Chain) Match(text string) (Resolver, Match, bool) {
	for _, r := range c.resolvers {
		if m, ok := r.MatchInput(text); ok {
			return r, m, true
		}
	}
	return nil, Match{}, false
}

// ResolveInput matches and resolves free text in one step. Provider
// failures degrade to a nil candidate so conversations can continue
// without metadata assistance.
func (c *Chain) ResolveInput(ctx context.Context, text string) (*Candidate, bool) {
	r, m, ok := c.Match(text)
	if !ok {
		return nil, false
	}
	candidate, err := r.Resolve(ctx, m)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("resolver: lookup failed, continuing without metadata",
				"provider", r.Name(), "id", m.ID, "error", err)
		}
		return nil, true
	}
	return candidate, true
}

// Search runs free-text search on the first provider that supports it.
func (c *Chain) Search(ctx context.Context, query string) ([]Candidate, error) {
	for _, r := range c.resolvers {
		if s, ok := r.(Searcher); ok {
			return s.Search(ctx, query)
		}
	}
	return nil, nil
}

// FilterType discards candidates whose media type conflicts with want.
// Candidates with an unknown type are kept.
func FilterType(candidates []Candidate, want bot.MediaType) []Candidate {
	if want == "" {
		return candidates
	}
	filtered := make([]Candidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand.MediaType == "" || cand.MediaType == want {
			filtered = append(filtered, cand)
		}
	}
	return filtered
}

// BestMatch picks the strongest candidate: highest popularity first,
// then most recent year, then input order.
func BestMatch(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Popularity > candidates[best].Popularity {
			best = i
			continue
		}
		if candidates[i].Popularity == candidates[best].Popularity &&
			candidates[i].Year > candidates[best].Year {
			best = i
		}
	}
	return candidates[best], true
}

// DominantType reports the single media type of a candidate set, or
// false when types are mixed or the set is empty.
func DominantType(candidates []Candidate) (bot.MediaType, bool) {
	var movies, series int
	for _, cand := range candidates {
		switch cand.MediaType {
		case bot.MediaTypeMovie:
			movies++
		case bot.MediaTypeTVSeries:
			series++
		}
	}
	switch {
	case movies > 0 && series == 0:
		return bot.MediaTypeMovie, true
	case series > 0 && movies == 0:
		return bot.MediaTypeTVSeries, true
	default:
		return "", false
	}
}
