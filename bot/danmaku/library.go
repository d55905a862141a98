package danmaku

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"danmakubot/bot"
)

// LibraryCache caches GET /library results with a TTL. Concurrent
// refreshes of an expired cache collapse into a single API call.
type LibraryCache struct {
	client *Client
	ttl    time.Duration
	logger bot.Logger

	mu        sync.RWMutex
	items     []LibraryItem
	fetchedAt time.Time

	sf singleflight.Group
}

// NewLibraryCache creates a cache over the given client.
func NewLibraryCache(client *Client, ttl time.Duration, logger bot.Logger) *LibraryCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LibraryCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached library, refreshing it when stale.
func (lc *LibraryCache) Get(ctx context.Context) ([]LibraryItem, error) {
	lc.mu.RLock()
	if lc.items != nil && time.Since(lc.fetchedAt) < lc.ttl {
		items := lc.items
		lc.mu.RUnlock()
		return items, nil
	}
	lc.mu.RUnlock()

	result, err, _ := lc.sf.Do("library", func() (interface{}, error) {
		items, err := lc.client.Library(ctx)
		if err != nil {
			return nil, err
		}
		lc.mu.Lock()
		lc.items = items
		lc.fetchedAt = time.Now()
		lc.mu.Unlock()
		if lc.logger != nil {
			lc.logger.Info("danmaku: library cache refreshed", "records", len(items))
		}
		return items, nil
	})
	if err != nil {
		// Serve stale data over a hard failure when we have any.
		lc.mu.RLock()
		defer lc.mu.RUnlock()
		if lc.items != nil {
			return lc.items, nil
		}
		return nil, err
	}
	return result.([]LibraryItem), nil
}

// Invalidate drops the cached data so the next Get refreshes.
func (lc *LibraryCache) Invalidate() {
	lc.mu.Lock()
	lc.items = nil
	lc.fetchedAt = time.Time{}
	lc.mu.Unlock()
}

// SearchKeyword returns library records whose title contains the
// keyword, case-insensitive.
func (lc *LibraryCache) SearchKeyword(ctx context.Context, keyword string) ([]LibraryItem, error) {
	items, err := lc.Get(ctx)
	if err != nil {
		return nil, err
	}
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return nil, nil
	}
	var matches []LibraryItem
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Title), keyword) {
			matches = append(matches, item)
		}
	}
	return matches, nil
}
