package services

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
)

type cachedPage struct {
	page     *LeaderboardPage
	storedAt time.Time
}

// leaderboardCache keeps recently served leaderboard pages for a short TTL.
// A nil cache is valid and never hits.
type leaderboardCache struct {
	entries *lru.Cache
	ttl     time.Duration
	now     func() time.Time
}

func newLeaderboardCache(size int, ttl time.Duration, now func() time.Time) *leaderboardCache {
	if size <= 0 || ttl <= 0 {
		return nil
	}
	entries, err := lru.New(size)
	if err != nil {
		return nil
	}
	return &leaderboardCache{entries: entries, ttl: ttl, now: now}
}

func (c *leaderboardCache) get(key string) (*LeaderboardPage, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	cached, ok := v.(cachedPage)
	if !ok || c.now().Sub(cached.storedAt) > c.ttl {
		c.entries.Remove(key)
		return nil, false
	}
	return cached.page, true
}

func (c *leaderboardCache) put(key string, page *LeaderboardPage) {
	if c == nil {
		return
	}
	c.entries.Add(key, cachedPage{page: page, storedAt: c.now()})
}

func (c *leaderboardCache) purge() {
	if c == nil {
		return
	}
	c.entries.Purge()
}
