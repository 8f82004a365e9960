package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/p-n-ai/dsaquest/internal/platform/cache"
)

const (
	// DefaultLeaderboardLimit applies when no limit is requested.
	DefaultLeaderboardLimit = 10
	// MaxLeaderboardLimit caps any requested limit.
	MaxLeaderboardLimit = 100

	leaderboardCacheKey = "dsaquest:leaderboard:top"
)

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank   int    `json:"id"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Level  int    `json:"level"`
}

// ClampLimit maps a requested leaderboard size into [1, MaxLeaderboardLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLeaderboardLimit
	}
	return min(limit, MaxLeaderboardLimit)
}

// LeaderboardCache holds the top MaxLeaderboardLimit entries between completions.
type LeaderboardCache interface {
	Get(ctx context.Context) ([]LeaderboardEntry, bool, error)
	Set(ctx context.Context, entries []LeaderboardEntry) error
	Invalidate(ctx context.Context) error
}

// NopLeaderboardCache never hits.
type NopLeaderboardCache struct{}

func (NopLeaderboardCache) Get(context.Context) ([]LeaderboardEntry, bool, error) {
	return nil, false, nil
}
func (NopLeaderboardCache) Set(context.Context, []LeaderboardEntry) error { return nil }
func (NopLeaderboardCache) Invalidate(context.Context) error             { return nil }

// RedisLeaderboardCache stores the ranking as one JSON value with a TTL.
type RedisLeaderboardCache struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewRedisLeaderboardCache(c *cache.Cache, ttl time.Duration) (*RedisLeaderboardCache, error) {
	if c == nil {
		return nil, fmt.Errorf("cache is nil")
	}
	return &RedisLeaderboardCache{cache: c, ttl: ttl}, nil
}

func (c *RedisLeaderboardCache) Get(ctx context.Context) ([]LeaderboardEntry, bool, error) {
	var entries []LeaderboardEntry
	ok, err := c.cache.GetJSON(ctx, leaderboardCacheKey, &entries)
	if err != nil || !ok {
		return nil, false, err
	}
	return entries, true, nil
}

func (c *RedisLeaderboardCache) Set(ctx context.Context, entries []LeaderboardEntry) error {
	return c.cache.SetJSON(ctx, leaderboardCacheKey, entries, c.ttl)
}

func (c *RedisLeaderboardCache) Invalidate(ctx context.Context) error {
	return c.cache.Delete(ctx, leaderboardCacheKey)
}
