package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/lumenbank/apiserver/types"
	"github.com/redis/go-redis/v9"
)

const historyKeyPrefix = "lumen:history:"

// HistoryCache caches projected transaction histories in Redis.
type HistoryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewHistoryCache(rdb *redis.Client, ttl time.Duration) *HistoryCache {
	return &HistoryCache{rdb: rdb, ttl: ttl}
}

// Get reports a miss with ok == false.
func (c *HistoryCache) Get(ctx context.Context, userID string) ([]types.HistoryEntry, bool, error) {
	b, err := c.rdb.Get(ctx, historyKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entries []types.HistoryEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

func (c *HistoryCache) Set(ctx context.Context, userID string, entries []types.HistoryEntry) error {
	b, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, historyKeyPrefix+userID, b, c.ttl).Err()
}

func (c *HistoryCache) Delete(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, historyKeyPrefix+userID).Err()
}
