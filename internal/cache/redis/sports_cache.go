package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

const sportsTagsKey = keyPrefix + "sports:tags"

// SportsTagCache implements domain.SportsTagCache as a Redis set with a TTL.
type SportsTagCache struct {
	rdb *redis.Client
}

// NewSportsTagCache creates a SportsTagCache backed by the given Client.
func NewSportsTagCache(c *Client) *SportsTagCache {
	return &SportsTagCache{rdb: c.Underlying()}
}

// GetSportsTags returns the cached tag ids, or domain.ErrNotFound when the set
// is missing or expired.
func (sc *SportsTagCache) GetSportsTags(ctx context.Context) ([]string, error) {
	ids, err := sc.rdb.SMembers(ctx, sportsTagsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get sports tags: %w", err)
	}
	if len(ids) == 0 {
		return nil, domain.ErrNotFound
	}
	return ids, nil
}

// SetSportsTags replaces the cached set atomically.
func (sc *SportsTagCache) SetSportsTags(ctx context.Context, ids []string, ttl time.Duration) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}

	pipe := sc.rdb.TxPipeline()
	pipe.Del(ctx, sportsTagsKey)
	pipe.SAdd(ctx, sportsTagsKey, members...)
	if ttl > 0 {
		pipe.Expire(ctx, sportsTagsKey, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set sports tags: %w", err)
	}
	return nil
}

var _ domain.SportsTagCache = (*SportsTagCache)(nil)
