package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/marketresolver/internal/domain"
	"github.com/redis/go-redis/v9"
)

// HomeCache implements domain.HomeCache as a single JSON string key whose TTL
// is the revalidation interval.
type HomeCache struct {
	c *Client
}

// NewHomeCache creates a HomeCache backed by the given Client.
func NewHomeCache(c *Client) *HomeCache {
	return &HomeCache{c: c}
}

func (hc *HomeCache) key() string { return hc.c.Key("home:feed") }

// Set stores the assembled home feed until ttl elapses.
func (hc *HomeCache) Set(ctx context.Context, feed domain.HomeFeed, ttl time.Duration) error {
	data, err := json.Marshal(feed)
	if err != nil {
		return fmt.Errorf("redis: marshal home feed: %w", err)
	}
	if err := hc.c.rdb.Set(ctx, hc.key(), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set home feed: %w", err)
	}
	return nil
}

// Get returns the cached feed or domain.ErrNotFound once it has expired.
func (hc *HomeCache) Get(ctx context.Context) (domain.HomeFeed, error) {
	data, err := hc.c.rdb.Get(ctx, hc.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.HomeFeed{}, domain.ErrNotFound
		}
		return domain.HomeFeed{}, fmt.Errorf("redis: get home feed: %w", err)
	}
	var feed domain.HomeFeed
	if err := json.Unmarshal(data, &feed); err != nil {
		return domain.HomeFeed{}, fmt.Errorf("redis: unmarshal home feed: %w", err)
	}
	return feed, nil
}

var _ domain.HomeCache = (*HomeCache)(nil)
