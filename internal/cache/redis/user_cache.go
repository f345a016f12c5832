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

const userTTL = 30 * time.Minute

// UserCache implements domain.UserCache. Profiles change rarely, so entries
// live longer than contracts.
type UserCache struct {
	c *Client
}

// NewUserCache creates a UserCache backed by the given Client.
func NewUserCache(c *Client) *UserCache {
	return &UserCache{c: c}
}

func (uc *UserCache) key(id string) string { return uc.c.Key("user:" + id) }

// Set stores a user profile.
func (uc *UserCache) Set(ctx context.Context, u domain.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("redis: marshal user %s: %w", u.ID, err)
	}
	if err := uc.c.rdb.Set(ctx, uc.key(u.ID), data, userTTL).Err(); err != nil {
		return fmt.Errorf("redis: set user %s: %w", u.ID, err)
	}
	return nil
}

// Get returns a cached profile or domain.ErrNotFound.
func (uc *UserCache) Get(ctx context.Context, id string) (domain.User, error) {
	data, err := uc.c.rdb.Get(ctx, uc.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("redis: get user %s: %w", id, err)
	}
	var u domain.User
	if err := json.Unmarshal(data, &u); err != nil {
		return domain.User{}, fmt.Errorf("redis: unmarshal user %s: %w", id, err)
	}
	return u, nil
}

var _ domain.UserCache = (*UserCache)(nil)
