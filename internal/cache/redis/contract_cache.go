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

const contractTTL = 2 * time.Minute

// ContractCache implements domain.ContractCache using Redis hashes with
// JSON-serialized contracts and a secondary slug index.
//
// Key schema:
//
//	contract:{id}          - hash with field "data" containing JSON
//	contract:slug:{slug}   - string value of the contract ID
type ContractCache struct {
	c *Client
}

// NewContractCache creates a ContractCache backed by the given Client.
func NewContractCache(c *Client) *ContractCache {
	return &ContractCache{c: c}
}

func (cc *ContractCache) key(id string) string       { return cc.c.Key("contract:" + id) }
func (cc *ContractCache) slugKey(slug string) string { return cc.c.Key("contract:slug:" + slug) }

// Set stores a contract with a short TTL so probabilities stay fresh.
func (cc *ContractCache) Set(ctx context.Context, contract domain.Contract) error {
	data, err := json.Marshal(contract)
	if err != nil {
		return fmt.Errorf("redis: marshal contract %s: %w", contract.ID, err)
	}

	key := cc.key(contract.ID)
	pipe := cc.c.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, contractTTL)
	if contract.Slug != "" {
		pipe.Set(ctx, cc.slugKey(contract.Slug), contract.ID, contractTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set contract %s: %w", contract.ID, err)
	}
	return nil
}

// Get returns a cached contract or domain.ErrNotFound.
func (cc *ContractCache) Get(ctx context.Context, id string) (domain.Contract, error) {
	data, err := cc.c.rdb.HGet(ctx, cc.key(id), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Contract{}, domain.ErrNotFound
		}
		return domain.Contract{}, fmt.Errorf("redis: get contract %s: %w", id, err)
	}

	var contract domain.Contract
	if err := json.Unmarshal(data, &contract); err != nil {
		return domain.Contract{}, fmt.Errorf("redis: unmarshal contract %s: %w", id, err)
	}
	return contract, nil
}

// GetBySlug resolves the slug index and returns the cached contract.
func (cc *ContractCache) GetBySlug(ctx context.Context, slug string) (domain.Contract, error) {
	id, err := cc.c.rdb.Get(ctx, cc.slugKey(slug)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Contract{}, domain.ErrNotFound
		}
		return domain.Contract{}, fmt.Errorf("redis: get contract by slug %s: %w", slug, err)
	}
	return cc.Get(ctx, id)
}

// Invalidate drops a contract and its slug index entry.
func (cc *ContractCache) Invalidate(ctx context.Context, id string) error {
	contract, err := cc.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("redis: invalidate contract %s: %w", id, err)
	}

	pipe := cc.c.rdb.TxPipeline()
	pipe.Del(ctx, cc.key(id))
	if err == nil && contract.Slug != "" {
		pipe.Del(ctx, cc.slugKey(contract.Slug))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: invalidate contract %s: %w", id, err)
	}
	return nil
}

var _ domain.ContractCache = (*ContractCache)(nil)
