package domain

import (
	"context"
	"time"
)

// ContractCache provides fast contract lookups.
type ContractCache interface {
	Set(ctx context.Context, c Contract) error
	Get(ctx context.Context, id string) (Contract, error)
	Invalidate(ctx context.Context, id string) error
}

// UserCache provides fast user profile lookups.
type UserCache interface {
	Set(ctx context.Context, u User) error
	Get(ctx context.Context, id string) (User, error)
}

// HomeCache holds the assembled home page payload.
type HomeCache interface {
	Set(ctx context.Context, feed HomeFeed, ttl time.Duration) error
	Get(ctx context.Context) (HomeFeed, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// ResolveLockKey is the lock name guarding resolution of one contract.
func ResolveLockKey(contractID string) string {
	return "resolve:" + contractID
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
