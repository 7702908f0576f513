package redis

import (
	"context"
	"time"
)

// Client represents a Redis client interface for testing and abstraction
type Client interface {
	// Set sets a key to a value with an optional TTL (0 means no expiration)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Get gets the value of a key; ErrKeyNotFound if the key does not exist
	Get(ctx context.Context, key string) (string, error)

	// Del deletes one or more keys
	Del(ctx context.Context, keys ...string) error

	// Expire sets a TTL on a key
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Ping checks the connection to Redis
	Ping(ctx context.Context) error

	// Close closes the Redis connection
	Close() error
}
