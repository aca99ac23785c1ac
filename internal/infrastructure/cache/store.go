package cache

import (
	"context"
	"time"
)

// Store is a small TTL key/value store used for cached provider data
type Store interface {
	// Get returns the value and true when the key exists and has not expired
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes a key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
	// Close releases resources
	Close() error
}
