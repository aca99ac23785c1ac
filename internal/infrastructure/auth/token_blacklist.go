package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/tesis/backend/internal/infrastructure/cache"
)

// TokenBlacklist invalidates tokens before they expire (logout)
type TokenBlacklist interface {
	// AddToBlacklist revokes a token's JTI for ttl, the token's remaining lifetime
	AddToBlacklist(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// StoreTokenBlacklist keeps revoked JTIs in a cache.Store, so it is shared
// across instances when the store is Redis.
type StoreTokenBlacklist struct {
	store     cache.Store
	keyPrefix string
}

// NewStoreTokenBlacklist creates a blacklist backed by store
func NewStoreTokenBlacklist(store cache.Store) *StoreTokenBlacklist {
	return &StoreTokenBlacklist{store: store, keyPrefix: "token:blacklist:jti:"}
}

// AddToBlacklist revokes jti for ttl
func (b *StoreTokenBlacklist) AddToBlacklist(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := b.store.Set(ctx, b.keyPrefix+jti, []byte("1"), ttl); err != nil {
		return fmt.Errorf("failed to add token to blacklist: %w", err)
	}
	return nil
}

// IsBlacklisted checks if jti was revoked
func (b *StoreTokenBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	_, ok, err := b.store.Get(ctx, b.keyPrefix+jti)
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return ok, nil
}

var _ TokenBlacklist = (*StoreTokenBlacklist)(nil)
