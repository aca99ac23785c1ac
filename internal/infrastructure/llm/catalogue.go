package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tesis/backend/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// ModelCatalogue caches provider model listings
type ModelCatalogue struct {
	registry *Registry
	store    cache.Store
	ttl      time.Duration
	logger   *zap.Logger
}

// NewModelCatalogue creates a catalogue backed by store
func NewModelCatalogue(registry *Registry, store cache.Store, ttl time.Duration, logger *zap.Logger) *ModelCatalogue {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelCatalogue{registry: registry, store: store, ttl: ttl, logger: logger}
}

// Models returns the provider's models, from cache when fresh
func (c *ModelCatalogue) Models(ctx context.Context, provider string) ([]Model, error) {
	p, err := c.registry.Get(provider)
	if err != nil {
		return nil, err
	}
	key := "models:" + p.Name()

	if b, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warn("model cache read failed", zap.String("provider", p.Name()), zap.Error(err))
	} else if ok {
		var models []Model
		if err := json.Unmarshal(b, &models); err == nil {
			return models, nil
		}
	}

	models, err := p.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(models); err == nil {
		if err := c.store.Set(ctx, key, b, c.ttl); err != nil {
			c.logger.Warn("model cache write failed", zap.String("provider", p.Name()), zap.Error(err))
		}
	}
	return models, nil
}

// Invalidate drops the cached listing for a provider
func (c *ModelCatalogue) Invalidate(ctx context.Context, provider string) error {
	return c.store.Delete(ctx, "models:"+provider)
}
