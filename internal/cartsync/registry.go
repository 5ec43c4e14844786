package cartsync

import (
	"context"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"storefront/internal/commerce"
	"storefront/internal/logging"
)

// Registry hands out one Engine per client id. Engines are kept in an LRU cache; an
// evicted client is rebuilt from its persisted state on its next request.
type Registry struct {
	client commerce.Client
	opts   Options
	logger *zap.Logger

	cache *lru.Cache
	group singleflight.Group
}

func NewRegistry(client commerce.Client, size int, opts Options) (*Registry, error) {
	logger := logging.OrNop(opts.Logger).Named("cart_registry")
	cache, err := lru.NewWithEvict(size, func(key, _ interface{}) {
		logger.Debug("cart engine evicted", zap.Any("client_id", key))
	})
	if err != nil {
		return nil, errors.Wrap(err, "init engine cache")
	}
	return &Registry{client: client, opts: opts, logger: logger, cache: cache}, nil
}

// Get returns the engine for clientID. The first access loads the persisted cart and
// reconciles it with the backend; a failed reconciliation is logged and the engine is
// still returned with its restored state.
func (r *Registry) Get(ctx context.Context, clientID string) (*Engine, error) {
	if v, ok := r.cache.Get(clientID); ok {
		return v.(*Engine), nil
	}
	v, err, _ := r.group.Do(clientID, func() (interface{}, error) {
		if v, ok := r.cache.Get(clientID); ok {
			return v, nil
		}
		return r.load(ctx, clientID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Engine), nil
}

func (r *Registry) load(ctx context.Context, clientID string) (*Engine, error) {
	engine := NewEngine(clientID, r.client, r.opts)
	if r.opts.Store != nil {
		state, err := r.opts.Store.Load(ctx, clientID)
		if err != nil {
			return nil, errors.Wrapf(err, "load cart for %s", clientID)
		}
		engine.Restore(state)
	}
	if err := engine.Sync(ctx); err != nil {
		r.logger.Warn("initial cart sync failed", zap.String("client_id", clientID), zap.Error(err))
	}
	r.cache.Add(clientID, engine)
	return engine, nil
}

func (r *Registry) Len() int {
	return r.cache.Len()
}

// Wait blocks until background work of every cached engine has finished.
func (r *Registry) Wait() {
	for _, key := range r.cache.Keys() {
		if v, ok := r.cache.Peek(key); ok {
			v.(*Engine).Wait()
		}
	}
}
