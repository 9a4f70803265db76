// Package catalog provides a read-through cache in front of the product
// repository, so hot storefront reads (product pages, listings) do not hit
// PostgreSQL on every request.
package catalog

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/averlon/podstore/internal/domain/product"
)

// errCacheMiss signals that the key has no cached value.
var errCacheMiss = errors.New("cache miss")

// Cache is the storage behind CachedRepository. Implementations are
// best-effort: a failing cache must never fail a read.
type Cache interface {
	Get(ctx context.Context, key string, v any) error
	Set(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, keys ...string) error
}

var _ Cache = (*RedisCache)(nil)

// RedisCache implements Cache on Redis with a jittered TTL, so entries
// populated in the same burst do not expire together.
type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

// NewRedisCache creates a RedisCache. A zero TTL defaults to 5 minutes.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, baseTTL: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string, v any) error {
	data, err := c.client.Get(ctx, "catalog:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return errCacheMiss
	}
	if err != nil {
		return errors.Wrap(err, "redis get")
	}
	return json.Unmarshal(data, v)
}

func (c *RedisCache) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal")
	}
	jitter := time.Duration(rand.Intn(60)) * time.Second
	return c.client.Set(ctx, "catalog:"+key, data, c.baseTTL+jitter).Err()
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = "catalog:" + k
	}
	return c.client.Del(ctx, prefixed...).Err()
}

var _ product.Repository = (*CachedRepository)(nil)

// CachedRepository decorates a product repository with read-through caching.
// Concurrent misses for the same key are collapsed into one repository call
// via singleflight. Only the single-product lookups are cached; listings go
// straight through, they are already one indexed query.
type CachedRepository struct {
	product.Repository

	cache Cache
	sfg   singleflight.Group
}

// NewCachedRepository wraps repo with the given cache.
func NewCachedRepository(repo product.Repository, cache Cache) *CachedRepository {
	return &CachedRepository{Repository: repo, cache: cache}
}

// GetByID returns the product from cache, falling back to the repository.
func (r *CachedRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	return r.lookup(ctx, "product:id:"+id, func() (*product.Product, error) {
		return r.Repository.GetByID(ctx, id)
	})
}

// GetBySlug returns the product from cache, falling back to the repository.
func (r *CachedRepository) GetBySlug(ctx context.Context, slug string) (*product.Product, error) {
	return r.lookup(ctx, "product:slug:"+slug, func() (*product.Product, error) {
		return r.Repository.GetBySlug(ctx, slug)
	})
}

// Invalidate drops the cached entries for a product. Called by the admin
// surface after catalog writes and by checkout after stock decrements.
func (r *CachedRepository) Invalidate(ctx context.Context, p *product.Product) {
	if err := r.cache.Delete(ctx, "product:id:"+p.ID, "product:slug:"+p.Slug); err != nil {
		zctx.From(ctx).Warn("Cache invalidate failed",
			zap.String("product_id", p.ID), zap.Error(err))
	}
}

func (r *CachedRepository) lookup(ctx context.Context, key string, fetch func() (*product.Product, error)) (*product.Product, error) {
	var cached product.Product
	err := r.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, errCacheMiss) {
		zctx.From(ctx).Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}

	v, err, _ := r.sfg.Do(key, func() (any, error) {
		p, err := fetch()
		if err != nil {
			return nil, err
		}
		if err := r.cache.Set(ctx, key, p); err != nil {
			zctx.From(ctx).Warn("Cache write failed", zap.String("key", key), zap.Error(err))
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*product.Product), nil
}
