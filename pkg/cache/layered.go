package cache

import (
	"context"
	"time"
)

// LayeredCache reads through process memory (L1) to Redis (L2) and writes through to both.
// L1 entries live at most the configured L1 TTL so other instances' writes become visible.
type LayeredCache struct {
	l1    *MemoryCache
	l2    *RedisCache
	l1TTL time.Duration
}

func NewLayeredCache(l2 *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := layeredConfig{l1Size: 1000, l1TTL: 10 * time.Minute}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &LayeredCache{
		l1:    NewMemoryCache(WithMemoryMaxSize(cfg.l1Size), WithMemoryTTL(cfg.l1TTL)),
		l2:    l2,
		l1TTL: cfg.l1TTL,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if err := lc.l2.Set(ctx, key, data, expiration); err != nil {
		return err
	}
	ttl := lc.l1TTL
	if expiration > 0 && expiration < ttl {
		ttl = expiration
	}
	lc.l1.put(key, data, ttl)
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if data, ok := lc.l1.lookup(key); ok {
		return decode(data, dest)
	}
	var raw []byte
	if err := lc.l2.Get(ctx, key, &raw); err != nil {
		return err
	}
	lc.l1.put(key, raw, lc.l1TTL)
	return decode(raw, dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.l1.Delete(ctx, keys...)
	return lc.l2.Delete(ctx, keys...)
}

// Close releases L1. The Redis client is left to whoever created it.
func (lc *LayeredCache) Close() error {
	return lc.l1.Close()
}
