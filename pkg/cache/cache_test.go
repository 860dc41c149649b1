package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Symbol string  `json:"symbol"`
	Alpha  float64 `json:"alpha"`
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewRedisCacheFromClient(client, "test")
}

func TestMemoryCacheStoresStructs(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", sample{Symbol: "AAPL", Alpha: 1.5}, time.Minute))
	got, err := GetTyped[sample](ctx, mc, "a")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, 1.5, got.Alpha)

	var missing sample
	assert.ErrorIs(t, mc.Get(ctx, "nope", &missing), ErrCacheMiss)
}

func TestMemoryCacheExpiryAndEviction(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	var s string
	require.NoError(t, mc.Set(ctx, "short", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	assert.ErrorIs(t, mc.Get(ctx, "short", &s), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "k1", "1", time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "k2", "2", time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Get(ctx, "k1", &s))
	require.NoError(t, mc.Set(ctx, "k3", "3", time.Minute))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "k2", &s), ErrCacheMiss, "least recently used goes first")
	require.NoError(t, mc.Get(ctx, "k1", &s))
	assert.Equal(t, "1", s)
}

func TestMemoryCacheRawBytes(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "b", []byte(`{"symbol":"X"}`), 0))
	var raw []byte
	require.NoError(t, mc.Get(ctx, "b", &raw))
	assert.JSONEq(t, `{"symbol":"X"}`, string(raw))

	got, err := GetTyped[sample](ctx, mc, "b")
	require.NoError(t, err)
	assert.Equal(t, "X", got.Symbol)
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mr, rc := newRedis(t)

	require.NoError(t, rc.Set(ctx, "cal:AAPL", sample{Symbol: "AAPL", Alpha: 1.6}, time.Hour))
	assert.True(t, mr.Exists("test:cal:AAPL"))
	assert.Equal(t, time.Hour, mr.TTL("test:cal:AAPL"))

	got, err := GetTyped[sample](ctx, rc, "cal:AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1.6, got.Alpha)

	require.NoError(t, rc.Delete(ctx, "cal:AAPL"))
	var s sample
	assert.ErrorIs(t, rc.Get(ctx, "cal:AAPL", &s), ErrCacheMiss)
	assert.NoError(t, rc.Delete(ctx))
}

func TestLayeredCacheFillsMemory(t *testing.T) {
	ctx := context.Background()
	mr, rc := newRedis(t)
	lc := NewLayeredCache(rc, WithLayeredMemorySize(10))
	defer lc.Close()

	require.NoError(t, rc.Set(ctx, "k", sample{Symbol: "MSFT"}, 0))

	var got sample
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, "MSFT", got.Symbol)

	// Served from memory after Redis loses the key.
	mr.Del("test:k")
	got = sample{}
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, "MSFT", got.Symbol)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestLayeredCacheWritesThrough(t *testing.T) {
	ctx := context.Background()
	mr, rc := newRedis(t)
	lc := NewLayeredCache(rc, WithLayeredMemoryTTL(time.Minute))
	defer lc.Close()

	require.NoError(t, lc.Set(ctx, "job", sample{Symbol: "SPY", Alpha: 2}, time.Hour))
	raw, err := mr.Get("test:job")
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"SPY","alpha":2}`, raw)
	assert.Equal(t, time.Hour, mr.TTL("test:job"))

	got, err := GetTyped[sample](ctx, lc, "job")
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Alpha)
}
