package cache

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	data    []byte
	expires time.Time
	touched time.Time
}

// MemoryCache implements Service in process with least-recently-used eviction.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	limit   int
	ttl     time.Duration
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryCache creates an in-memory cache and starts its expiry sweeper. Close stops it.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := memoryConfig{capacity: 1000, sweep: 5 * time.Minute, ttl: 24 * time.Hour}
	for _, opt := range opts {
		opt(&cfg)
	}
	mc := &MemoryCache{
		entries: make(map[string]*memEntry),
		limit:   cfg.capacity,
		ttl:     cfg.ttl,
		stop:    make(chan struct{}),
	}
	go mc.sweep(cfg.sweep)
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	mc.put(key, data, expiration)
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	data, ok := mc.lookup(key)
	if !ok {
		return ErrCacheMiss
	}
	return decode(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	for _, key := range keys {
		delete(mc.entries, key)
	}
	mc.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired or not.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.entries)
}

// Close stops the sweeper.
func (mc *MemoryCache) Close() error {
	mc.once.Do(func() { close(mc.stop) })
	return nil
}

func (mc *MemoryCache) put(key string, data []byte, expiration time.Duration) {
	if expiration <= 0 {
		expiration = mc.ttl
	}
	now := time.Now()

	mc.mu.Lock()
	defer mc.mu.Unlock()
	if _, ok := mc.entries[key]; !ok && len(mc.entries) >= mc.limit {
		mc.evictOldest()
	}
	mc.entries[key] = &memEntry{data: data, expires: now.Add(expiration), touched: now}
}

func (mc *MemoryCache) lookup(key string) ([]byte, bool) {
	now := time.Now()
	mc.mu.Lock()
	defer mc.mu.Unlock()

	e, ok := mc.entries[key]
	if !ok {
		return nil, false
	}
	if now.After(e.expires) {
		delete(mc.entries, key)
		return nil, false
	}
	e.touched = now
	return e.data, true
}

// evictOldest drops the least recently touched entry. Caller holds mu.
func (mc *MemoryCache) evictOldest() {
	var victim string
	var oldest time.Time
	for key, e := range mc.entries {
		if victim == "" || e.touched.Before(oldest) {
			victim, oldest = key, e.touched
		}
	}
	delete(mc.entries, victim)
}

func (mc *MemoryCache) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-mc.stop:
			return
		case now := <-t.C:
			mc.mu.Lock()
			for key, e := range mc.entries {
				if now.After(e.expires) {
					delete(mc.entries, key)
				}
			}
			mc.mu.Unlock()
		}
	}
}
