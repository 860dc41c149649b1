package cache

import "time"

// MemoryOption configures MemoryCache.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	capacity int
	sweep    time.Duration
	ttl      time.Duration
}

// WithMemoryMaxSize caps the number of entries; the least recently used one is evicted.
func WithMemoryMaxSize(n int) MemoryOption {
	return func(c *memoryConfig) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithMemoryCleanup sets how often expired entries are swept.
func WithMemoryCleanup(every time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		if every > 0 {
			c.sweep = every
		}
	}
}

// WithMemoryTTL is the lifetime of entries stored without an expiration.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// LayeredOption configures LayeredCache.
type LayeredOption func(*layeredConfig)

type layeredConfig struct {
	l1Size int
	l1TTL  time.Duration
}

// WithLayeredMemorySize sets the L1 capacity.
func WithLayeredMemorySize(n int) LayeredOption {
	return func(c *layeredConfig) {
		if n > 0 {
			c.l1Size = n
		}
	}
}

// WithLayeredMemoryTTL bounds how stale an L1 entry may get.
func WithLayeredMemoryTTL(ttl time.Duration) LayeredOption {
	return func(c *layeredConfig) {
		if ttl > 0 {
			c.l1TTL = ttl
		}
	}
}
