package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// ProducerOption configures Producer.
type ProducerOption func(*ProducerConfig)

// ProducerConfig describes the writer behind a Producer.
type ProducerConfig struct {
	Brokers     []string
	Acks        int
	Attempts    int
	Compression string

	WriteTimeout time.Duration
	ReadTimeout  time.Duration

	BatchSize   int
	BatchBytes  int
	BatchLinger time.Duration

	Async bool
	// KeyAffinity routes every message of one key to one partition.
	KeyAffinity bool
	Metrics     *ProducerMetrics

	writer messageWriter
}

func defaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Acks:         -1,
		Attempts:     3,
		Compression:  "snappy",
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		BatchSize:    100,
		BatchBytes:   1 << 20,
		BatchLinger:  time.Second,
	}
}

func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

// WithDelivery sets acks (-1 = all in-sync replicas), writer attempts and compression.
func WithDelivery(acks, attempts int, compression string) ProducerOption {
	return func(c *ProducerConfig) {
		c.Acks = acks
		if attempts > 0 {
			c.Attempts = attempts
		}
		if compression != "" {
			c.Compression = compression
		}
	}
}

// WithBatching sets the writer's batch size, byte limit and linger before a partial batch
// is flushed.
func WithBatching(size, bytes int, linger time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.BatchSize = size
		c.BatchBytes = bytes
		c.BatchLinger = linger
	}
}

func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.WriteTimeout = write
		c.ReadTimeout = read
	}
}

// WithAsync makes writes fire-and-forget.
func WithAsync(on bool) ProducerOption {
	return func(c *ProducerConfig) { c.Async = on }
}

func WithKeyAffinity(on bool) ProducerOption {
	return func(c *ProducerConfig) { c.KeyAffinity = on }
}

func WithProducerMetrics(m *ProducerMetrics) ProducerOption {
	return func(c *ProducerConfig) { c.Metrics = m }
}

func (c ProducerConfig) newWriter() *kafka.Writer {
	var bal kafka.Balancer = &kafka.LeastBytes{}
	if c.KeyAffinity {
		bal = &kafka.Hash{}
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Balancer:     bal,
		RequiredAcks: kafka.RequiredAcks(c.Acks),
		Compression:  compressionCodec(c.Compression),
		MaxAttempts:  c.Attempts,
		WriteTimeout: c.WriteTimeout,
		ReadTimeout:  c.ReadTimeout,
		BatchSize:    c.BatchSize,
		BatchBytes:   int64(c.BatchBytes),
		BatchTimeout: c.BatchLinger,
		Async:        c.Async,
	}
}

func compressionCodec(name string) kafka.Compression {
	switch name {
	case "none":
		return 0
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Snappy
	}
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig describes a consumer group member and its worker pool.
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	WorkerCount int
	BufferSize  int
	RetryMax    int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	DLQTopic    string
	MinBytes    int
	MaxBytes    int
	Metrics     *ConsumerMetrics
}

func defaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		GroupID:     "noisymarket",
		WorkerCount: 1,
		BufferSize:  10,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
	}
}

// WithGroup sets the brokers and the consumer group. An empty group keeps the default.
func WithGroup(brokers []string, groupID string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.Brokers = brokers
		if groupID != "" {
			c.GroupID = groupID
		}
	}
}

// WithConsumerWorkers sets the worker count and the depth of the channel feeding them.
func WithConsumerWorkers(workers, buffer int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if workers > 0 {
			c.WorkerCount = workers
		}
		if buffer > 0 {
			c.BufferSize = buffer
		}
	}
}

// WithConsumerRetry bounds handler retries. Backoff grows from lo to hi with jitter.
func WithConsumerRetry(max int, lo, hi time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = lo
		c.BackoffMax = hi
	}
}

// WithConsumerDLQ sends messages that exhaust their retries to topic.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) { c.DLQTopic = topic }
}

func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

func WithConsumerMetrics(m *ConsumerMetrics) ConsumerOption {
	return func(c *ConsumerConfig) { c.Metrics = m }
}
