package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"NoisyMarket/pkg/logger"
)

// QueueMode selects whether a queue also consumes what it publishes.
type QueueMode int

const (
	ModeProducerConsumer QueueMode = iota
	ModeProducerOnly
)

var ErrNotRunning = errors.New("queue not running")

// RedisQueue is a list-backed work queue. Failed messages wait in a sorted set scored by
// their due time and end up in a dead-letter list once the retry limit is spent.
//
// Keys, under the configured prefix:
//
//	<prefix>:messages  pending messages, LPUSH in and BRPOP out
//	<prefix>:retry     delayed retries
//	<prefix>:dlq       dead letters
type RedisQueue struct {
	log    *logger.Logger
	cfg    QueueConfig
	client *redis.Client
	mode   QueueMode
	prefix string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) { r.prefix = prefix }
}

// WithMode makes the queue producer-only; Start then launches no workers and Enqueue accepts
// types no local job handles.
func WithMode(mode QueueMode) RedisQueueOption {
	return func(r *RedisQueue) { r.mode = mode }
}

// NewRedisQueue creates a queue. Start must be called before Enqueue.
func NewRedisQueue(log *logger.Logger, cfg QueueConfig, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	cfg.Workers = max(cfg.Workers, 1)
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	r := &RedisQueue{
		log:    log,
		cfg:    cfg,
		client: client,
		prefix: "noisymarket:queue",
		jobs:   make(map[string]Job),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterJob routes messages of job.Type() to job. The first registration of a type wins.
func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.jobs[job.Type()]; dup {
		r.log.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.log.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

func (r *RedisQueue) job(msgType string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[msgType]
	return j, ok
}

// Start pings Redis and, unless producer-only, launches the workers and the retry mover.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("queue already running")
	}

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true
	addr := logger.String("addr", r.client.Options().Addr)

	if r.mode == ModeProducerOnly {
		r.log.Info("redis queue publishing", addr)
		return nil
	}
	r.wg.Add(r.cfg.Workers + 1)
	for i := 0; i < r.cfg.Workers; i++ {
		go r.work(ctx, i)
	}
	go r.moveRetries(ctx)
	r.log.Info("redis queue consuming", logger.Int("workers", r.cfg.Workers), addr)
	return nil
}

// Stop cancels the workers and waits for in-flight messages until ctx expires.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.log.Info("redis queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue stop: %w", ctx.Err())
	}
}

// Enqueue pushes payload as a message of msgType and returns its id. An empty id gets a
// generated one.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType, id string, payload interface{}) (string, error) {
	r.mu.RLock()
	running := r.running
	r.mu.RUnlock()
	if !running {
		return "", ErrNotRunning
	}
	if _, ok := r.job(msgType); !ok && r.mode != ModeProducerOnly {
		return "", fmt.Errorf("no job registered for type: %s", msgType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	if id == "" {
		id = uuid.NewString()
	}
	msg := Message{ID: id, Type: msgType, Payload: raw, Timestamp: time.Now().UTC()}
	if err := r.push(ctx, r.key("messages"), msg, false); err != nil {
		return "", err
	}
	return id, nil
}

// Pending is the number of messages waiting to be picked up.
func (r *RedisQueue) Pending(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.key("messages")).Result()
}

// DeadLetters is the number of messages that exhausted their retries.
func (r *RedisQueue) DeadLetters(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.key("dlq")).Result()
}

// ProcessNext blocks up to the poll timeout for one message and handles it. It reports
// whether a message was taken.
func (r *RedisQueue) ProcessNext(ctx context.Context) (bool, error) {
	res, err := r.client.BRPop(ctx, r.cfg.PollTimeout, r.key("messages")).Result()
	switch {
	case errors.Is(err, redis.Nil), errors.Is(err, context.DeadlineExceeded):
		return false, nil
	case err != nil:
		return false, err
	case len(res) < 2:
		return false, nil
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		r.log.Error("queue message undecodable", logger.Error(err))
		return true, nil
	}
	r.handle(ctx, msg)
	return true, nil
}

func (r *RedisQueue) handle(ctx context.Context, msg Message) {
	fields := []logger.Field{logger.String("id", msg.ID), logger.String("type", msg.Type)}
	job, ok := r.job(msg.Type)
	if !ok {
		r.log.Error("no job for message", fields...)
		r.deadLetter(msg)
		return
	}

	start := time.Now()
	err := job.Handle(ctx, msg)
	switch {
	case err == nil:
		r.log.Debug("message processed", append(fields, logger.Duration("elapsed_ms", time.Since(start)))...)
	case errors.Is(err, context.Canceled):
		// shutting down: hand the message back untouched for the next consumer
		r.log.Warn("message interrupted", fields...)
		if perr := r.push(context.Background(), r.key("messages"), msg, true); perr != nil {
			r.log.Error("requeue", logger.Error(perr))
		}
	case msg.Attempts < r.cfg.RetryLimit:
		msg.Attempts++
		r.log.Error("message failed, retrying", append(fields, logger.Int("attempt", msg.Attempts), logger.Error(err))...)
		r.retryAt(msg, time.Now().Add(r.cfg.RetryDelay))
	default:
		r.log.Error("message failed, giving up", append(fields, logger.Int("attempts", msg.Attempts+1), logger.Error(err))...)
		r.deadLetter(msg)
	}
}

// push appends msg to the list at key: at the consuming end when front is set, at the
// producing end otherwise.
func (r *RedisQueue) push(ctx context.Context, key string, msg Message, front bool) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if front {
		err = r.client.RPush(ctx, key, data).Err()
	} else {
		err = r.client.LPush(ctx, key, data).Err()
	}
	if err != nil {
		return fmt.Errorf("push %s: %w", key, err)
	}
	return nil
}

func (r *RedisQueue) retryAt(msg Message, at time.Time) {
	data, err := json.Marshal(msg)
	if err == nil {
		err = r.client.ZAdd(context.Background(), r.key("retry"), redis.Z{Score: float64(at.Unix()), Member: data}).Err()
	}
	if err != nil {
		r.log.Error("schedule retry", logger.String("id", msg.ID), logger.Error(err))
	}
}

func (r *RedisQueue) deadLetter(msg Message) {
	if err := r.push(context.Background(), r.key("dlq"), msg, false); err != nil {
		r.log.Error("dead letter", logger.String("id", msg.ID), logger.Error(err))
	}
}

// MoveDueRetries puts every retry scheduled at or before now back on the queue.
func (r *RedisQueue) MoveDueRetries(ctx context.Context, now time.Time) (int, error) {
	due, err := r.client.ZRangeByScore(ctx, r.key("retry"), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	for i, data := range due {
		pipe := r.client.TxPipeline()
		pipe.ZRem(ctx, r.key("retry"), data)
		pipe.LPush(ctx, r.key("messages"), data)
		if _, err := pipe.Exec(ctx); err != nil {
			return i, err
		}
	}
	return len(due), nil
}

func (r *RedisQueue) work(ctx context.Context, id int) {
	defer r.wg.Done()
	for ctx.Err() == nil {
		if _, err := r.ProcessNext(ctx); err != nil && ctx.Err() == nil {
			r.log.Error("queue poll", logger.Int("worker", id), logger.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(r.cfg.PollTimeout):
			}
		}
	}
}

func (r *RedisQueue) moveRetries(ctx context.Context) {
	defer r.wg.Done()
	t := time.NewTicker(r.cfg.RetryInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if _, err := r.MoveDueRetries(ctx, now); err != nil && ctx.Err() == nil {
				r.log.Error("move retries", logger.Error(err))
			}
		}
	}
}

func (r *RedisQueue) key(name string) string { return r.prefix + ":" + name }
