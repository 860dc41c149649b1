package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NoisyMarket/internal/domain/models"
	domrepo "NoisyMarket/internal/domain/repository"
	"NoisyMarket/internal/repository"
	"NoisyMarket/internal/services/markov"
	"NoisyMarket/pkg/cache"
	"NoisyMarket/pkg/logger"
	"NoisyMarket/pkg/queue"
)

func newJobQueue(t *testing.T) (*queue.RedisQueue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q := queue.NewRedisQueue(logger.Nop(), queue.QueueConfig{PollTimeout: 50 * time.Millisecond}, client,
		queue.WithKeyPrefix("test"), queue.WithMode(queue.ModeProducerOnly))
	return q, client
}

func batchRequest(symbol string, trials int) models.BatchRequest {
	return models.BatchRequest{
		SimulationRequest: models.SimulationRequest{Symbol: symbol, Price: 50, Steps: 100, Seed: 42, Direction: "up"},
		Trials:            trials,
	}
}

func TestMonteCarloJobEndToEnd(t *testing.T) {
	q, client := newJobQueue(t)
	jobs := repository.NewCacheJobStore(cache.NewRedisCacheFromClient(client, "test"), time.Hour)
	store := calibrationStore(t)
	require.NoError(t, store.Save(bg, storedCalibration()))
	runner := NewSimulationRunner(RunnerConfig{Workers: 2}, store, nil, testMetrics(), nil)

	q.RegisterJob(NewMonteCarloJob(runner, jobs, nil))
	require.NoError(t, q.Start())
	defer q.Stop(bg)

	sub := NewJobSubmitter(q, jobs)
	st, err := sub.Submit(bg, batchRequest("AAPL", 8))
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, st.State)

	queued, err := sub.Status(bg, st.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, queued.State)

	took, err := q.ProcessNext(bg)
	require.NoError(t, err)
	require.True(t, took)

	done, err := sub.Status(bg, st.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobDone, done.State)
	require.NotNil(t, done.Summary)
	assert.Equal(t, 8, done.Summary.Trials)

	spec, err := runner.BuildSpec(bg, batchRequest("AAPL", 8).SimulationRequest)
	require.NoError(t, err)
	direct, err := runner.RunBatch(bg, spec, 8)
	require.NoError(t, err)
	assert.Equal(t, direct.Finals, done.Summary.Finals)
}

func TestMonteCarloJobMarksUnknownSymbolFailed(t *testing.T) {
	jobs := repository.NewCacheJobStore(memoryCache(t), time.Hour)
	runner := NewSimulationRunner(RunnerConfig{}, calibrationStore(t), nil, testMetrics(), nil)
	job := NewMonteCarloJob(runner, jobs, nil)

	payload, err := json.Marshal(MonteCarloPayload{ID: "j1", Request: batchRequest("NOPE", 2)})
	require.NoError(t, err)
	require.NoError(t, job.Handle(bg, queue.Message{ID: "j1", Type: MonteCarloJobType, Payload: payload}))

	st, err := jobs.GetJob(bg, "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, st.State)
	assert.Contains(t, st.Error, "not found")
}

func TestMonteCarloJobDropsUndecodable(t *testing.T) {
	jobs := repository.NewCacheJobStore(memoryCache(t), time.Hour)
	job := NewMonteCarloJob(nil, jobs, nil)
	assert.NoError(t, job.Handle(bg, queue.Message{ID: "x", Payload: []byte("{")}))
	_, err := jobs.GetJob(bg, "x")
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
}

type failingPublisher struct{}

func (failingPublisher) Enqueue(context.Context, string, string, interface{}) (string, error) {
	return "", errors.New("redis down")
}

func TestSubmitRecordsEnqueueFailure(t *testing.T) {
	jobs := repository.NewCacheJobStore(memoryCache(t), time.Hour)
	sub := NewJobSubmitter(failingPublisher{}, jobs)
	sub.newID = func() string { return "fixed" }

	_, err := sub.Submit(bg, batchRequest("AAPL", 1))
	require.Error(t, err)
	st, err := jobs.GetJob(bg, "fixed")
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, st.State)
}

func TestRetryable(t *testing.T) {
	assert.False(t, retryable(&markov.ConfigurationError{Field: "x"}))
	assert.False(t, retryable(domrepo.ErrNotFound))
	assert.False(t, retryable(&markov.DegenerateChainError{}))
	assert.True(t, retryable(errors.New("io")))
}
