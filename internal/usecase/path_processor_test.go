package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NoisyMarket/internal/domain/models"
	domrepo "NoisyMarket/internal/domain/repository"
	"NoisyMarket/internal/middleware"
	"NoisyMarket/internal/services/markov"
)

type fakePublisher struct {
	batches [][]models.PathRecord
	err     error
	closed  bool
}

func (f *fakePublisher) Publish(ctx context.Context, r *models.SimulationResult) error {
	return f.PublishBatch(ctx, r.Records())
}

func (f *fakePublisher) PublishBatch(_ context.Context, records []models.PathRecord) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, records)
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

// fakeStorage fails its failOn-th StoreBatch call once.
type fakeStorage struct {
	stored []models.PathRecord
	calls  int
	failOn int
}

func (f *fakeStorage) Init(context.Context) error { return nil }

func (f *fakeStorage) StoreBatch(_ context.Context, records []models.PathRecord) error {
	f.calls++
	if f.calls == f.failOn {
		return errors.New("insert timeout")
	}
	f.stored = append(f.stored, records...)
	return nil
}

func (f *fakeStorage) QueryRun(_ context.Context, runID string, limit int) ([]models.PathRecord, error) {
	var out []models.PathRecord
	for _, r := range f.stored {
		if r.RunID == runID && len(out) < limit {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, domrepo.ErrNotFound
	}
	return out, nil
}

func (f *fakeStorage) Health(context.Context) error { return nil }
func (f *fakeStorage) Close() error                  { return nil }

func records(runID string, n int) []models.PathRecord {
	out := make([]models.PathRecord, n)
	for i := range out {
		out[i] = models.PathRecord{RunID: runID, Symbol: "AAPL", Step: i + 1, Price: float64(i)}
	}
	return out
}

func TestProcessBatchChunksKafka(t *testing.T) {
	pub := &fakePublisher{}
	p := NewPathProcessor(pub, nil, testMetrics(), BackendKafka, 4, time.Second, nil)
	require.NoError(t, p.ProcessBatch(bg, records("r1", 10)))
	require.Len(t, pub.batches, 3)
	assert.Len(t, pub.batches[0], 4)
	assert.Len(t, pub.batches[2], 2)

	p.Close()
	assert.True(t, pub.closed)
}

func TestProcessStoresAndQueriesClickHouse(t *testing.T) {
	store := &fakeStorage{}
	p := NewPathProcessor(nil, store, testMetrics(), BackendClickHouse, 100, time.Second, nil)
	res := &models.SimulationResult{RunID: "r2", Symbol: "AAPL", Final: 51, Steps: 3}
	require.NoError(t, p.Process(bg, res))

	got, err := p.QueryRun(bg, "r2", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 51.0, got[0].Price)
	assert.Equal(t, 3, got[0].Step)
}

func TestProcessNoneBackendDropsRecords(t *testing.T) {
	p := NewPathProcessor(nil, nil, testMetrics(), BackendNone, 0, time.Second, nil)
	assert.NoError(t, p.ProcessBatch(bg, records("r", 5)))
	_, err := p.QueryRun(bg, "r", 5)
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
}

func TestProcessMissingBackendErrors(t *testing.T) {
	p := NewPathProcessor(nil, nil, testMetrics(), BackendKafka, 10, time.Second, nil)
	assert.Error(t, p.ProcessBatch(bg, records("r", 1)))
	assert.Error(t, p.Process(bg, nil))
}

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	boom := errors.New("broker down")
	pub := &fakePublisher{err: boom}
	p := NewPathProcessor(pub, nil, testMetrics(), BackendKafka, 10, time.Minute, nil)

	for i := 0; i < 5; i++ {
		err := p.ProcessBatch(bg, records("r", 1))
		require.ErrorIs(t, err, boom)
	}
	err := p.ProcessBatch(bg, records("r", 1))
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	pub.err = nil
	assert.ErrorIs(t, p.ProcessBatch(bg, records("r", 1)), ErrBackendUnavailable, "still open until the timeout")
}

func TestProcessBatchReportsDeliveredPrefix(t *testing.T) {
	store := &fakeStorage{failOn: 2}
	p := NewPathProcessor(nil, store, testMetrics(), BackendClickHouse, 2, time.Second, nil)

	err := p.ProcessBatch(bg, records("r", 5))
	var partial *domrepo.PartialDeliveryError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 2, partial.Sent)
	assert.Len(t, store.stored, 2)
}

func TestPipelineStoresEachStepOnceAfterChunkFailure(t *testing.T) {
	store := &fakeStorage{failOn: 2}
	proc := NewPathProcessor(nil, store, testMetrics(), BackendClickHouse, 2, time.Second, nil)
	pipe := middleware.NewPathPipeline(proc, testMetrics())

	res := &models.SimulationResult{RunID: "r3", Symbol: "AAPL", Initial: 50, Final: 54, Steps: 4}
	for i := 1; i <= 4; i++ {
		res.Path = append(res.Path, markov.Step{N: i, Direction: markov.Up, Price: 50 + float64(i)})
	}
	require.NoError(t, pipe.Process(bg, res))
	require.NoError(t, pipe.Stop(bg))

	steps := make([]int, 0, len(store.stored))
	for _, r := range store.stored {
		steps = append(steps, r.Step)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, steps)
}
