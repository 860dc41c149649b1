package middleware

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NoisyMarket/internal/domain/models"
	domrepo "NoisyMarket/internal/domain/repository"
	"NoisyMarket/internal/services/markov"
)

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
	depth  int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{errors: map[string]int{}}
}

func (m *countingMetrics) RecordPath(string, string, int, bool) {}
func (m *countingMetrics) RecordFinalPrice(string, float64)     {}
func (m *countingMetrics) RecordSamplingError(string)           {}
func (m *countingMetrics) RecordMessageSent(string, string)     {}
func (m *countingMetrics) RecordCalibration(string)             {}
func (m *countingMetrics) RecordLatency(string, float64)        {}
func (m *countingMetrics) RecordQueueDepth(_ string, depth int) {
	m.mu.Lock()
	m.depth = depth
	m.mu.Unlock()
}
func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *countingMetrics) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

// flakyProc fails while down is set and remembers what it delivered. With partialAt set it
// accepts that many records of the next batch, then fails once.
type flakyProc struct {
	down      atomic.Bool
	mu        sync.Mutex
	partialAt int
	delivered []string
	steps     []int
}

func (f *flakyProc) ProcessBatch(_ context.Context, records []models.PathRecord) error {
	if f.down.Load() {
		return errors.New("backend down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(records)
	var err error
	if f.partialAt > 0 && f.partialAt < n {
		n = f.partialAt
		f.partialAt = 0
		err = &domrepo.PartialDeliveryError{Sent: n, Err: errors.New("second chunk rejected")}
	}
	for _, rec := range records[:n] {
		f.steps = append(f.steps, rec.Step)
	}
	if err == nil {
		f.delivered = append(f.delivered, records[0].RunID)
	}
	return err
}

func (f *flakyProc) storedSteps() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.steps...)
}

func (f *flakyProc) runs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.delivered...)
}

func result(id string) *models.SimulationResult {
	return &models.SimulationResult{RunID: id, Symbol: "AAPL", Initial: 50, Final: 51}
}

func TestPipelineForwards(t *testing.T) {
	proc := &flakyProc{}
	p := NewPathPipeline(proc, newCountingMetrics())

	require.NoError(t, p.Process(context.Background(), result("a")))
	assert.Equal(t, []string{"a"}, proc.runs())
	assert.Zero(t, p.Buffered())
}

func TestPipelineRejectsInvalid(t *testing.T) {
	m := newCountingMetrics()
	p := NewPathPipeline(&flakyProc{}, m)

	bad := []*models.SimulationResult{
		nil,
		{Symbol: "AAPL", Initial: 1},
		{RunID: "x", Initial: 1},
		{RunID: "x", Symbol: "AAPL"},
		{RunID: "x", Symbol: "AAPL", Initial: 1, Final: math.NaN()},
	}
	for _, r := range bad {
		assert.Error(t, p.Process(context.Background(), r))
	}
	assert.Equal(t, len(bad), m.count("pipeline_validate"))
}

func TestPipelineBuffersAndRetries(t *testing.T) {
	proc := &flakyProc{}
	proc.down.Store(true)
	p := NewPathPipeline(proc, newCountingMetrics(),
		WithBufferSize(4),
		WithRetryBackoff(time.Millisecond, 5*time.Millisecond))
	p.Start()
	defer p.Stop(context.Background())

	require.NoError(t, p.Process(context.Background(), result("a")))
	require.NoError(t, p.Process(context.Background(), result("b")))
	assert.Empty(t, proc.runs())

	proc.down.Store(false)
	assert.Eventually(t, func() bool { return len(proc.runs()) == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"a", "b"}, proc.runs())
}

func TestPipelineBufferFull(t *testing.T) {
	proc := &flakyProc{}
	proc.down.Store(true)
	m := newCountingMetrics()
	p := NewPathPipeline(proc, m, WithBufferSize(1))

	require.NoError(t, p.Process(context.Background(), result("a")))
	err := p.Process(context.Background(), result("b"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBufferFull)
	assert.Contains(t, err.Error(), "backend down")
	assert.Equal(t, 1, m.count("pipeline_buffer_full"))
}

func TestPipelineStopDrains(t *testing.T) {
	proc := &flakyProc{}
	proc.down.Store(true)
	m := newCountingMetrics()
	p := NewPathPipeline(proc, m, WithBufferSize(3))

	require.NoError(t, p.Process(context.Background(), result("a")))
	require.NoError(t, p.Process(context.Background(), result("b")))
	assert.Equal(t, 2, m.depth)

	proc.down.Store(false)
	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, []string{"a", "b"}, proc.runs())
	assert.Zero(t, p.Buffered())
}

func TestPipelineStopReportsUndelivered(t *testing.T) {
	proc := &flakyProc{}
	proc.down.Store(true)
	m := newCountingMetrics()
	p := NewPathPipeline(proc, m)

	require.NoError(t, p.Process(context.Background(), result("a")))
	err := p.Stop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 results undelivered")
	assert.Equal(t, 1, m.count("pipeline_buffer_drop"))
}

func pathResult(id string, steps int) *models.SimulationResult {
	r := result(id)
	price := r.Initial
	for i := 1; i <= steps; i++ {
		price *= 1.01
		r.Path = append(r.Path, markov.Step{N: i, Direction: markov.Up, Magnitude: 0.01, Price: price})
	}
	r.Steps = steps
	r.Final = price
	return r
}

func TestPipelineRetriesOnlyUndeliveredRecords(t *testing.T) {
	proc := &flakyProc{partialAt: 2}
	p := NewPathPipeline(proc, newCountingMetrics())

	require.NoError(t, p.Process(context.Background(), pathResult("a", 4)))
	assert.Equal(t, 1, p.Buffered())
	assert.Equal(t, []int{1, 2}, proc.storedSteps())

	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, []int{1, 2, 3, 4}, proc.storedSteps())
	assert.Equal(t, []string{"a"}, proc.runs())
}

func TestPipelineLoopResumesAfterPartialDelivery(t *testing.T) {
	proc := &flakyProc{partialAt: 3}
	p := NewPathPipeline(proc, newCountingMetrics(), WithRetryBackoff(time.Millisecond, 2*time.Millisecond))
	p.Start()
	defer p.Stop(context.Background())

	require.NoError(t, p.Process(context.Background(), pathResult("a", 5)))
	assert.Eventually(t, func() bool { return len(proc.runs()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, proc.storedSteps())
}

func TestPipelineStartTwice(t *testing.T) {
	proc := &flakyProc{}
	p := NewPathPipeline(proc, newCountingMetrics())
	p.Start()
	p.Start()
	require.NoError(t, p.Process(context.Background(), result("a")))
	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, []string{"a"}, proc.runs())
}
