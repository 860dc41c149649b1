package usecase

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"NoisyMarket/internal/domain/models"
	"NoisyMarket/internal/repository"
	"NoisyMarket/internal/services/history"
	"NoisyMarket/internal/services/markov"
	"NoisyMarket/pkg/cache"
	"NoisyMarket/pkg/metrics"
)

var (
	calibratedQ    = [2][2]float64{{0.50183452, 0.53757696}, {0.49816548, 0.46242304}}
	calibratedLevy = markov.LevyParams{
		Alpha: 1.5744042025830018,
		Beta:  -0.13434961296351516,
		Delta: 0.0008798043941681043,
		Gamma: 0.009221584194093038,
	}
)

func testMetrics() *metrics.Recorder {
	return metrics.NewWithRegisterer(prometheus.NewRegistry())
}

func memoryCache(t *testing.T) *cache.MemoryCache {
	t.Helper()
	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func calibrationStore(t *testing.T) *repository.CacheCalibrationStore {
	t.Helper()
	return repository.NewCacheCalibrationStore(memoryCache(t), time.Hour)
}

func calibratedSpec(t *testing.T, seed uint64, steps int) models.SimulationSpec {
	t.Helper()
	m, err := markov.NewLevyStable(calibratedLevy)
	require.NoError(t, err)
	return models.SimulationSpec{
		Symbol:    "AAPL",
		Price:     50,
		Steps:     steps,
		Seed:      seed,
		Direction: markov.Up,
		Q:         markov.MustTransitionMatrix(calibratedQ),
		Movement:  m,
	}
}

func storedCalibration() *models.Calibration {
	g := markov.GaussianParams{MuUp: 0.01, SigmaUp: 0.01, MuDown: -0.01, SigmaDown: 0.01}
	return &models.Calibration{
		Symbol:   "AAPL",
		Q:        calibratedQ,
		Levy:     calibratedLevy,
		Gaussian: &g,
	}
}

// writeHistory writes n derived rows of a stable random walk whose first bar is on first.
func writeHistory(t *testing.T, dir, symbol string, first time.Time, n int, seed uint64) {
	t.Helper()
	rng := markov.NewRand(seed)
	p := markov.LevyParams{Alpha: 1.6, Beta: 0, Delta: 0, Gamma: 0.01}
	bars := make([]history.Bar, n)
	price := 100.0
	for i := range bars {
		price *= 1 + math.Max(markov.StableVariate(p, rng), -0.5)
		bars[i] = history.Bar{Date: history.Date{Time: first.AddDate(0, 0, i)}, Open: price, High: price, Low: price, Close: price}
	}
	rows, err := history.Derive(bars)
	require.NoError(t, err)
	end := first.AddDate(0, 0, n)
	require.NoError(t, history.WriteRowsFile(dir+"/"+history.Filename(symbol, first, end), rows))
}

var bg = context.Background()
