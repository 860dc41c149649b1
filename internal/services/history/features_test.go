package history

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"NoisyMarket/internal/services/markov"
)

func TestLogReturns(t *testing.T) {
	r := LogReturns([]float64{100, 110, 0, 50})
	assert.Len(t, r, 3)
	assert.InDelta(t, math.Log(1.1), r[0], 1e-12)
	assert.Zero(t, r[1])
	assert.Zero(t, r[2])

	assert.Nil(t, LogReturns([]float64{100}))
}

func TestRealizedVolatility(t *testing.T) {
	// Alternating +-1% returns: sample sd over 4 values is sqrt(4/3)*0.01.
	r := []float64{0.01, -0.01, 0.01, -0.01}
	want := math.Sqrt(4.0/3.0) * 0.01 * math.Sqrt(TradingDaysPerYear)
	assert.InDelta(t, want, RealizedVolatility(r, 0, TradingDaysPerYear), 1e-12)

	// Window of 2 over the tail.
	want2 := math.Sqrt(2) * 0.01 * math.Sqrt(TradingDaysPerYear)
	assert.InDelta(t, want2, RealizedVolatility(r, 2, TradingDaysPerYear), 1e-12)

	assert.Zero(t, RealizedVolatility([]float64{0.5}, 0, TradingDaysPerYear))
	assert.Zero(t, RealizedVolatility(nil, 5, TradingDaysPerYear))
}

func TestPathPricesAndCloses(t *testing.T) {
	path := []markov.Step{{N: 1, Price: 51}, {N: 2, Price: 49}}
	assert.Equal(t, []float64{50, 51, 49}, PathPrices(50, path))

	rows := PathRows(time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC), path, 50)
	assert.Equal(t, []float64{51, 49}, Closes(rows))
}
