package markov

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransitionMatrixColumnsSumToOne(t *testing.T) {
	q, err := NewTransitionMatrix([2][2]float64{{0.50183452, 0.53757696}, {0.49816548, 0.46242304}})
	require.NoError(t, err)

	up, down := q.ColumnSums()
	assert.InDelta(t, 1, up, ColumnTolerance)
	assert.InDelta(t, 1, down, ColumnTolerance)
}

func TestNewTransitionMatrixRejectsInvalid(t *testing.T) {
	cases := map[string][2][2]float64{
		"negative":   {{-0.1, 0.5}, {1.1, 0.5}},
		"above one":  {{1.2, 0.5}, {-0.2, 0.5}},
		"column sum": {{0.6, 0.5}, {0.6, 0.5}},
		"nan":        {{math.NaN(), 0.5}, {0.5, 0.5}},
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewTransitionMatrix(q)
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err))
		})
	}
}

func TestFixedPointSymmetric(t *testing.T) {
	q := MustTransitionMatrix([2][2]float64{{0.5, 0.5}, {0.5, 0.5}})
	up, down, err := q.FixedPoint()
	require.NoError(t, err)
	assert.Equal(t, 0.5, up)
	assert.Equal(t, 0.5, down)
}

func TestFixedPointAsymmetric(t *testing.T) {
	q := MustTransitionMatrix([2][2]float64{{0.9, 0.3}, {0.1, 0.7}})
	up, down, err := q.FixedPoint()
	require.NoError(t, err)
	assert.InDelta(t, 0.75, up, 1e-12)
	assert.InDelta(t, 0.25, down, 1e-12)
}

func TestFixedPointDegenerate(t *testing.T) {
	q := MustTransitionMatrix([2][2]float64{{1, 0}, {0, 1}})
	_, _, err := q.FixedPoint()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDegenerateChain))

	var de *DegenerateChainError
	require.ErrorAs(t, err, &de)
	assert.Zero(t, de.UpGivenDown)
}

func TestTransitionMatrixJSONValidates(t *testing.T) {
	var q TransitionMatrix
	require.NoError(t, json.Unmarshal([]byte(`[[0.7,0.2],[0.3,0.8]]`), &q))
	assert.Equal(t, 0.2, q.At(Up, Down))

	err := json.Unmarshal([]byte(`[[0.7,0.2],[0.7,0.8]]`), &q)
	assert.True(t, IsConfigurationError(err))
}

func TestNextConvergesToFixedPoint(t *testing.T) {
	q := MustTransitionMatrix([2][2]float64{{0.9, 0.3}, {0.1, 0.7}})
	piUp, _, err := q.FixedPoint()
	require.NoError(t, err)

	rng := NewRand(3)
	state := Up
	const n = 200000
	ups := 0
	for i := 0; i < n; i++ {
		state = Next(state, q, rng)
		if state == Up {
			ups++
		}
	}
	assert.InDelta(t, piUp, float64(ups)/n, 0.01)
}

func TestNextAbsorbingColumn(t *testing.T) {
	q := MustTransitionMatrix([2][2]float64{{1, 0}, {0, 1}})
	rng := NewRand(9)
	for i := 0; i < 1000; i++ {
		require.Equal(t, Down, Next(Down, q, rng))
		require.Equal(t, Up, Next(Up, q, rng))
	}
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("UP")
	require.NoError(t, err)
	assert.Equal(t, Up, d)

	d, err = ParseDirection("-1")
	require.NoError(t, err)
	assert.Equal(t, Down, d)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}
