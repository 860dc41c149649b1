package markov

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var calibratedLevy = LevyParams{
	Alpha: 1.5744042025830018,
	Beta:  -0.13434961296351516,
	Delta: 0.0008798043941681043,
	Gamma: 0.009221584194093038,
}

func TestLevySignAndBound(t *testing.T) {
	m, err := NewLevyStable(calibratedLevy)
	require.NoError(t, err)
	rng := NewRand(11)

	for i := 0; i < 10000; i++ {
		x, dir, err := m.Sample(Up, rng)
		require.NoError(t, err)
		require.Equal(t, Up, dir)
		require.GreaterOrEqual(t, x, 0.0)

		x, dir, err = m.Sample(Down, rng)
		require.NoError(t, err)
		require.Equal(t, Down, dir)
		require.Less(t, x, 0.0)
		require.GreaterOrEqual(t, x, -1.0)
	}
}

func TestLevyHeavyScaleStillBounded(t *testing.T) {
	m, err := NewLevyStable(LevyParams{Alpha: 0.8, Beta: 0, Delta: 0, Gamma: 2})
	require.NoError(t, err)
	rng := NewRand(5)
	for i := 0; i < 2000; i++ {
		x, _, err := m.Sample(Down, rng)
		require.NoError(t, err)
		require.True(t, x >= -1 && x < 0)
	}
}

func TestLevyExhaustionReturnsSamplingError(t *testing.T) {
	// Location far above zero: a Down draw is practically never below zero.
	m, err := NewLevyStable(LevyParams{Alpha: 2, Beta: 0, Delta: 1000, Gamma: 0.001})
	require.NoError(t, err)
	m = m.WithMaxDraws(50)

	_, _, err = m.Sample(Down, NewRand(1))
	require.Error(t, err)

	var se *SamplingError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindLevyStable, se.Kind)
	assert.Equal(t, Down, se.Direction)
	assert.Equal(t, 50, se.Draws)
}

func TestStableAlphaTwoIsGaussian(t *testing.T) {
	p := LevyParams{Alpha: 2, Beta: 0, Delta: 1, Gamma: 0.5}
	rng := NewRand(21)
	const n = 50000
	var sum, sq float64
	for i := 0; i < n; i++ {
		x := StableVariate(p, rng)
		sum += x
		sq += x * x
	}
	mean := sum / n
	variance := sq/n - mean*mean
	assert.InDelta(t, 1, mean, 0.02)
	assert.InDelta(t, 2*0.25, variance, 0.02)
}

func TestStableNearAlphaOneIsFinite(t *testing.T) {
	p := LevyParams{Alpha: 1, Beta: 0.5, Delta: 0, Gamma: 1}
	rng := NewRand(4)
	for i := 0; i < 1000; i++ {
		x := StableVariate(p, rng)
		require.False(t, math.IsNaN(x))
	}
}

func TestGaussianUpFlipKeepsMagnitude(t *testing.T) {
	m, err := NewGaussian(GaussianParams{MuUp: -0.5, SigmaUp: 0.01, MuDown: -0.01, SigmaDown: 0.01})
	require.NoError(t, err)

	x, dir, err := m.Sample(Up, NewRand(8))
	require.NoError(t, err)
	assert.Equal(t, Down, dir)
	assert.Less(t, x, 0.0)

	// Replaying the same stream gives the same magnitude.
	y, _, _ := m.Sample(Up, NewRand(8))
	assert.Equal(t, x, y)
}

func TestGaussianDownKeepsDirection(t *testing.T) {
	m, err := NewGaussian(GaussianParams{MuUp: 0.01, SigmaUp: 0.01, MuDown: 0.5, SigmaDown: 0.01})
	require.NoError(t, err)

	x, dir, err := m.Sample(Down, NewRand(8))
	require.NoError(t, err)
	assert.Equal(t, Down, dir)
	assert.Greater(t, x, 0.0)
}

func TestUniformWithinBounds(t *testing.T) {
	m, err := NewUniform(UniformParams{AUp: 0.01, BUp: 0.02, ADown: -0.03, BDown: -0.01})
	require.NoError(t, err)
	rng := NewRand(2)
	for i := 0; i < 5000; i++ {
		x, dir, err := m.Sample(Up, rng)
		require.NoError(t, err)
		require.Equal(t, Up, dir)
		require.True(t, x >= 0.01 && x < 0.02)

		x, dir, _ = m.Sample(Down, rng)
		require.Equal(t, Down, dir)
		require.True(t, x >= -0.03 && x < -0.01)
	}
}

func TestMovementValidation(t *testing.T) {
	_, err := NewGaussian(GaussianParams{SigmaUp: 0, SigmaDown: 1})
	assert.True(t, IsConfigurationError(err))

	_, err = NewUniform(UniformParams{AUp: 1, BUp: 1, ADown: -1, BDown: 0})
	assert.True(t, IsConfigurationError(err))

	for _, p := range []LevyParams{
		{Alpha: 0, Beta: 0, Gamma: 1},
		{Alpha: 2.1, Beta: 0, Gamma: 1},
		{Alpha: 1.5, Beta: 1.5, Gamma: 1},
		{Alpha: 1.5, Beta: 0, Gamma: 0},
	} {
		_, err = NewLevyStable(p)
		assert.True(t, IsConfigurationError(err), "%+v", p)
	}
}

func TestMovementJSON(t *testing.T) {
	var m Movement
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"uniform","uniform":{"a_up":0,"b_up":0.1,"a_down":-0.1,"b_down":0}}`), &m))
	assert.Equal(t, KindUniform, m.Kind())
	p, ok := m.Uniform()
	require.True(t, ok)
	assert.Equal(t, 0.1, p.BUp)

	err := json.Unmarshal([]byte(`{"kind":"gaussian"}`), &m)
	assert.True(t, IsConfigurationError(err))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("levy")
	require.NoError(t, err)
	assert.Equal(t, KindLevyStable, k)

	_, err = ParseKind("cauchy")
	assert.Error(t, err)
}
