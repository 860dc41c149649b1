package markov

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var calibratedQ = [2][2]float64{{0.50183452, 0.53757696}, {0.49816548, 0.46242304}}

func calibratedSimulator(t *testing.T, seed uint64, opts ...Option) *Simulator {
	t.Helper()
	m, err := NewLevyStable(calibratedLevy)
	require.NoError(t, err)
	opts = append([]Option{WithSeed(seed)}, opts...)
	s, err := NewSimulator("AAPL", 50, MustTransitionMatrix(calibratedQ), m, opts...)
	require.NoError(t, err)
	return s
}

// Reference prices from an independent replay of the PCG stream. The tolerance only absorbs
// platform differences in the transcendental functions.
func TestMoveRegression(t *testing.T) {
	s := calibratedSimulator(t, 42)
	price, err := s.Move(2500)
	require.NoError(t, err)
	assert.Equal(t, 2500, s.N())
	assert.InEpsilon(t, 2.07981821623313, price, 1e-9)

	short := calibratedSimulator(t, 42)
	price, err = short.Move(10)
	require.NoError(t, err)
	assert.InEpsilon(t, 47.35271225240208, price, 1e-9)

	for seed, want := range map[uint64]float64{7: 9.468480758371616, 1: 64.39687745155456} {
		price, err := calibratedSimulator(t, seed).Move(2500)
		require.NoError(t, err)
		assert.InEpsilon(t, want, price, 1e-9, "seed %d", seed)
	}
}

func TestMoveIsReproducible(t *testing.T) {
	a, err := calibratedSimulator(t, 99).Move(500)
	require.NoError(t, err)
	b, err := calibratedSimulator(t, 99).Move(500)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMoveSplitEqualsWhole(t *testing.T) {
	whole, err := calibratedSimulator(t, 5).Move(300)
	require.NoError(t, err)

	s := calibratedSimulator(t, 5)
	_, err = s.Move(100)
	require.NoError(t, err)
	split, err := s.Move(200)
	require.NoError(t, err)
	assert.Equal(t, whole, split)
}

func TestStepCounter(t *testing.T) {
	s := calibratedSimulator(t, 1)
	_, err := s.Move(0)
	require.NoError(t, err)
	assert.Zero(t, s.N())
	assert.Equal(t, 50.0, s.Price())

	_, err = s.Move(37)
	require.NoError(t, err)
	assert.Equal(t, 37, s.N())

	_, err = s.Move(-1)
	assert.True(t, IsConfigurationError(err))
}

func TestAbsorbingPrice(t *testing.T) {
	// Every step draws a return below -1, so the first step crosses zero.
	m, err := NewUniform(UniformParams{AUp: -3, BUp: -2, ADown: -3, BDown: -2})
	require.NoError(t, err)
	s, err := NewSimulator("X", 10, MustTransitionMatrix([2][2]float64{{0.5, 0.5}, {0.5, 0.5}}), m, WithSeed(1), WithPathRecording())
	require.NoError(t, err)

	price, err := s.Move(1)
	require.NoError(t, err)
	assert.LessOrEqual(t, price, 0.0)
	assert.True(t, s.Frozen())

	dir := s.Direction()
	price, err = s.Move(100)
	require.NoError(t, err)
	assert.Equal(t, 1, s.N())
	assert.Equal(t, dir, s.Direction())
	assert.Len(t, s.Path(), 1)

	advanced, err := s.Step()
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, price, s.Price())
}

func TestLevyPathNeverCrossesZeroInOneStep(t *testing.T) {
	s := calibratedSimulator(t, 13, WithPathRecording())
	_, err := s.Move(3000)
	require.NoError(t, err)

	prev := 50.0
	for _, st := range s.Path() {
		require.GreaterOrEqual(t, st.Price, 0.0)
		require.InDelta(t, prev*(1+st.Magnitude), st.Price, 1e-9*prev)
		prev = st.Price
	}
}

func TestPathRecording(t *testing.T) {
	s := calibratedSimulator(t, 42, WithPathRecording())
	price, err := s.Move(25)
	require.NoError(t, err)

	path := s.Path()
	require.Len(t, path, 25)
	for i, st := range path {
		assert.Equal(t, i+1, st.N)
	}
	assert.Equal(t, price, path[len(path)-1].Price)

	assert.Nil(t, calibratedSimulator(t, 42).Path())
}

func TestSamplingErrorLeavesPrice(t *testing.T) {
	m, err := NewLevyStable(LevyParams{Alpha: 2, Beta: 0, Delta: 1000, Gamma: 0.001})
	require.NoError(t, err)
	q := MustTransitionMatrix([2][2]float64{{0, 0}, {1, 1}})
	s, err := NewSimulator("X", 10, q, m, WithSeed(1), WithMaxDraws(20))
	require.NoError(t, err)

	price, err := s.Move(5)
	require.Error(t, err)
	assert.True(t, IsSamplingError(err))
	assert.Equal(t, 10.0, price)
	assert.Equal(t, 1, s.N())
	assert.Equal(t, Down, s.Direction())
}

func TestNewSimulatorValidation(t *testing.T) {
	m, err := NewLevyStable(calibratedLevy)
	require.NoError(t, err)
	q := MustTransitionMatrix(calibratedQ)

	for _, p := range []float64{0, -1} {
		_, err = NewSimulator("X", p, q, m)
		assert.True(t, IsConfigurationError(err))
	}
	_, err = NewSimulator("X", 1, TransitionMatrix{}, m)
	assert.True(t, IsConfigurationError(err))
	_, err = NewSimulator("X", 1, q, Movement{})
	assert.True(t, IsConfigurationError(err))
}

func TestWithDirectionDown(t *testing.T) {
	m, err := NewLevyStable(calibratedLevy)
	require.NoError(t, err)
	s, err := NewSimulator("X", 1, MustTransitionMatrix(calibratedQ), m, WithDirection(Down))
	require.NoError(t, err)
	assert.Equal(t, Down, s.Direction())
}

func TestGaussianUpFlipDrivesPrice(t *testing.T) {
	m, err := NewGaussian(GaussianParams{MuUp: -0.5, SigmaUp: 0.01, MuDown: -0.01, SigmaDown: 0.01})
	require.NoError(t, err)
	alwaysUp := MustTransitionMatrix([2][2]float64{{1, 1}, {0, 0}})
	s, err := NewSimulator("X", 50, alwaysUp, m, WithSeed(5), WithPathRecording())
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		moved, err := s.Step()
		require.NoError(t, err)
		require.True(t, moved)
		require.Equal(t, Down, s.Direction(), "negative draw from Up ends the step Down")
	}

	prev := 50.0
	for _, st := range s.Path() {
		require.Equal(t, Down, st.Direction)
		require.Less(t, st.Magnitude, 0.0)
		require.InDelta(t, prev*(1+st.Magnitude), st.Price, 1e-12*prev)
		prev = st.Price
	}
	assert.Equal(t, prev, s.Price())
}

func TestGaussianDownPositiveDrawStaysDown(t *testing.T) {
	m, err := NewGaussian(GaussianParams{MuUp: 0.01, SigmaUp: 0.01, MuDown: 0.5, SigmaDown: 0.01})
	require.NoError(t, err)
	alwaysDown := MustTransitionMatrix([2][2]float64{{0, 0}, {1, 1}})
	s, err := NewSimulator("X", 50, alwaysDown, m, WithSeed(5), WithPathRecording())
	require.NoError(t, err)

	price, err := s.Move(20)
	require.NoError(t, err)
	assert.Equal(t, Down, s.Direction())

	prev := 50.0
	for _, st := range s.Path() {
		require.Equal(t, Down, st.Direction)
		require.Greater(t, st.Magnitude, 0.0)
		require.InDelta(t, prev*(1+st.Magnitude), st.Price, 1e-12*prev)
		prev = st.Price
	}
	assert.Equal(t, prev, price)
	assert.Greater(t, price, 50.0)
}
