package markov

import (
	"encoding/json"
	"fmt"
	"math"
)

// ColumnTolerance is the allowed deviation of a column sum from 1.
const ColumnTolerance = 1e-6

// TransitionMatrix is a validated column-stochastic 2x2 matrix indexed [next][current].
// The zero value is not valid; use NewTransitionMatrix.
type TransitionMatrix struct {
	q [2][2]float64
}

// NewTransitionMatrix validates q, where q[next][current] is the probability of moving to next
// given current.
func NewTransitionMatrix(q [2][2]float64) (TransitionMatrix, error) {
	for next := Up; next <= Down; next++ {
		for cur := Up; cur <= Down; cur++ {
			v := q[next][cur]
			if math.IsNaN(v) || v < 0 || v > 1 {
				return TransitionMatrix{}, configErr(fmt.Sprintf("Q[%s][%s]", next, cur), v, "must be within [0,1]")
			}
		}
	}
	for cur := Up; cur <= Down; cur++ {
		sum := q[Up][cur] + q[Down][cur]
		if math.Abs(sum-1) > ColumnTolerance {
			return TransitionMatrix{}, configErr(fmt.Sprintf("column %s", cur), sum, "must sum to 1")
		}
	}
	return TransitionMatrix{q: q}, nil
}

// MustTransitionMatrix is NewTransitionMatrix for static values; it panics on invalid input.
func MustTransitionMatrix(q [2][2]float64) TransitionMatrix {
	m, err := NewTransitionMatrix(q)
	if err != nil {
		panic(err)
	}
	return m
}

// At returns P(next | current).
func (m TransitionMatrix) At(next, current Direction) float64 {
	return m.q[next][current]
}

// Array returns a copy of the underlying [next][current] entries.
func (m TransitionMatrix) Array() [2][2]float64 { return m.q }

// ColumnSums returns the sums of the Up and Down columns.
func (m TransitionMatrix) ColumnSums() (up, down float64) {
	return m.q[Up][Up] + m.q[Down][Up], m.q[Up][Down] + m.q[Down][Down]
}

// IsZero reports whether m was never constructed.
func (m TransitionMatrix) IsZero() bool { return m.q == [2][2]float64{} }

// FixedPoint returns the stationary distribution of the chain.
func (m TransitionMatrix) FixedPoint() (piUp, piDown float64, err error) {
	upGivenDown := m.q[Up][Down]
	downGivenUp := m.q[Down][Up]
	den := upGivenDown + downGivenUp
	if den == 0 {
		return 0, 0, &DegenerateChainError{UpGivenDown: upGivenDown, DownGivenUp: downGivenUp}
	}
	return upGivenDown / den, downGivenUp / den, nil
}

func (m TransitionMatrix) String() string {
	return fmt.Sprintf("[[%g %g] [%g %g]]", m.q[0][0], m.q[0][1], m.q[1][0], m.q[1][1])
}

// MarshalJSON encodes the matrix as [[up|up, up|down], [down|up, down|down]].
func (m TransitionMatrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.q)
}

// UnmarshalJSON decodes and validates the matrix.
func (m *TransitionMatrix) UnmarshalJSON(b []byte) error {
	var q [2][2]float64
	if err := json.Unmarshal(b, &q); err != nil {
		return err
	}
	v, err := NewTransitionMatrix(q)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
