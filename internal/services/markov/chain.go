package markov

import "math/rand/v2"

// Next draws the direction following state. The weights are column state of q and exactly one
// uniform variate is consumed.
func Next(state Direction, q TransitionMatrix, rng *rand.Rand) Direction {
	wUp := q.At(Up, state)
	wDown := q.At(Down, state)
	if rng.Float64()*(wUp+wDown) < wUp {
		return Up
	}
	return Down
}
