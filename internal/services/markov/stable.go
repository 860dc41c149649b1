package markov

import (
	"math"
	"math/rand/v2"
)

// alphaOneRadius keeps the generator away from the removable singularity at alpha = 1.
const alphaOneRadius = 1e-15

// StableVariate draws one unrestricted value from S(alpha, beta, gamma, delta; 0) using the
// Chambers-Mallows-Stuck construction. It consumes exactly two uniforms (more only if the
// second is exactly zero). alpha = 2 degenerates to a Gaussian with variance 2*gamma^2.
func StableVariate(p LevyParams, rng *rand.Rand) float64 {
	alpha := p.Alpha
	if alpha == 2 {
		return p.Delta + rng.NormFloat64()*math.Sqrt2*p.Gamma
	}
	if math.Abs(alpha-1) < alphaOneRadius {
		if alpha < 1 {
			alpha = 1 - alphaOneRadius
		} else {
			alpha = 1 + alphaOneRadius
		}
	}

	r1 := rng.Float64()
	r2 := rng.Float64()
	for r2 == 0 {
		r2 = rng.Float64()
	}

	a := 1 - alpha
	b := r1 - 0.5
	c := a * b * math.Pi
	e := p.Beta * math.Tan(math.Pi*alpha/2)
	f := math.Pow(-(math.Cos(c)+e*math.Sin(c))/(math.Log(r2)*math.Cos(b*math.Pi)), a/alpha)
	g := math.Tan(math.Pi * b / 2)
	h := math.Tan(c / 2)
	i := 1 - g*g
	j := f * (2*(g-h)*(g*h+1) - (h*i-2*g)*e*2*h)
	k := j/(i*(h*h+1)) + e*(f-1)

	return p.Delta + p.Gamma*k
}
