package service

import "math"

const (
	// DefaultZ is the normal quantile for a ~95% lower bound.
	DefaultZ = 1.96

	// NeutralConfidence is reported when a segment has no votes at all.
	NeutralConfidence = 0.5
)

// Wilson returns the lower bound of the Wilson score interval for the
// proportion of upvotes:
//
//	n = up + down, p = up / n
//	(p + z²/2n − z·√(p(1−p)/n + z²/4n²)) / (1 + z²/n)
//
// It is pessimistic for small n and converges to p as votes accumulate.
func Wilson(up, down int, z float64) float64 {
	n := float64(up + down)
	if n <= 0 {
		return NeutralConfidence
	}

	p := float64(up) / n
	z2 := z * z
	centre := p + z2/(2*n)
	margin := z * math.Sqrt(p*(1-p)/n+z2/(4*n*n))
	lower := (centre - margin) / (1 + z2/n)

	// Floating point can push the bound a hair outside [0,1] at the extremes.
	return math.Min(math.Max(lower, 0), 1)
}
