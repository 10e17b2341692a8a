package behavior

import (
	"errors"
	"fmt"
	"math"
)

// GapShift is the location of the opposite-sex age-gap distribution.
// Partnerships where the woman is more than ten years older than the man
// are treated as negligible.
const GapShift = -10.0

// fiskIterations is fixed: the equation below is well conditioned on
// (0, π/2) and five Newton steps reach machine precision for realistic
// targets.
const fiskIterations = 5

// ErrInvalidMoments reports target moments for which the Fisk fit is
// undefined.
var ErrInvalidMoments = errors.New("invalid age-gap moments")

// Fisk is a shifted log-logistic distribution.
type Fisk struct {
	Shape float64
	Scale float64
	Loc   float64
}

// FitFisk returns the shifted Fisk distribution with the given mean and
// variance.
//
// With m = mean - GapShift and t = m²/(m²+v), the shape c and scale satisfy
// x·cot(x) = t where x = π/c, and scale = m·sin(x)/x. The equation is
// solved by Newton-Raphson from x = π/2 - t.
func FitFisk(mean, variance float64) (Fisk, error) {
	m := mean - GapShift
	if !(variance > 0) || math.IsInf(variance, 0) {
		return Fisk{}, fmt.Errorf("%w: variance %g must be positive", ErrInvalidMoments, variance)
	}
	if !(m > 0) || math.IsInf(m, 0) {
		return Fisk{}, fmt.Errorf("%w: mean %g must exceed %g", ErrInvalidMoments, mean, GapShift)
	}

	target := m * m / (m*m + variance)
	x := 0.5*math.Pi - target
	for range fiskIterations {
		cot := 1 / math.Tan(x)
		csc := 1 / math.Sin(x)
		fx := x*cot - target
		dx := cot - x*csc*csc
		x -= fx / dx
	}
	if math.IsNaN(x) || x <= 0 || x >= 0.5*math.Pi {
		return Fisk{}, fmt.Errorf("%w: no finite-variance fit for mean %g variance %g", ErrInvalidMoments, mean, variance)
	}

	return Fisk{
		Shape: math.Pi / x,
		Scale: m * math.Sin(x) / x,
		Loc:   GapShift,
	}, nil
}

// CDF evaluates the cumulative distribution function at x.
func (f Fisk) CDF(x float64) float64 {
	if x <= f.Loc {
		return 0
	}
	return 1 / (1 + math.Pow((x-f.Loc)/f.Scale, -f.Shape))
}

// Mean returns the distribution mean. It is finite for Shape > 1.
func (f Fisk) Mean() float64 {
	b := math.Pi / f.Shape
	return f.Loc + f.Scale*b/math.Sin(b)
}

// Variance returns the distribution variance. It is finite for Shape > 2.
func (f Fisk) Variance() float64 {
	b := math.Pi / f.Shape
	return f.Scale * f.Scale * (2*b/math.Sin(2*b) - b*b/(math.Sin(b)*math.Sin(b)))
}
