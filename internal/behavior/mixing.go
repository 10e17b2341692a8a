package behavior

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/goalsarm/goalsfit/internal/dims"
	"github.com/goalsarm/goalsfit/internal/ndarray"
)

// AgePrefs holds the partner age-gap moments.
type AgePrefs struct {
	// DiffMean and DiffVar describe the male-minus-female age gap in
	// opposite-sex partnerships.
	DiffMean float64
	DiffVar  float64

	// MaleVar is the variance of the age gap in male-male partnerships,
	// whose mean is 0.
	MaleVar float64
}

type cdf interface {
	CDF(x float64) float64
}

// AgeMixing builds the (sex × age × partner sex × partner age) partner age
// preference tensor. Every row with positive mass sums to 1; rows without
// mass, the top age row and the female-female block are all zero.
func AgeMixing(p AgePrefs) (*ndarray.Dense, error) {
	oppo, err := FitFisk(p.DiffMean, p.DiffVar)
	if err != nil {
		return nil, err
	}
	if !(p.MaleVar > 0) || math.IsInf(p.MaleVar, 0) {
		return nil, fmt.Errorf("%w: male-male variance %g must be positive", ErrInvalidMoments, p.MaleVar)
	}
	same := distuv.Normal{Mu: 0, Sigma: math.Sqrt(p.MaleVar)}

	oppoRaw := gapWeights(oppo)
	sameRaw := gapWeights(same)

	n := dims.NAgeAdult
	mix := ndarray.New(dims.NSex, n, dims.NSex, n)
	col := make([]float64, n)
	for b := 0; b < n-1; b++ {
		normalizeInto(mix.Row(dims.Female, b, dims.Male), oppoRaw.Row(b))
		for a := range col {
			col[a] = oppoRaw.At(a, b)
		}
		normalizeInto(mix.Row(dims.Male, b, dims.Female), col)
		normalizeInto(mix.Row(dims.Male, b, dims.Male), sameRaw.Row(b))
	}
	return mix, nil
}

// gapWeights discretizes an age-gap distribution into an (age × partner
// age) matrix of unnormalized weights. Row and column for the open top age
// are left at 0.
func gapWeights(d cdf) *ndarray.Dense {
	n := dims.NAgeAdult
	raw := ndarray.New(n, n)
	for b := 0; b < n-1; b++ {
		a := dims.AgeAdultMin + b
		row := raw.Row(b)
		prev := d.CDF(float64(dims.AgeAdultMin - a))
		for j := 0; j < n-1; j++ {
			next := d.CDF(float64(dims.AgeAdultMin - a + j + 1))
			row[j] = next - prev
			prev = next
		}
	}
	return raw
}

// normalizeInto writes src/sum(src) into dst. A zero-mass src leaves dst
// untouched (all zero).
func normalizeInto(dst, src []float64) {
	total := floats.Sum(src)
	if total <= 0 {
		return
	}
	floats.ScaleTo(dst, 1/total, src)
}
