package behavior

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/goalsarm/goalsfit/internal/dims"
	"github.com/goalsarm/goalsfit/internal/ndarray"
)

// AgeProfile parameterizes partnership rates by age for each sex: the mean
// age of partnership formation and the concentration of a beta
// distribution over the adult age range.
type AgeProfile struct {
	Mean [dims.NSex]float64
	Size [dims.NSex]float64
}

const ageSpan = float64(dims.AgeAdultMax - dims.AgeAdultMin)

// AgeRatios returns the (sex × adult age) rate ratios implied by p. The top
// age bin is always 0: no new partnerships start at the oldest modeled age.
func AgeRatios(p AgeProfile) (*ndarray.Dense, error) {
	ratios := ndarray.New(dims.NSex, dims.NAgeAdult)
	for s := 0; s < dims.NSex; s++ {
		mean, size := p.Mean[s], p.Size[s]
		if mean <= dims.AgeAdultMin || mean >= dims.AgeAdultMax {
			return nil, fmt.Errorf("sex %d: mean partnership age %g outside (%d, %d)", s, mean, dims.AgeAdultMin, dims.AgeAdultMax)
		}
		if !(size > 0) {
			return nil, fmt.Errorf("sex %d: age profile size %g must be positive", s, size)
		}
		std := (mean - dims.AgeAdultMin) / ageSpan
		dist := distuv.Beta{Alpha: size * std, Beta: size * (1 - std)}

		row := ratios.Row(s)
		prev := dist.CDF(0)
		for a := 0; a < dims.NAgeAdult-1; a++ {
			next := dist.CDF(float64(a+1) / ageSpan)
			row[a] = next - prev
			prev = next
		}
		row[dims.NAgeAdult-1] = 0
	}
	return ratios, nil
}

// PartnerRates computes the (year × sex × adult age × risk group) contact
// rate array for the projection years yearFirst..yearFinal.
//
// trend is the (sex × input year) lifetime-partnership time trend indexed
// from dims.InputYearFirst. ratios is the (risk group × sex) rate-ratio
// matrix in engine layout (see RemapRatios); the never-had-sex column of
// the result is left at 0.
func PartnerRates(trend *ndarray.Dense, profile AgeProfile, ratios *ndarray.Dense, yearFirst, yearFinal int) (*ndarray.Dense, error) {
	if err := trend.CheckShape(dims.NSex, dims.NInputYears); err != nil {
		return nil, fmt.Errorf("partner time trend: %w", err)
	}
	if err := ratios.CheckShape(dims.NPop, dims.NSex); err != nil {
		return nil, fmt.Errorf("partner risk ratios: %w", err)
	}
	if yearFirst < dims.InputYearFirst || yearFinal > dims.InputYearFinal || yearFirst > yearFinal {
		return nil, fmt.Errorf("projection years %d-%d outside %d-%d", yearFirst, yearFinal, dims.InputYearFirst, dims.InputYearFinal)
	}

	age, err := AgeRatios(profile)
	if err != nil {
		return nil, fmt.Errorf("age ratios: %w", err)
	}

	nyrs := yearFinal - yearFirst + 1
	offset := yearFirst - dims.InputYearFirst
	rate := ndarray.New(nyrs, dims.NSex, dims.NAgeAdult, dims.NPop)
	for t := 0; t < nyrs; t++ {
		for s := 0; s < dims.NSex; s++ {
			level := trend.At(s, offset+t)
			for a := 0; a < dims.NAgeAdult; a++ {
				ya := level * age.At(s, a)
				row := rate.Row(t, s, a)
				for r := dims.PopNever; r < dims.NPop; r++ {
					row[r] = ya * ratios.At(r, s)
				}
			}
		}
	}
	return rate, nil
}
