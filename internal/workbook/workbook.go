package workbook

import (
	"github.com/goalsarm/goalsfit/internal/behavior"
	"github.com/goalsarm/goalsfit/internal/engine"
	"github.com/goalsarm/goalsfit/internal/ndarray"
)

// Workbook holds every model input read from a parameters workbook. Arrays
// are in input layout: time series are indexed from dims.InputYearFirst
// and category matrices are keyed by gender identity without the
// never-had-sex group.
type Workbook struct {
	Path string

	FirstYear int
	FinalYear int

	Transmission engine.Transmission
	SeedTime     int
	SeedPrev     float64

	// TimeTrend is (sex × input year).
	TimeTrend *ndarray.Dense
	AgeProfile behavior.AgeProfile
	// PopRatios is (raw pop × sex).
	PopRatios *ndarray.Dense

	AgePrefs behavior.AgePrefs
	// Assort is (sex × raw pop).
	Assort *ndarray.Dense
	// MixLevels is (sex × raw pop × sex × raw pop).
	MixLevels *ndarray.Dense

	// PWIDForce is indexed by input year.
	PWIDForce []float64

	// FertilityAge is (input year × fertility age group), before the local
	// adjustment factor is applied.
	FertilityAge *ndarray.Dense
	FertilityCD4 []float64
	FertilityART []float64
	FertilityLAF float64

	Likelihood LikelihoodParams

	// Fitting lists every fitting entry, including those with Fit unset.
	Fitting map[string]FitSpec
}

// LikelihoodParams are the ANC likelihood terms.
type LikelihoodParams struct {
	ANCSSBias     float64 `json:"ancss_bias"`
	ANCRTBias     float64 `json:"ancrt_bias"`
	VarInflSite   float64 `json:"var_infl_site"`
	VarInflCensus float64 `json:"var_infl_census"`
}

// FitSpec declares a fittable parameter's initial value and prior.
type FitSpec struct {
	Initial float64 `json:"initial"`
	Prior   string  `json:"prior"`
	Par1    float64 `json:"par1"`
	Par2    float64 `json:"par2"`
	Fit     bool    `json:"fit"`
}

// Years returns the number of projection years.
func (w *Workbook) Years() int { return w.FinalYear - w.FirstYear + 1 }
