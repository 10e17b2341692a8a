package engine

import (
	"github.com/goalsarm/goalsfit/internal/ndarray"
)

// Transmission holds the per-act transmission parameters.
type Transmission struct {
	F2M           float64 `json:"f2m"`
	M2F           float64 `json:"m2f"`
	M2M           float64 `json:"m2m"`
	Primary       float64 `json:"primary"`
	Chronic       float64 `json:"chronic"`
	Symptom       float64 `json:"symptom"`
	ARTSuppressed float64 `json:"art_vs"`
	ARTFailing    float64 `json:"art_vf"`
}

// Fertility holds HIV fertility rate ratios.
type Fertility struct {
	// Age is (projection year × fertility age group) for women not on ART.
	Age *ndarray.Dense
	// CD4 is indexed by CD4 stage.
	CD4 []float64
	// ART is indexed by fertility age group.
	ART []float64
}

// Engine is the projection engine call contract.
type Engine interface {
	InitTransmission(tr Transmission) error

	// InitEpidemicSeed sets the seeding year, as an index from the first
	// projection year, and the initial prevalence.
	InitEpidemicSeed(yearIndex int, prevalence float64) error

	// InitPartnerRate takes a (year × sex × age × pop) contact-rate array.
	InitPartnerRate(rate *ndarray.Dense) error

	// InitAgeMixing takes a (sex × age × sex × age) preference tensor.
	InitAgeMixing(mix *ndarray.Dense) error

	// InitPopAssort takes a (sex × pop) assortativity matrix.
	InitPopAssort(assort *ndarray.Dense) error

	// InitMixLevels takes a (sex × pop × sex × pop) mixing-level matrix.
	InitMixLevels(levels *ndarray.Dense) error

	// InitPWIDForce takes the per-year force of infection from injection.
	InitPWIDForce(force []float64) error

	InitHIVFertility(f Fertility) error

	// Invalidate discards cached projection state from year onward, or
	// all of it when year is negative.
	Invalidate(year int)

	// Project runs the projection through yearFinal, writing into out.
	Project(yearFinal int, out *Outputs) error
}
