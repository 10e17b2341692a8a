package testutil

import (
	"slices"

	"github.com/goalsarm/goalsfit/internal/dims"
	"github.com/goalsarm/goalsfit/internal/engine"
	"github.com/goalsarm/goalsfit/internal/ndarray"
)

// RecordingEngine records every call and keeps a copy of the last value
// passed to each Init method. Project writes nothing unless Fill is set.
type RecordingEngine struct {
	Calls []string

	Transmission engine.Transmission
	SeedIndex    int
	SeedPrev     float64
	PartnerRate  *ndarray.Dense
	AgeMixing    *ndarray.Dense
	PopAssort    *ndarray.Dense
	MixLevels    *ndarray.Dense
	PWIDForce    []float64
	Fertility    engine.Fertility

	Invalidated []int
	Projected   []int

	// Fill, when set, is called by Project to populate the outputs.
	Fill func(e *RecordingEngine, yearFinal int, out *engine.Outputs)

	// ProjectErr, when set, is returned by Project.
	ProjectErr error
}

var _ engine.Engine = (*RecordingEngine)(nil)

// Count returns how many times the named method was called.
func (r *RecordingEngine) Count(method string) int {
	n := 0
	for _, c := range r.Calls {
		if c == method {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (r *RecordingEngine) ResetCalls() {
	r.Calls, r.Invalidated, r.Projected = nil, nil, nil
}

func (r *RecordingEngine) InitTransmission(tr engine.Transmission) error {
	r.Calls = append(r.Calls, "InitTransmission")
	r.Transmission = tr
	return nil
}

func (r *RecordingEngine) InitEpidemicSeed(yearIndex int, prevalence float64) error {
	r.Calls = append(r.Calls, "InitEpidemicSeed")
	r.SeedIndex, r.SeedPrev = yearIndex, prevalence
	return nil
}

func (r *RecordingEngine) InitPartnerRate(rate *ndarray.Dense) error {
	r.Calls = append(r.Calls, "InitPartnerRate")
	r.PartnerRate = rate.Clone()
	return nil
}

func (r *RecordingEngine) InitAgeMixing(mix *ndarray.Dense) error {
	r.Calls = append(r.Calls, "InitAgeMixing")
	r.AgeMixing = mix.Clone()
	return nil
}

func (r *RecordingEngine) InitPopAssort(assort *ndarray.Dense) error {
	r.Calls = append(r.Calls, "InitPopAssort")
	r.PopAssort = assort.Clone()
	return nil
}

func (r *RecordingEngine) InitMixLevels(levels *ndarray.Dense) error {
	r.Calls = append(r.Calls, "InitMixLevels")
	r.MixLevels = levels.Clone()
	return nil
}

func (r *RecordingEngine) InitPWIDForce(force []float64) error {
	r.Calls = append(r.Calls, "InitPWIDForce")
	r.PWIDForce = slices.Clone(force)
	return nil
}

func (r *RecordingEngine) InitHIVFertility(f engine.Fertility) error {
	r.Calls = append(r.Calls, "InitHIVFertility")
	r.Fertility = engine.Fertility{Age: f.Age.Clone(), CD4: slices.Clone(f.CD4), ART: slices.Clone(f.ART)}
	return nil
}

func (r *RecordingEngine) Invalidate(year int) {
	r.Calls = append(r.Calls, "Invalidate")
	r.Invalidated = append(r.Invalidated, year)
}

func (r *RecordingEngine) Project(yearFinal int, out *engine.Outputs) error {
	r.Calls = append(r.Calls, "Project")
	r.Projected = append(r.Projected, yearFinal)
	if r.ProjectErr != nil {
		return r.ProjectErr
	}
	if err := out.CheckShape(); err != nil {
		return err
	}
	if r.Fill != nil {
		r.Fill(r, yearFinal, out)
	}
	return nil
}

// NewLinearEngine returns a recording engine whose outputs are linear in
// the transmission inputs: female prevalence is 0.1·M2F and male
// prevalence is 0.1·F2M in every year, age and risk group, and adult HIV
// deaths in each cell are F2M.
func NewLinearEngine() *RecordingEngine {
	return &RecordingEngine{Fill: FillLinear}
}

// FillLinear is the Fill function used by NewLinearEngine.
func FillLinear(e *RecordingEngine, yearFinal int, out *engine.Outputs) {
	out.Reset()
	prev := [dims.NSex]float64{
		dims.Female: 0.1 * e.Transmission.M2F,
		dims.Male:   0.1 * e.Transmission.F2M,
	}
	for t := 0; t <= yearFinal-out.YearFirst; t++ {
		for s := 0; s < dims.NSex; s++ {
			lo, hi := dims.EngineSexRange(s)
			for sm := lo; sm < hi; sm++ {
				for a := 0; a < dims.NAgeAdult; a++ {
					for r := 0; r < dims.NPop; r++ {
						out.PopAdultHIV.Set(prev[s], t, sm, a, r, 0, 0)
						out.PopAdultNeg.Set(1-prev[s], t, sm, a, r)
						out.DeathsAdultHIV.Set(e.Transmission.F2M, t, sm, a, r)
					}
				}
			}
		}
		out.Births.Set(100, t, dims.Female)
		out.Births.Set(100, t, dims.Male)
		out.BirthsExposed.Set(200*prev[dims.Female], t)
	}
}
