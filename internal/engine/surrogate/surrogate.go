// Package surrogate provides a small deterministic stand-in for the
// projection engine.
//
// It tracks one prevalence per (assigned sex, risk group) and advances it
// with a closed-form annual infection probability driven by the injected
// transmission, contact-rate, assortativity, mixing-level and PWID inputs.
// Output buffers are filled from that trajectory with fixed population
// weights. Age structure is not modeled: the age-mixing tensor is
// shape-checked and retained only.
//
// It exists so the calibration pipeline can run end to end without the
// external engine. It is not an epidemic model.
package surrogate

import (
	"errors"
	"fmt"
	"math"

	"github.com/goalsarm/goalsfit/internal/dims"
	"github.com/goalsarm/goalsfit/internal/engine"
	"github.com/goalsarm/goalsfit/internal/ndarray"
)

const (
	adultScale   = 1000.0
	birthsTotal  = 2000.0
	exitRate     = 0.08
	deathShare   = 0.05
	childHIVRate = 0.3
	maleCircumc  = 0.4
)

// popWeights is the share of each sex in each risk group.
var popWeights = [dims.NSex][dims.NPop]float64{
	dims.Female: {0.15, 0.2, 0.4, 0.2, 0.01, 0.04, 0, 0, 0},
	dims.Male:   {0.15, 0.2, 0.35, 0.2, 0.02, 0, 0.05, 0.02, 0.01},
}

// ErrNotInitialized is returned by Project when an input was never set.
var ErrNotInitialized = errors.New("engine input not initialized")

type state [dims.NSex][dims.NPop]float64

// Engine is the surrogate projection engine.
type Engine struct {
	yearFirst, yearFinal int

	tr        *engine.Transmission
	seedIndex int
	seedPrev  float64
	seedSet   bool
	rate      *ndarray.Dense
	ageMix    *ndarray.Dense
	assort    *ndarray.Dense
	mixLevels *ndarray.Dense
	pwid      []float64
	fert      *engine.Fertility

	prev         []state
	inc          []state
	validThrough int

	// Projections counts calls to Project that recomputed at least one year.
	Projections int
}

var _ engine.Engine = (*Engine)(nil)

// New returns a surrogate for the projection window yearFirst..yearFinal.
func New(yearFirst, yearFinal int) (*Engine, error) {
	if yearFinal < yearFirst {
		return nil, fmt.Errorf("final year %d before first year %d", yearFinal, yearFirst)
	}
	n := yearFinal - yearFirst + 1
	return &Engine{
		yearFirst:    yearFirst,
		yearFinal:    yearFinal,
		prev:         make([]state, n),
		inc:          make([]state, n),
		validThrough: -1,
	}, nil
}

func (e *Engine) years() int { return e.yearFinal - e.yearFirst + 1 }

func (e *Engine) InitTransmission(tr engine.Transmission) error {
	for _, v := range []float64{tr.F2M, tr.M2F, tr.M2M} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("transmission rate %g must be non-negative", v)
		}
	}
	e.tr = &tr
	return nil
}

func (e *Engine) InitEpidemicSeed(yearIndex int, prevalence float64) error {
	if yearIndex < 0 || yearIndex >= e.years() {
		return fmt.Errorf("seed year index %d outside projection", yearIndex)
	}
	if prevalence < 0 || prevalence >= 1 || math.IsNaN(prevalence) {
		return fmt.Errorf("seed prevalence %g outside [0, 1)", prevalence)
	}
	e.seedIndex, e.seedPrev, e.seedSet = yearIndex, prevalence, true
	return nil
}

func (e *Engine) InitPartnerRate(rate *ndarray.Dense) error {
	if err := rate.CheckShape(e.years(), dims.NSex, dims.NAgeAdult, dims.NPop); err != nil {
		return fmt.Errorf("partner rate: %w", err)
	}
	e.rate = rate.Clone()
	return nil
}

func (e *Engine) InitAgeMixing(mix *ndarray.Dense) error {
	if err := mix.CheckShape(dims.NSex, dims.NAgeAdult, dims.NSex, dims.NAgeAdult); err != nil {
		return fmt.Errorf("age mixing: %w", err)
	}
	e.ageMix = mix.Clone()
	return nil
}

func (e *Engine) InitPopAssort(assort *ndarray.Dense) error {
	if err := assort.CheckShape(dims.NSex, dims.NPop); err != nil {
		return fmt.Errorf("assortativity: %w", err)
	}
	e.assort = assort.Clone()
	return nil
}

func (e *Engine) InitMixLevels(levels *ndarray.Dense) error {
	if err := levels.CheckShape(dims.NSex, dims.NPop, dims.NSex, dims.NPop); err != nil {
		return fmt.Errorf("mixing levels: %w", err)
	}
	e.mixLevels = levels.Clone()
	return nil
}

func (e *Engine) InitPWIDForce(force []float64) error {
	if len(force) != e.years() {
		return fmt.Errorf("PWID force has %d years, want %d", len(force), e.years())
	}
	e.pwid = append([]float64(nil), force...)
	return nil
}

func (e *Engine) InitHIVFertility(f engine.Fertility) error {
	if err := f.Age.CheckShape(e.years(), dims.NAgeFert); err != nil {
		return fmt.Errorf("fertility by age: %w", err)
	}
	if len(f.CD4) != dims.NHIVAdult || len(f.ART) != dims.NAgeFert {
		return fmt.Errorf("fertility ratios: %d CD4 and %d ART entries", len(f.CD4), len(f.ART))
	}
	e.fert = &engine.Fertility{
		Age: f.Age.Clone(),
		CD4: append([]float64(nil), f.CD4...),
		ART: append([]float64(nil), f.ART...),
	}
	return nil
}

func (e *Engine) Invalidate(year int) {
	if year < 0 {
		e.validThrough = -1
		return
	}
	e.validThrough = min(e.validThrough, year-e.yearFirst-1)
}

func (e *Engine) checkReady() error {
	missing := func(name string) error { return fmt.Errorf("%w: %s", ErrNotInitialized, name) }
	switch {
	case e.tr == nil:
		return missing("transmission")
	case !e.seedSet:
		return missing("epidemic seed")
	case e.rate == nil:
		return missing("partner rate")
	case e.ageMix == nil:
		return missing("age mixing")
	case e.assort == nil:
		return missing("assortativity")
	case e.mixLevels == nil:
		return missing("mixing levels")
	case e.pwid == nil:
		return missing("PWID force")
	case e.fert == nil:
		return missing("HIV fertility")
	}
	return nil
}

func (e *Engine) Project(yearFinal int, out *engine.Outputs) error {
	if yearFinal < e.yearFirst || yearFinal > e.yearFinal {
		return fmt.Errorf("final year %d outside %d-%d", yearFinal, e.yearFirst, e.yearFinal)
	}
	if err := e.checkReady(); err != nil {
		return err
	}
	if err := out.CheckShape(); err != nil {
		return fmt.Errorf("outputs: %w", err)
	}
	if out.YearFirst != e.yearFirst || out.YearFinal != e.yearFinal {
		return fmt.Errorf("outputs cover %d-%d, engine projects %d-%d", out.YearFirst, out.YearFinal, e.yearFirst, e.yearFinal)
	}

	last := yearFinal - e.yearFirst
	if e.validThrough < last {
		for t := e.validThrough + 1; t <= last; t++ {
			e.step(t)
		}
		e.validThrough = last
		e.Projections++
	}

	out.Reset()
	for t := 0; t <= last; t++ {
		e.write(t, out)
	}
	return nil
}

func (e *Engine) step(t int) {
	var next, inc state
	switch {
	case t < e.seedIndex:
	case t == e.seedIndex:
		for s := range next {
			for r := dims.PopNever; r < dims.NPop; r++ {
				next[s][r] = e.seedPrev
			}
		}
	default:
		prev := e.prev[t-1]
		for s := 0; s < dims.NSex; s++ {
			for r := dims.PopNever; r < dims.NPop; r++ {
				contact, _ := e.rate.SumRange(ndarray.One(t-1), ndarray.One(s), ndarray.All(dims.NAgeAdult), ndarray.One(r))
				a := e.assort.At(s, r)
				partner := a*prev[s][r] + (1-a)*e.mixedPrevalence(prev, s, r)
				p := 1 - math.Exp(-e.beta(s, r)*contact*partner)
				if r == dims.PopPWID {
					p = 1 - (1-p)*math.Exp(-e.pwid[t])
				}
				inc[s][r] = p
				next[s][r] = math.Min(prev[s][r]*(1-exitRate)+(1-prev[s][r])*p, 1)
			}
		}
	}
	e.prev[t], e.inc[t] = next, inc
}

func (e *Engine) beta(s, r int) float64 {
	switch {
	case s == dims.Female:
		return e.tr.M2F
	case r == dims.PopMSM || r == dims.PopTGW:
		return e.tr.M2M
	default:
		return e.tr.F2M
	}
}

func (e *Engine) mixedPrevalence(prev state, s, r int) float64 {
	var num, den float64
	for s2 := 0; s2 < dims.NSex; s2++ {
		for r2 := dims.PopNever; r2 < dims.NPop; r2++ {
			w := e.mixLevels.At(s, r, s2, r2) * popWeights[s2][r2]
			num += w * prev[s2][r2]
			den += w
		}
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func ageWeight(a int) float64 { return math.Exp(-0.03 * float64(a)) }

func (e *Engine) write(t int, out *engine.Outputs) {
	prev, inc := e.prev[t], e.inc[t]
	var before state
	if t > 0 {
		before = e.prev[t-1]
	}

	var femaleHIV, femaleAll float64
	for s := 0; s < dims.NSex; s++ {
		lo, hi := dims.EngineSexRange(s)
		for sm := lo; sm < hi; sm++ {
			share := 1.0
			if s == dims.Male {
				share = 1 - maleCircumc
				if sm == dims.SexMCMaleCirc {
					share = maleCircumc
				}
			}
			for a := 0; a < dims.NAgeAdult; a++ {
				for r := 0; r < dims.NPop; r++ {
					n := adultScale * share * popWeights[s][r] * ageWeight(a)
					hiv := n * prev[s][r]
					out.PopAdultNeg.Set(n-hiv, t, sm, a, r)
					for k := 0; k < dims.NHIVAdult; k++ {
						out.PopAdultHIV.Set(hiv/dims.NHIVAdult, t, sm, a, r, k, 0)
					}
					out.DeathsAdultHIV.Set(deathShare*hiv, t, sm, a, r)
					out.NewInfections.Set(n*(1-before[s][r])*inc[s][r], t, sm, a, r)
					if s == dims.Female && a < 35 {
						femaleHIV += hiv
						femaleAll += n
					}
				}
			}
		}
	}

	var frr float64
	for _, v := range e.fert.Age.Row(t) {
		frr += v / dims.NAgeFert
	}
	exposed := 0.0
	if femaleAll > 0 {
		exposed = birthsTotal * frr * femaleHIV / femaleAll
	}
	out.Births.Set(birthsTotal/2, t, dims.Female)
	out.Births.Set(birthsTotal/2, t, dims.Male)
	out.BirthsExposed.Set(exposed, t)

	for sm := 0; sm < dims.NSexMC; sm++ {
		for a := 0; a < dims.NAgeChild; a++ {
			hiv := childHIVRate * exposed / (dims.NSexMC * dims.NAgeChild)
			out.PopChildHIV.Set(hiv, t, sm, a, 0, 0)
			out.PopChildNeg.Set(birthsTotal/dims.NSexMC-hiv, t, sm, a)
		}
	}
}
