// Package model owns the engine-facing state of one calibration: the raw
// behavioral and epidemiological inputs, the arrays derived from them, and
// the caller-owned projection outputs.
//
// Fields holding raw inputs may be mutated freely between projections.
// Refresh rebuilds every derived array from them and pushes the full input
// set to the engine; nothing is patched incrementally.
package model

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/goalsarm/goalsfit/internal/behavior"
	"github.com/goalsarm/goalsfit/internal/dims"
	"github.com/goalsarm/goalsfit/internal/engine"
	"github.com/goalsarm/goalsfit/internal/ndarray"
	"github.com/goalsarm/goalsfit/internal/workbook"
)

// Model wraps an engine together with the inputs it was configured from.
type Model struct {
	YearFirst int
	YearFinal int

	Transmission engine.Transmission
	SeedTime     int
	SeedPrev     float64

	TimeTrend  *ndarray.Dense
	AgeProfile behavior.AgeProfile
	PopRatios  *ndarray.Dense
	AgePrefs   behavior.AgePrefs
	Assort     *ndarray.Dense
	MixLevels  *ndarray.Dense

	PWIDForce []float64

	FertilityAge *ndarray.Dense
	FertilityCD4 []float64
	FertilityART []float64
	FertilityLAF float64

	Likelihood workbook.LikelihoodParams

	// Derived arrays, in engine layout. Replaced by every Refresh.
	PartnerRate *ndarray.Dense
	AgeMixing   *ndarray.Dense
	PopAssort   *ndarray.Dense
	MixMatrix   *ndarray.Dense

	Outputs *engine.Outputs

	eng       engine.Engine
	projected int
	logger    *slog.Logger
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// New builds a model from a workbook, pushes every input to eng and
// allocates the output buffers. The workbook is not retained.
func New(wb *workbook.Workbook, eng engine.Engine, opts ...Option) (*Model, error) {
	m := &Model{
		YearFirst:    wb.FirstYear,
		YearFinal:    wb.FinalYear,
		Transmission: wb.Transmission,
		SeedTime:     wb.SeedTime,
		SeedPrev:     wb.SeedPrev,
		TimeTrend:    wb.TimeTrend.Clone(),
		AgeProfile:   wb.AgeProfile,
		PopRatios:    wb.PopRatios.Clone(),
		AgePrefs:     wb.AgePrefs,
		Assort:       wb.Assort.Clone(),
		MixLevels:    wb.MixLevels.Clone(),
		PWIDForce:    slices.Clone(wb.PWIDForce),
		FertilityAge: wb.FertilityAge.Clone(),
		FertilityCD4: slices.Clone(wb.FertilityCD4),
		FertilityART: slices.Clone(wb.FertilityART),
		FertilityLAF: wb.FertilityLAF,
		Likelihood:   wb.Likelihood,
		eng:          eng,
		projected:    -1,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	out, err := engine.NewOutputs(m.YearFirst, m.YearFinal)
	if err != nil {
		return nil, err
	}
	m.Outputs = out

	if err := m.Refresh(); err != nil {
		return nil, fmt.Errorf("initialize engine: %w", err)
	}
	return m, nil
}

// Engine returns the wrapped engine.
func (m *Model) Engine() engine.Engine { return m.eng }

// Years returns the number of projection years.
func (m *Model) Years() int { return m.YearFinal - m.YearFirst + 1 }

// inputWindow returns the span of input-year series covered by the
// projection.
func (m *Model) inputWindow() (lo, hi int) {
	lo = m.YearFirst - dims.InputYearFirst
	return lo, lo + m.Years()
}

// Refresh recomputes every derived array from the raw inputs and pushes
// all inputs to the engine. It does not invalidate or project.
func (m *Model) Refresh() error {
	if err := m.eng.InitTransmission(m.Transmission); err != nil {
		return fmt.Errorf("transmission: %w", err)
	}
	if err := m.eng.InitEpidemicSeed(m.SeedTime-m.YearFirst, m.SeedPrev); err != nil {
		return fmt.Errorf("epidemic seed: %w", err)
	}

	ratios, err := behavior.RemapRatios(m.PopRatios)
	if err != nil {
		return err
	}
	rate, err := behavior.PartnerRates(m.TimeTrend, m.AgeProfile, ratios, m.YearFirst, m.YearFinal)
	if err != nil {
		return fmt.Errorf("partner rates: %w", err)
	}
	if err := m.eng.InitPartnerRate(rate); err != nil {
		return fmt.Errorf("partner rates: %w", err)
	}
	m.PartnerRate = rate

	mix, err := behavior.AgeMixing(m.AgePrefs)
	if err != nil {
		return fmt.Errorf("age mixing: %w", err)
	}
	if err := m.eng.InitAgeMixing(mix); err != nil {
		return fmt.Errorf("age mixing: %w", err)
	}
	m.AgeMixing = mix

	assort, err := behavior.RemapAssort(m.Assort)
	if err != nil {
		return err
	}
	if err := m.eng.InitPopAssort(assort); err != nil {
		return fmt.Errorf("assortativity: %w", err)
	}
	m.PopAssort = assort

	levels, err := behavior.RemapMixLevels(m.MixLevels)
	if err != nil {
		return err
	}
	if err := m.eng.InitMixLevels(levels); err != nil {
		return fmt.Errorf("mixing levels: %w", err)
	}
	m.MixMatrix = levels

	lo, hi := m.inputWindow()
	if err := m.eng.InitPWIDForce(m.PWIDForce[lo:hi]); err != nil {
		return fmt.Errorf("PWID force: %w", err)
	}

	if err := m.eng.InitHIVFertility(m.fertility()); err != nil {
		return fmt.Errorf("HIV fertility: %w", err)
	}
	return nil
}

// fertility scales the age and ART rate ratios by the local adjustment
// factor and restricts the age series to the projection years.
func (m *Model) fertility() engine.Fertility {
	lo, _ := m.inputWindow()
	age := ndarray.New(m.Years(), m.FertilityAge.Shape()[1])
	for t := 0; t < m.Years(); t++ {
		src := m.FertilityAge.Row(lo + t)
		dst := age.Row(t)
		for g := range dst {
			dst[g] = src[g] * m.FertilityLAF
		}
	}
	art := make([]float64, len(m.FertilityART))
	for g, v := range m.FertilityART {
		art[g] = v * m.FertilityLAF
	}
	return engine.Fertility{Age: age, CD4: slices.Clone(m.FertilityCD4), ART: art}
}

// Invalidate discards cached projection years from year onward; a negative
// year discards all of them.
func (m *Model) Invalidate(year int) {
	m.eng.Invalidate(year)
	if year < 0 {
		m.projected = -1
	} else {
		m.projected = min(m.projected, year-1)
	}
}

// Project runs the engine through year, writing into m.Outputs.
func (m *Model) Project(year int) error {
	if year < m.YearFirst || year > m.YearFinal {
		return fmt.Errorf("project to %d: outside %d-%d", year, m.YearFirst, m.YearFinal)
	}
	if err := m.eng.Project(year, m.Outputs); err != nil {
		return fmt.Errorf("project to %d: %w", year, err)
	}
	m.projected = year
	m.logger.Debug("projected", "year_first", m.YearFirst, "year_final", year)
	return nil
}

// LastValidYear returns the last projected year, or -1 if no projection is
// current.
func (m *Model) LastValidYear() int { return m.projected }
