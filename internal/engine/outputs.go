package engine

import (
	"fmt"

	"github.com/goalsarm/goalsfit/internal/dims"
	"github.com/goalsarm/goalsfit/internal/ndarray"
)

// Outputs are the caller-owned buffers a projection writes into. Year axes
// are indexed from YearFirst.
type Outputs struct {
	YearFirst int
	YearFinal int

	// Births is (year × sex).
	Births *ndarray.Dense
	// BirthsExposed counts births to HIV-positive mothers, by year.
	BirthsExposed *ndarray.Dense
	// PopChildNeg is (year × sex MC × child age).
	PopChildNeg *ndarray.Dense
	// PopChildHIV is (year × sex MC × child age × CD4 × care).
	PopChildHIV *ndarray.Dense
	// PopAdultNeg is (year × sex MC × adult age × pop).
	PopAdultNeg *ndarray.Dense
	// PopAdultHIV is (year × sex MC × adult age × pop × CD4 × care).
	PopAdultHIV *ndarray.Dense
	// DeathsAdultHIV is (year × sex MC × adult age × pop).
	DeathsAdultHIV *ndarray.Dense
	// NewInfections is (year × sex MC × adult age × pop).
	NewInfections *ndarray.Dense
}

// NewOutputs allocates zeroed buffers for the projection window.
func NewOutputs(yearFirst, yearFinal int) (*Outputs, error) {
	if yearFinal < yearFirst {
		return nil, fmt.Errorf("final year %d before first year %d", yearFinal, yearFirst)
	}
	n := yearFinal - yearFirst + 1
	return &Outputs{
		YearFirst:      yearFirst,
		YearFinal:      yearFinal,
		Births:         ndarray.New(n, dims.NSex),
		BirthsExposed:  ndarray.New(n),
		PopChildNeg:    ndarray.New(n, dims.NSexMC, dims.NAgeChild),
		PopChildHIV:    ndarray.New(n, dims.NSexMC, dims.NAgeChild, dims.NHIVChild, dims.NDTX),
		PopAdultNeg:    ndarray.New(n, dims.NSexMC, dims.NAgeAdult, dims.NPop),
		PopAdultHIV:    ndarray.New(n, dims.NSexMC, dims.NAgeAdult, dims.NPop, dims.NHIVAdult, dims.NDTX),
		DeathsAdultHIV: ndarray.New(n, dims.NSexMC, dims.NAgeAdult, dims.NPop),
		NewInfections:  ndarray.New(n, dims.NSexMC, dims.NAgeAdult, dims.NPop),
	}, nil
}

// Years returns the number of projection years.
func (o *Outputs) Years() int { return o.YearFinal - o.YearFirst + 1 }

// Named pairs each buffer with its axis labels, in a stable order.
type Named struct {
	Name  string
	Axes  []string
	Array *ndarray.Dense
}

// Arrays lists every buffer with the axis labels used when exporting it.
func (o *Outputs) Arrays() []Named {
	return []Named{
		{"births", []string{"Year", "Sex"}, o.Births},
		{"births-exposed", []string{"Year"}, o.BirthsExposed},
		{"child-neg", []string{"Year", "Sex", "Age"}, o.PopChildNeg},
		{"child-hiv", []string{"Year", "Sex", "Age", "CD4", "ART"}, o.PopChildHIV},
		{"adult-neg", []string{"Year", "Sex", "Age", "Risk"}, o.PopAdultNeg},
		{"adult-hiv", []string{"Year", "Sex", "Age", "Risk", "CD4", "ART"}, o.PopAdultHIV},
		{"new-hiv", []string{"Year", "Sex", "Age", "Risk"}, o.NewInfections},
	}
}

// CheckShape verifies that every buffer has the shape NewOutputs would
// allocate for the same window.
func (o *Outputs) CheckShape() error {
	if o == nil {
		return fmt.Errorf("outputs are nil")
	}
	want, err := NewOutputs(o.YearFirst, o.YearFinal)
	if err != nil {
		return err
	}
	pairs := []struct {
		name      string
		got, want *ndarray.Dense
	}{
		{"births", o.Births, want.Births},
		{"births exposed", o.BirthsExposed, want.BirthsExposed},
		{"child negative", o.PopChildNeg, want.PopChildNeg},
		{"child HIV", o.PopChildHIV, want.PopChildHIV},
		{"adult negative", o.PopAdultNeg, want.PopAdultNeg},
		{"adult HIV", o.PopAdultHIV, want.PopAdultHIV},
		{"adult HIV deaths", o.DeathsAdultHIV, want.DeathsAdultHIV},
		{"new infections", o.NewInfections, want.NewInfections},
	}
	for _, p := range pairs {
		if err := p.got.CheckShape(p.want.Shape()...); err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
	}
	return nil
}

// Reset zeroes every buffer.
func (o *Outputs) Reset() {
	for _, a := range []*ndarray.Dense{
		o.Births, o.BirthsExposed, o.PopChildNeg, o.PopChildHIV,
		o.PopAdultNeg, o.PopAdultHIV, o.DeathsAdultHIV, o.NewInfections,
	} {
		a.Fill(0)
	}
}

// ANCPrevalence returns births to HIV-positive mothers as a share of all
// births, by projection year. Years without births report 0.
func (o *Outputs) ANCPrevalence() []float64 {
	prev := make([]float64, o.Years())
	for t := range prev {
		total := o.Births.At(t, dims.Female) + o.Births.At(t, dims.Male)
		if total > 0 {
			prev[t] = o.BirthsExposed.At(t) / total
		}
	}
	return prev
}
