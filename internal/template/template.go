// Package template fills observation-aligned estimate tables from engine
// outputs.
//
// Each Row names a year, a population and gender category, and an adult
// age range. The Filler resolves those labels into engine index ranges
// once per table (rows never change between projections) and then writes
// one estimate per row on every Fill.
package template

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/goalsarm/goalsfit/internal/dims"
	"github.com/goalsarm/goalsfit/internal/engine"
	"github.com/goalsarm/goalsfit/internal/ndarray"
)

// Measure selects the estimate written into a row.
type Measure string

const (
	// Prevalence is HIV+ / (HIV+ + HIV-) among adults in the row's cells.
	Prevalence Measure = "Prevalence"
	// Deaths is the count of HIV-related adult deaths in the row's cells.
	Deaths Measure = "Deaths"
	// ANCPrevalence is the share of births in the row's year that are to
	// HIV-positive mothers.
	ANCPrevalence Measure = "ANCPrevalence"
)

// Row is one observation-aligned estimate. Value is NaN until filled.
type Row struct {
	Year       int
	Population string
	Gender     string
	AgeMin     int
	AgeMax     int
	Measure    Measure
	Value      float64
}

// Table is an ordered set of rows. Only Value is written after
// construction.
type Table struct {
	Rows []Row

	plan []cells
}

// NewTable returns a table with every Value set to NaN.
func NewTable(rows []Row) *Table {
	t := &Table{Rows: rows}
	for i := range t.Rows {
		t.Rows[i].Value = math.NaN()
	}
	return t
}

// Values returns the row values in order.
func (t *Table) Values() []float64 {
	v := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		v[i] = r.Value
	}
	return v
}

// Compiled reports whether index ranges have been resolved.
func (t *Table) Compiled() bool { return t.plan != nil }

// Policy controls how unrecognized category labels are handled.
type Policy int

const (
	// PolicyStrict fails compilation with a LabelError.
	PolicyStrict Policy = iota
	// PolicyWarn logs the label and reuses the index range resolved for
	// the previous row.
	PolicyWarn
)

// ParsePolicy accepts "strict" or "warn".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return PolicyStrict, nil
	case "warn":
		return PolicyWarn, nil
	}
	return PolicyStrict, fmt.Errorf("unknown label policy %q (want strict or warn)", s)
}

func (p Policy) String() string {
	if p == PolicyWarn {
		return "warn"
	}
	return "strict"
}

// LabelError reports an unrecognized population or gender label.
type LabelError struct {
	Row   int
	Field string
	Label string
}

func (e *LabelError) Error() string {
	return fmt.Sprintf("row %d: unrecognized %s %q", e.Row, e.Field, e.Label)
}

// IsLabelError reports whether err wraps a LabelError.
func IsLabelError(err error) bool {
	var le *LabelError
	return errors.As(err, &le)
}

// cells holds the resolved index ranges for one row.
type cells struct {
	year ndarray.Span
	sex  ndarray.Span
	age  ndarray.Span
	pop  ndarray.Span
}

var populations = map[string]ndarray.Span{
	"all":     {Lo: dims.PopNoSex, Hi: dims.NPop},
	"fsw":     ndarray.One(dims.PopFSW),
	"msm":     ndarray.One(dims.PopMSM),
	"tgw":     ndarray.One(dims.PopTGW),
	"pwid":    ndarray.One(dims.PopPWID),
	"clients": ndarray.One(dims.PopClients),
}

var genders = map[string]ndarray.Span{
	"all":    {Lo: dims.SexMCFemale, Hi: dims.NSexMC},
	"women":  sexSpan(dims.Female),
	"female": sexSpan(dims.Female),
	"men":    sexSpan(dims.Male),
	"male":   sexSpan(dims.Male),
}

func sexSpan(s int) ndarray.Span {
	lo, hi := dims.EngineSexRange(s)
	return ndarray.Span{Lo: lo, Hi: hi}
}

func normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(label)))
}

// Filler writes estimates into tables for a fixed projection window.
type Filler struct {
	Policy    Policy
	YearFirst int
	YearFinal int
	Logger    *slog.Logger
}

func (f *Filler) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}

// Compile resolves every row's index ranges. Year and age errors are
// always fatal; label errors follow f.Policy.
func (f *Filler) Compile(t *Table) error {
	plan := make([]cells, len(t.Rows))
	var prev *cells
	for i, r := range t.Rows {
		if r.Year < f.YearFirst || r.Year > f.YearFinal {
			return fmt.Errorf("row %d: year %d outside projection %d-%d", i, r.Year, f.YearFirst, f.YearFinal)
		}
		c := cells{year: ndarray.One(r.Year - f.YearFirst)}

		switch r.Measure {
		case ANCPrevalence:
			plan[i] = c
			prev = &plan[i]
			continue
		case Prevalence, Deaths:
		default:
			return fmt.Errorf("row %d: unknown measure %q", i, r.Measure)
		}

		if r.AgeMin < dims.AgeAdultMin || r.AgeMax > dims.AgeAdultMax || r.AgeMin > r.AgeMax {
			return fmt.Errorf("row %d: age range %d-%d outside %d-%d", i, r.AgeMin, r.AgeMax, dims.AgeAdultMin, dims.AgeAdultMax)
		}
		c.age = ndarray.Span{Lo: r.AgeMin - dims.AgeAdultMin, Hi: r.AgeMax - dims.AgeAdultMin + 1}

		pop, popOK := populations[normalize(r.Population)]
		sex, sexOK := genders[normalize(r.Gender)]
		if !popOK || !sexOK {
			le := &LabelError{Row: i, Field: "population", Label: r.Population}
			if popOK {
				le = &LabelError{Row: i, Field: "gender", Label: r.Gender}
			}
			if f.Policy == PolicyStrict || prev == nil {
				return le
			}
			f.logger().Warn("unrecognized label, reusing previous row ranges", "row", i, "field", le.Field, "label", le.Label)
			if popOK {
				c.pop = pop
			} else {
				c.pop = prev.pop
			}
			if sexOK {
				c.sex = sex
			} else {
				c.sex = prev.sex
			}
		} else {
			c.pop, c.sex = pop, sex
		}

		// The engine tracks transgender women on the male assigned-sex axis.
		if popOK && pop == populations["tgw"] {
			c.sex = sexSpan(dims.AssignedSex(dims.Female, dims.PopTGW))
		}

		plan[i] = c
		prev = &plan[i]
	}
	t.plan = plan
	return nil
}

// Fill writes an estimate into every row, compiling the table first if
// needed.
func (f *Filler) Fill(t *Table, out *engine.Outputs) error {
	if out.YearFirst != f.YearFirst || out.YearFinal < f.YearFinal {
		return fmt.Errorf("outputs cover %d-%d, filler expects %d-%d", out.YearFirst, out.YearFinal, f.YearFirst, f.YearFinal)
	}
	if !t.Compiled() {
		if err := f.Compile(t); err != nil {
			return err
		}
	}

	var anc []float64
	for i := range t.Rows {
		c := t.plan[i]
		switch t.Rows[i].Measure {
		case Prevalence:
			v, err := prevalence(out, c)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			t.Rows[i].Value = v
		case Deaths:
			v, err := out.DeathsAdultHIV.SumRange(c.year, c.sex, c.age, c.pop)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			t.Rows[i].Value = v
		case ANCPrevalence:
			if anc == nil {
				anc = out.ANCPrevalence()
			}
			t.Rows[i].Value = anc[c.year.Lo]
		}
	}
	return nil
}

func prevalence(out *engine.Outputs, c cells) (float64, error) {
	pos, err := out.PopAdultHIV.SumRange(c.year, c.sex, c.age, c.pop)
	if err != nil {
		return 0, err
	}
	neg, err := out.PopAdultNeg.SumRange(c.year, c.sex, c.age, c.pop)
	if err != nil {
		return 0, err
	}
	return pos / (pos + neg), nil
}
