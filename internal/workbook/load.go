package workbook

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/goalsarm/goalsfit/internal/dims"
	"github.com/goalsarm/goalsfit/internal/engine"
	"github.com/goalsarm/goalsfit/internal/ndarray"
)

//go:embed schema.cue
var schemaSource string

// Error codes for workbook loading.
const (
	ErrCodeRead     = "W001" // File could not be read
	ErrCodeSyntax   = "W002" // CUE syntax or build error
	ErrCodeSchema   = "W003" // Value does not satisfy the schema
	ErrCodeLayout   = "W004" // Array has the wrong size
	ErrCodeInternal = "W099" // Embedded schema failed to build
)

// LoadError reports a workbook that could not be loaded.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load reads and validates the workbook at path.
func Load(path string) (*Workbook, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Message: err.Error()}
	}
	wb, err := Parse(src, path)
	if err != nil {
		return nil, err
	}
	return wb, nil
}

// Parse validates src against the workbook schema and decodes it. filename
// is used in error positions.
func Parse(src []byte, filename string) (*Workbook, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeInternal, Message: err.Error()}
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueError(ErrCodeSyntax, err)
	}

	v = schema.LookupPath(cue.ParsePath("#Workbook")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(ErrCodeSchema, err)
	}

	d := &decoder{root: v}
	wb := d.decode()
	if d.err != nil {
		return nil, d.err
	}
	wb.Path = filename
	return wb, nil
}

// cueError keeps the first error's position, as CUE may report many.
func cueError(code string, err error) *LoadError {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}
	le := &LoadError{Code: code, Message: errs[0].Error()}
	if pos := errors.Positions(errs[0]); len(pos) > 0 {
		le.Pos = pos[0]
	}
	return le
}

// rawPops lists the population keys in raw index order.
var rawPops = [dims.NRawPop]string{"never", "union", "split", "pwid", "fsw", "clients", "msm", "tgw"}

var sexKeys = [dims.NSex]string{dims.Female: "female", dims.Male: "male"}

// decoder walks a validated value, keeping the first error.
type decoder struct {
	root cue.Value
	err  error
}

func (d *decoder) lookup(path string) cue.Value {
	return d.root.LookupPath(cue.ParsePath(path))
}

func (d *decoder) fail(code string, v cue.Value, format string, args ...any) {
	if d.err == nil {
		d.err = &LoadError{Code: code, Message: fmt.Sprintf(format, args...), Pos: v.Pos()}
	}
}

func (d *decoder) number(path string) float64 {
	return d.float(d.lookup(path), path)
}

func (d *decoder) float(v cue.Value, path string) float64 {
	f, err := v.Float64()
	if err != nil {
		d.fail(ErrCodeSchema, v, "%s: %v", path, err)
	}
	return f
}

func (d *decoder) integer(path string) int {
	v := d.lookup(path)
	i, err := v.Int64()
	if err != nil {
		d.fail(ErrCodeSchema, v, "%s: %v", path, err)
	}
	return int(i)
}

func (d *decoder) list(v cue.Value, path string) []float64 {
	it, err := v.List()
	if err != nil {
		d.fail(ErrCodeSchema, v, "%s: %v", path, err)
		return nil
	}
	var out []float64
	for it.Next() {
		out = append(out, d.float(it.Value(), path))
	}
	return out
}

// series expands a scalar or full-length list into one value per input year.
func (d *decoder) series(v cue.Value, path string) []float64 {
	if v.Kind() == cue.ListKind {
		out := d.list(v, path)
		if len(out) != dims.NInputYears && d.err == nil {
			d.fail(ErrCodeLayout, v, "%s: %d values, want %d", path, len(out), dims.NInputYears)
		}
		return out
	}
	x := d.float(v, path)
	out := make([]float64, dims.NInputYears)
	for i := range out {
		out[i] = x
	}
	return out
}

func (d *decoder) decode() *Workbook {
	wb := &Workbook{
		FirstYear: d.integer("config.first_year"),
		FinalYear: d.integer("config.final_year"),
		Transmission: engine.Transmission{
			F2M:           d.number("epi.transmit.f2m"),
			M2F:           d.number("epi.transmit.m2f"),
			M2M:           d.number("epi.transmit.m2m"),
			Primary:       d.number("epi.transmit.primary"),
			Chronic:       d.number("epi.transmit.chronic"),
			Symptom:       d.number("epi.transmit.symptom"),
			ARTSuppressed: d.number("epi.transmit.art_vs"),
			ARTFailing:    d.number("epi.transmit.art_vf"),
		},
		SeedTime: d.integer("epi.seed.time"),
		SeedPrev: d.number("epi.seed.prev"),
	}

	wb.TimeTrend = ndarray.New(dims.NSex, dims.NInputYears)
	for s, key := range sexKeys {
		path := "partners.time_trend." + key
		copy(wb.TimeTrend.Row(s), d.series(d.lookup(path), path))
		wb.AgeProfile.Mean[s] = d.number("partners.age.mean." + key)
		wb.AgeProfile.Size[s] = d.number("partners.age.size." + key)
	}

	wb.PopRatios = ndarray.New(dims.NRawPop, dims.NSex)
	wb.Assort = ndarray.New(dims.NSex, dims.NRawPop)
	for r, pop := range rawPops {
		for s, key := range sexKeys {
			wb.PopRatios.Set(d.number("partners.pop_ratios."+pop+"."+key), r, s)
			wb.Assort.Set(d.number("mixing.assort."+pop+"."+key), s, r)
		}
	}

	wb.AgePrefs.DiffMean = d.number("mixing.age.diff_mean")
	wb.AgePrefs.DiffVar = d.number("mixing.age.diff_var")
	wb.AgePrefs.MaleVar = d.number("mixing.age.msm_var")
	wb.MixLevels = d.mixLevels(d.lookup("mixing.levels"))

	wb.PWIDForce = d.series(d.lookup("pwid_force"), "pwid_force")

	wb.FertilityAge = ndarray.New(dims.NInputYears, dims.NAgeFert)
	it, err := d.lookup("fertility.age").List()
	if err != nil {
		d.fail(ErrCodeSchema, d.lookup("fertility.age"), "fertility.age: %v", err)
	} else {
		for g := 0; it.Next(); g++ {
			vals := d.series(it.Value(), fmt.Sprintf("fertility.age[%d]", g))
			for y, x := range vals {
				if g < dims.NAgeFert && y < dims.NInputYears {
					wb.FertilityAge.Set(x, y, g)
				}
			}
		}
	}
	wb.FertilityCD4 = d.list(d.lookup("fertility.cd4"), "fertility.cd4")
	wb.FertilityART = d.list(d.lookup("fertility.art"), "fertility.art")
	wb.FertilityLAF = d.number("fertility.laf")

	if err := d.lookup("likelihood").Decode(&wb.Likelihood); err != nil {
		d.fail(ErrCodeSchema, d.lookup("likelihood"), "likelihood: %v", err)
	}
	if err := d.lookup("fitting").Decode(&wb.Fitting); err != nil {
		d.fail(ErrCodeSchema, d.lookup("fitting"), "fitting: %v", err)
	}
	return wb
}

func (d *decoder) mixLevels(v cue.Value) *ndarray.Dense {
	levels := ndarray.New(dims.NSex, dims.NRawPop, dims.NSex, dims.NRawPop)
	if v.Kind() != cue.ListKind {
		levels.Fill(d.float(v, "mixing.levels"))
		return levels
	}
	const width = dims.NSex * dims.NRawPop
	rows, err := v.List()
	if err != nil {
		d.fail(ErrCodeSchema, v, "mixing.levels: %v", err)
		return levels
	}
	for i := 0; rows.Next(); i++ {
		row := d.list(rows.Value(), "mixing.levels")
		if len(row) != width {
			d.fail(ErrCodeLayout, rows.Value(), "mixing.levels row %d: %d values, want %d", i, len(row), width)
			return levels
		}
		for j, x := range row {
			levels.Set(x, i/dims.NRawPop, i%dims.NRawPop, j/dims.NRawPop, j%dims.NRawPop)
		}
	}
	return levels
}
