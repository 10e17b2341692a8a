package template

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goalsarm/goalsfit/internal/dims"
	"github.com/goalsarm/goalsfit/internal/engine"
)

func newOutputs(t *testing.T) *engine.Outputs {
	t.Helper()
	out, err := engine.NewOutputs(1970, 1990)
	require.NoError(t, err)
	return out
}

func newFiller() *Filler {
	return &Filler{YearFirst: 1970, YearFinal: 1990}
}

func TestNewTable_ValuesStartNaN(t *testing.T) {
	tbl := NewTable([]Row{{Year: 1970, Population: "All", Gender: "All", AgeMin: 15, AgeMax: 49, Measure: Prevalence, Value: 3}})
	assert.True(t, math.IsNaN(tbl.Rows[0].Value))
	assert.False(t, tbl.Compiled())
}

func TestFill_Prevalence(t *testing.T) {
	out := newOutputs(t)
	// 1975, women, age 20, never-married.
	out.PopAdultHIV.Set(1, 5, dims.SexMCFemale, 5, dims.PopNever, 2, 3)
	out.PopAdultNeg.Set(3, 5, dims.SexMCFemale, 5, dims.PopNever)
	// Men in the same cell, excluded from the women row.
	out.PopAdultHIV.Set(10, 5, dims.SexMCMaleCirc, 5, dims.PopNever, 0, 0)
	out.PopAdultNeg.Set(10, 5, dims.SexMCMaleCirc, 5, dims.PopNever)

	tbl := NewTable([]Row{
		{Year: 1975, Population: "All", Gender: "Women", AgeMin: 15, AgeMax: 24, Measure: Prevalence},
		{Year: 1975, Population: "All", Gender: "All", AgeMin: 15, AgeMax: 80, Measure: Prevalence},
		{Year: 1975, Population: "All", Gender: "Men", AgeMin: 20, AgeMax: 20, Measure: Prevalence},
	})
	require.NoError(t, newFiller().Fill(tbl, out))

	assert.InDelta(t, 0.25, tbl.Rows[0].Value, 1e-12)
	assert.InDelta(t, 11.0/24.0, tbl.Rows[1].Value, 1e-12)
	assert.InDelta(t, 0.5, tbl.Rows[2].Value, 1e-12)
	assert.True(t, tbl.Compiled())
}

func TestFill_TGWUsesMaleAxis(t *testing.T) {
	out := newOutputs(t)
	out.PopAdultHIV.Set(2, 0, dims.SexMCMaleUncut, 0, dims.PopTGW, 0, 0)
	out.PopAdultNeg.Set(6, 0, dims.SexMCMaleUncut, 0, dims.PopTGW)
	out.PopAdultHIV.Set(100, 0, dims.SexMCFemale, 0, dims.PopTGW, 0, 0)

	tbl := NewTable([]Row{{Year: 1970, Population: "TGW", Gender: "Women", AgeMin: 15, AgeMax: 15, Measure: Prevalence}})
	require.NoError(t, newFiller().Fill(tbl, out))
	assert.InDelta(t, 0.25, tbl.Rows[0].Value, 1e-12)
}

func TestFill_Deaths(t *testing.T) {
	out := newOutputs(t)
	out.DeathsAdultHIV.Set(4, 10, dims.SexMCMaleUncut, 30, dims.PopClients)
	out.DeathsAdultHIV.Set(5, 10, dims.SexMCMaleCirc, 31, dims.PopNever)
	out.DeathsAdultHIV.Set(7, 10, dims.SexMCFemale, 30, dims.PopFSW)

	tbl := NewTable([]Row{
		{Year: 1980, Population: "All", Gender: "Men", AgeMin: 45, AgeMax: 49, Measure: Deaths},
		{Year: 1980, Population: "All", Gender: "All", AgeMin: 15, AgeMax: 80, Measure: Deaths},
		{Year: 1981, Population: "All", Gender: "All", AgeMin: 15, AgeMax: 80, Measure: Deaths},
	})
	require.NoError(t, newFiller().Fill(tbl, out))
	assert.Equal(t, []float64{9, 16, 0}, tbl.Values())
}

func TestFill_ANCPrevalence(t *testing.T) {
	out := newOutputs(t)
	out.Births.Set(60, 3, dims.Female)
	out.Births.Set(40, 3, dims.Male)
	out.BirthsExposed.Set(5, 3)

	tbl := NewTable([]Row{
		{Year: 1973, Measure: ANCPrevalence},
		{Year: 1974, Measure: ANCPrevalence},
	})
	require.NoError(t, newFiller().Fill(tbl, out))
	assert.Equal(t, []float64{0.05, 0}, tbl.Values())
}

func TestCompile_NormalizesLabels(t *testing.T) {
	tbl := NewTable([]Row{{Year: 1970, Population: " clients ", Gender: "MEN\t", AgeMin: 15, AgeMax: 49, Measure: Prevalence}})
	require.NoError(t, newFiller().Compile(tbl))
}

func TestCompile_StrictRejectsUnknownLabel(t *testing.T) {
	tbl := NewTable([]Row{
		{Year: 1970, Population: "All", Gender: "All", AgeMin: 15, AgeMax: 49, Measure: Prevalence},
		{Year: 1970, Population: "Truckers", Gender: "Men", AgeMin: 15, AgeMax: 49, Measure: Prevalence},
	})
	err := newFiller().Compile(tbl)
	require.Error(t, err)
	assert.True(t, IsLabelError(err))

	var le *LabelError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 1, le.Row)
	assert.Equal(t, "population", le.Field)
	assert.False(t, tbl.Compiled())
}

func TestCompile_WarnReusesPreviousRanges(t *testing.T) {
	var buf bytes.Buffer
	f := newFiller()
	f.Policy = PolicyWarn
	f.Logger = slog.New(slog.NewTextHandler(&buf, nil))

	out := newOutputs(t)
	out.PopAdultHIV.Set(1, 0, dims.SexMCFemale, 0, dims.PopFSW, 0, 0)
	out.PopAdultNeg.Set(1, 0, dims.SexMCFemale, 0, dims.PopFSW)

	tbl := NewTable([]Row{
		{Year: 1970, Population: "FSW", Gender: "Women", AgeMin: 15, AgeMax: 15, Measure: Prevalence},
		{Year: 1970, Population: "FSW", Gender: "Nonbinary", AgeMin: 15, AgeMax: 15, Measure: Prevalence},
	})
	require.NoError(t, f.Fill(tbl, out))
	assert.Equal(t, []float64{0.5, 0.5}, tbl.Values())
	assert.Contains(t, buf.String(), "unrecognized label")
	assert.Contains(t, buf.String(), "Nonbinary")
}

func TestCompile_WarnFailsWithoutPreviousRow(t *testing.T) {
	f := newFiller()
	f.Policy = PolicyWarn
	tbl := NewTable([]Row{{Year: 1970, Population: "???", Gender: "All", AgeMin: 15, AgeMax: 49, Measure: Prevalence}})
	assert.True(t, IsLabelError(f.Compile(tbl)))
}

func TestCompile_RangeErrors(t *testing.T) {
	tests := []struct {
		name string
		row  Row
	}{
		{"year before projection", Row{Year: 1969, Population: "All", Gender: "All", AgeMin: 15, AgeMax: 49, Measure: Prevalence}},
		{"year after projection", Row{Year: 1991, Population: "All", Gender: "All", AgeMin: 15, AgeMax: 49, Measure: Prevalence}},
		{"child age", Row{Year: 1970, Population: "All", Gender: "All", AgeMin: 10, AgeMax: 49, Measure: Prevalence}},
		{"inverted ages", Row{Year: 1970, Population: "All", Gender: "All", AgeMin: 40, AgeMax: 30, Measure: Deaths}},
		{"unknown measure", Row{Year: 1970, Population: "All", Gender: "All", AgeMin: 15, AgeMax: 49, Measure: "Incidence"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFiller()
			f.Policy = PolicyWarn
			err := f.Compile(NewTable([]Row{tt.row}))
			require.Error(t, err)
			assert.False(t, IsLabelError(err))
		})
	}
}

func TestFill_RejectsMismatchedOutputs(t *testing.T) {
	out, err := engine.NewOutputs(1971, 1990)
	require.NoError(t, err)
	tbl := NewTable([]Row{{Year: 1975, Measure: ANCPrevalence}})
	assert.Error(t, newFiller().Fill(tbl, out))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("WARN")
	require.NoError(t, err)
	assert.Equal(t, PolicyWarn, p)
	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)
	_, err = ParsePolicy("ignore")
	assert.Error(t, err)
}
