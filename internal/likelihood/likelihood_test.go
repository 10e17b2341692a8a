package likelihood

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/goalsarm/goalsfit/internal/template"
	"github.com/goalsarm/goalsfit/internal/workbook"
)

const hivCSV = `Year,Population,Gender,AgeMin,AgeMax,Value,N,Survey
2005,All,Women,15,49,0.2,10,DHS
2005,FSW,Women,15,49,0.5,4,IBBS
`

func TestReadHIVPrevalence(t *testing.T) {
	obs, err := ReadHIVPrevalence(strings.NewReader(hivCSV), "hiv.csv")
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, HIVObservation{Year: 2005, Population: "FSW", Gender: "Women", AgeMin: 15, AgeMax: 49, Value: 0.5, N: 4}, obs[1])
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		read func() error
		want string
	}{
		{"missing column", func() error {
			_, err := ReadDeaths(strings.NewReader("Year,Gender,AgeMin,Value\n"), "d.csv")
			return err
		}, "missing columns AgeMax"},
		{"bad number", func() error {
			_, err := ReadDeaths(strings.NewReader("Year,Gender,AgeMin,AgeMax,Value\n2001,Men,15,49,many\n"), "d.csv")
			return err
		}, "d.csv line 2: Value"},
		{"bad prevalence", func() error {
			_, err := ReadHIVPrevalence(strings.NewReader("Year,Population,Gender,AgeMin,AgeMax,Value,N\n2001,All,All,15,49,1.5,100\n"), "h.csv")
			return err
		}, "prevalence 1.5"},
		{"bad ANC type", func() error {
			_, err := ReadANC(strings.NewReader("Site,Year,Type,Prevalence,N\nA,2001,XX,0.1,300\n"), "a.csv")
			return err
		}, "unknown ANC type"},
		{"empty", func() error {
			_, err := ReadANC(strings.NewReader(""), "a.csv")
			return err
		}, "empty file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.read()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadDeaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deaths.csv")
	require.NoError(t, os.WriteFile(path, []byte("\ufeffYear,Gender,AgeMin,AgeMax,Value\n2001,Men,15,49,12\n"), 0o644))
	obs, err := LoadDeaths(path)
	require.NoError(t, err)
	assert.Equal(t, []DeathObservation{{Year: 2001, Gender: "Men", AgeMin: 15, AgeMax: 49, Value: 12}}, obs)

	_, err = LoadDeaths(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func fill(tbl *template.Table, values ...float64) *template.Table {
	for i := range tbl.Rows {
		tbl.Rows[i].Value = values[i]
	}
	return tbl
}

func TestHIVPrevalence_Binomial(t *testing.T) {
	svc := NewHIVPrevalence([]HIVObservation{{Year: 2005, Population: "All", Gender: "Women", AgeMin: 15, AgeMax: 49, Value: 0.2, N: 10}})
	tbl := svc.ProjectionTemplate()
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, template.Prevalence, tbl.Rows[0].Measure)
	assert.True(t, math.IsNaN(tbl.Rows[0].Value))

	ll, err := svc.Likelihood(fill(tbl, 0.2))
	require.NoError(t, err)
	assert.InDelta(t, -1.1973617456115586, ll, 1e-10)

	worse, err := svc.Likelihood(fill(tbl, 0.4))
	require.NoError(t, err)
	assert.Less(t, worse, ll)

	_, err = svc.Likelihood(template.NewTable(nil))
	assert.Error(t, err)
}

func TestBinomialLogProb_Boundaries(t *testing.T) {
	assert.Equal(t, 0.0, binomialLogProb(0, 5, 0))
	assert.True(t, math.IsInf(binomialLogProb(1, 5, 0), -1))
	assert.Equal(t, 0.0, binomialLogProb(5, 5, 1))
	assert.True(t, math.IsInf(binomialLogProb(2, 5, math.NaN()), -1))
}

func TestDeaths_Poisson(t *testing.T) {
	svc := NewDeaths([]DeathObservation{{Year: 2001, Gender: "Men", AgeMin: 15, AgeMax: 49, Value: 3}})
	tbl := svc.ProjectionTemplate()
	assert.Equal(t, "All", tbl.Rows[0].Population)
	assert.Equal(t, template.Deaths, tbl.Rows[0].Measure)

	ll, err := svc.Likelihood(fill(tbl, 2))
	require.NoError(t, err)
	assert.InDelta(t, -1.7123179275482192, ll, 1e-10)

	assert.Equal(t, 0.0, poissonLogProb(0, 0))
	assert.True(t, math.IsInf(poissonLogProb(1, 0), -1))
}

func TestANC_TemplateHasOneRowPerYear(t *testing.T) {
	svc := NewANC([]ANCObservation{
		{Site: "B", Year: 1995, Type: ANCSentinel, Prevalence: 0.1, N: 300},
		{Site: "A", Year: 1990, Type: ANCSentinel, Prevalence: 0.05, N: 300},
		{Site: "A", Year: 1995, Type: ANCRoutine, Prevalence: 0.12, N: 300},
	})
	tbl := svc.ProjectionTemplate()
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, 1990, tbl.Rows[0].Year)
	assert.Equal(t, 1995, tbl.Rows[1].Year)
	assert.Equal(t, template.ANCPrevalence, tbl.Rows[1].Measure)
}

func TestANC_ProbitLikelihood(t *testing.T) {
	obs := ANCObservation{Site: "A", Year: 2000, Type: ANCSentinel, Prevalence: 0.1, N: 400}
	svc := NewANC([]ANCObservation{obs})

	q := (obs.Prevalence*obs.N + 0.5) / (obs.N + 1)
	z := distuv.UnitNormal.Quantile(q)
	dens := distuv.UnitNormal.Prob(z)
	sampling := q * (1 - q) / (obs.N * dens * dens)

	// With no bias and the model matching the adjusted observation, only the
	// normalizing constant remains.
	ll, err := svc.Likelihood(fill(svc.ProjectionTemplate(), q))
	require.NoError(t, err)
	assert.InDelta(t, -0.5*math.Log(2*math.Pi*sampling), ll, 1e-9)

	svc.SetParameters(workbook.LikelihoodParams{ANCSSBias: 0.3, VarInflSite: 0.01})
	biased, err := svc.Likelihood(fill(svc.ProjectionTemplate(), q))
	require.NoError(t, err)
	want := distuv.Normal{Mu: z + 0.3, Sigma: math.Sqrt(sampling + 0.01)}.LogProb(z)
	assert.InDelta(t, want, biased, 1e-9)
}

func TestANC_CensusIgnoresBias(t *testing.T) {
	census := ANCObservation{Site: CensusSite, Year: 2000, Type: ANCRoutine, Prevalence: 0.1, N: 1000}
	svc := NewANC([]ANCObservation{census})
	tbl := fill(svc.ProjectionTemplate(), 0.1)

	base, err := svc.Likelihood(tbl)
	require.NoError(t, err)
	svc.SetParameters(workbook.LikelihoodParams{ANCRTBias: 1, ANCSSBias: 1})
	same, err := svc.Likelihood(tbl)
	require.NoError(t, err)
	assert.Equal(t, base, same)

	svc.SetParameters(workbook.LikelihoodParams{VarInflCensus: 0.5})
	inflated, err := svc.Likelihood(tbl)
	require.NoError(t, err)
	assert.NotEqual(t, base, inflated)
}

func TestANC_DegenerateEstimate(t *testing.T) {
	svc := NewANC([]ANCObservation{{Site: "A", Year: 2000, Type: ANCSentinel, Prevalence: 0.1, N: 100}})
	ll, err := svc.Likelihood(fill(svc.ProjectionTemplate(), 0))
	require.NoError(t, err)
	assert.True(t, math.IsInf(ll, -1))
}
