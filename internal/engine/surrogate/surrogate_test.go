package surrogate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goalsarm/goalsfit/internal/dims"
	"github.com/goalsarm/goalsfit/internal/engine"
	"github.com/goalsarm/goalsfit/internal/ndarray"
)

const (
	first = 1970
	final = 1990
)

func initAll(t *testing.T, e *Engine, f2m, m2f float64) {
	t.Helper()
	n := final - first + 1
	require.NoError(t, e.InitTransmission(engine.Transmission{F2M: f2m, M2F: m2f, M2M: 2 * f2m, Chronic: 1}))
	require.NoError(t, e.InitEpidemicSeed(5, 0.01))

	rate := ndarray.New(n, dims.NSex, dims.NAgeAdult, dims.NPop)
	require.NoError(t, rate.FillRange(0.05, ndarray.All(n), ndarray.All(dims.NSex), ndarray.Span{Lo: 0, Hi: dims.NAgeAdult - 1}, ndarray.Span{Lo: 1, Hi: dims.NPop}))
	require.NoError(t, e.InitPartnerRate(rate))
	require.NoError(t, e.InitAgeMixing(ndarray.New(dims.NSex, dims.NAgeAdult, dims.NSex, dims.NAgeAdult)))
	assort := ndarray.New(dims.NSex, dims.NPop)
	assort.Fill(0.2)
	require.NoError(t, e.InitPopAssort(assort))
	levels := ndarray.New(dims.NSex, dims.NPop, dims.NSex, dims.NPop)
	levels.Fill(1)
	require.NoError(t, e.InitMixLevels(levels))
	require.NoError(t, e.InitPWIDForce(make([]float64, n)))
	age := ndarray.New(n, dims.NAgeFert)
	age.Fill(0.8)
	require.NoError(t, e.InitHIVFertility(engine.Fertility{
		Age: age,
		CD4: make([]float64, dims.NHIVAdult),
		ART: make([]float64, dims.NAgeFert),
	}))
}

func prevalence(t *testing.T, out *engine.Outputs, year int) float64 {
	t.Helper()
	idx := year - out.YearFirst
	hiv, err := out.PopAdultHIV.SumRange(ndarray.One(idx))
	require.NoError(t, err)
	neg, err := out.PopAdultNeg.SumRange(ndarray.One(idx))
	require.NoError(t, err)
	return hiv / (hiv + neg)
}

func TestProject_RequiresInputs(t *testing.T) {
	e, err := New(first, final)
	require.NoError(t, err)
	out, err := engine.NewOutputs(first, final)
	require.NoError(t, err)
	err = e.Project(final, out)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestProject_RejectsWrongOutputShape(t *testing.T) {
	e, err := New(first, final)
	require.NoError(t, err)
	initAll(t, e, 0.1, 0.1)

	out, err := engine.NewOutputs(first, final)
	require.NoError(t, err)
	out.PopAdultHIV = ndarray.New(3)
	require.Error(t, e.Project(final, out))

	short, err := engine.NewOutputs(first, final-1)
	require.NoError(t, err)
	require.Error(t, e.Project(final, short))
}

func TestProject_SeedsAndGrows(t *testing.T) {
	e, err := New(first, final)
	require.NoError(t, err)
	initAll(t, e, 0.5, 0.5)
	out, err := engine.NewOutputs(first, final)
	require.NoError(t, err)
	require.NoError(t, e.Project(final, out))

	assert.Equal(t, 0.0, prevalence(t, out, 1974))
	assert.Greater(t, prevalence(t, out, 1975), 0.0)
	assert.Greater(t, prevalence(t, out, 1990), prevalence(t, out, 1976))
	assert.Greater(t, out.BirthsExposed.At(20), 0.0)
}

func TestProject_MonotoneInTransmission(t *testing.T) {
	run := func(beta float64) float64 {
		e, err := New(first, final)
		require.NoError(t, err)
		initAll(t, e, beta, beta)
		out, err := engine.NewOutputs(first, final)
		require.NoError(t, err)
		require.NoError(t, e.Project(final, out))
		return prevalence(t, out, final)
	}
	assert.Greater(t, run(0.8), run(0.2))
}

func TestProject_CachesUntilInvalidated(t *testing.T) {
	e, err := New(first, final)
	require.NoError(t, err)
	initAll(t, e, 0.2, 0.2)
	out, err := engine.NewOutputs(first, final)
	require.NoError(t, err)

	require.NoError(t, e.Project(final, out))
	before := prevalence(t, out, final)
	assert.Equal(t, 1, e.Projections)

	require.NoError(t, e.InitTransmission(engine.Transmission{F2M: 0.9, M2F: 0.9, M2M: 0.9}))
	require.NoError(t, e.Project(final, out))
	assert.Equal(t, before, prevalence(t, out, final), "cached years must not change without invalidation")
	assert.Equal(t, 1, e.Projections)

	e.Invalidate(-1)
	require.NoError(t, e.Project(final, out))
	assert.Greater(t, prevalence(t, out, final), before)
	assert.Equal(t, 2, e.Projections)
}

func TestProject_DeterministicAndCopiesInputs(t *testing.T) {
	e, err := New(first, final)
	require.NoError(t, err)
	initAll(t, e, 0.3, 0.3)

	force := make([]float64, final-first+1)
	require.NoError(t, e.InitPWIDForce(force))
	force[10] = 100 // must not leak into the engine

	a, _ := engine.NewOutputs(first, final)
	b, _ := engine.NewOutputs(first, final)
	require.NoError(t, e.Project(final, a))
	e.Invalidate(-1)
	require.NoError(t, e.Project(final, b))
	assert.Equal(t, a.PopAdultHIV.Data(), b.PopAdultHIV.Data())
}

func TestInit_RejectsBadShapes(t *testing.T) {
	e, err := New(first, final)
	require.NoError(t, err)
	assert.Error(t, e.InitPartnerRate(ndarray.New(1, 2, 3, 4)))
	assert.Error(t, e.InitPopAssort(ndarray.New(dims.NSex, dims.NRawPop)))
	assert.Error(t, e.InitPWIDForce([]float64{1}))
	assert.Error(t, e.InitEpidemicSeed(100, 0.1))
	assert.Error(t, e.InitEpidemicSeed(0, 1.5))
}
