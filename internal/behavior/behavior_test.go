package behavior

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goalsarm/goalsfit/internal/dims"
	"github.com/goalsarm/goalsfit/internal/ndarray"
)

func TestFitFisk_MatchesTargetMoments(t *testing.T) {
	for _, c := range []struct{ mean, variance float64 }{
		{5, 20},
		{4, 25},
		{5, 200},
	} {
		f, err := FitFisk(c.mean, c.variance)
		require.NoError(t, err)
		assert.InDelta(t, c.mean, f.Mean(), 1e-6, "mean for %+v", c)
		assert.InDelta(t, c.variance, f.Variance(), 1e-6, "variance for %+v", c)
		assert.Equal(t, GapShift, f.Loc)
	}
}

func TestFitFisk_KnownShape(t *testing.T) {
	f, err := FitFisk(5, 20)
	require.NoError(t, err)
	assert.InDelta(t, 6.400268491862786, f.Shape, 1e-9)
	assert.InDelta(t, 14.404872530566559, f.Scale, 1e-9)
}

func TestFitFisk_RejectsInvalidMoments(t *testing.T) {
	for _, c := range []struct{ mean, variance float64 }{
		{5, 0},
		{5, -1},
		{-10, 20},
		{-12, 20},
		{math.NaN(), 20},
		{5, math.Inf(1)},
	} {
		_, err := FitFisk(c.mean, c.variance)
		assert.True(t, errors.Is(err, ErrInvalidMoments), "%+v: %v", c, err)
	}
}

func TestFisk_CDF(t *testing.T) {
	f := Fisk{Shape: 4, Scale: 10, Loc: -10}
	assert.Equal(t, 0.0, f.CDF(-10))
	assert.Equal(t, 0.0, f.CDF(-20))
	assert.InDelta(t, 0.5, f.CDF(0), 1e-12)
	assert.Less(t, f.CDF(100), 1.0)
}

func testPrefs() AgePrefs {
	return AgePrefs{DiffMean: 5, DiffVar: 20, MaleVar: 16}
}

func TestAgeMixing_RowsAreDistributions(t *testing.T) {
	mix, err := AgeMixing(testPrefs())
	require.NoError(t, err)
	require.Equal(t, []int{dims.NSex, dims.NAgeAdult, dims.NSex, dims.NAgeAdult}, mix.Shape())

	for s := 0; s < dims.NSex; s++ {
		for a := 0; a < dims.NAgeAdult; a++ {
			for s2 := 0; s2 < dims.NSex; s2++ {
				row := mix.Row(s, a, s2)
				var sum float64
				for _, v := range row {
					require.GreaterOrEqual(t, v, 0.0)
					sum += v
				}
				switch {
				case a == dims.NAgeAdult-1, s == dims.Female && s2 == dims.Female:
					assert.Equal(t, 0.0, sum, "s=%d a=%d s2=%d", s, a, s2)
				case sum != 0:
					assert.InDelta(t, 1.0, sum, 1e-12, "s=%d a=%d s2=%d", s, a, s2)
				}
			}
		}
	}
}

func TestAgeMixing_TopPartnerAgeUnreachable(t *testing.T) {
	mix, err := AgeMixing(testPrefs())
	require.NoError(t, err)
	for a := 0; a < dims.NAgeAdult; a++ {
		assert.Equal(t, 0.0, mix.At(dims.Female, a, dims.Male, dims.NAgeAdult-1))
	}
}

func TestAgeMixing_MaleRowsUseFemaleColumns(t *testing.T) {
	mix, err := AgeMixing(testPrefs())
	require.NoError(t, err)

	// Men aged 30 mostly partner with women younger than themselves.
	b := 30 - dims.AgeAdultMin
	row := mix.Row(dims.Male, b, dims.Female)
	var younger, older float64
	for j, v := range row {
		if j < b {
			younger += v
		} else {
			older += v
		}
	}
	assert.Greater(t, younger, older)
}

func TestAgeMixing_RejectsBadMaleVariance(t *testing.T) {
	p := testPrefs()
	p.MaleVar = 0
	_, err := AgeMixing(p)
	assert.ErrorIs(t, err, ErrInvalidMoments)
}

func TestNormalizeInto_LeavesZeroRowsZero(t *testing.T) {
	dst := make([]float64, 3)
	normalizeInto(dst, []float64{0, 0, 0})
	assert.Equal(t, []float64{0, 0, 0}, dst)

	normalizeInto(dst, []float64{1, 1, 2})
	assert.Equal(t, []float64{0.25, 0.25, 0.5}, dst)
}

func testProfile() AgeProfile {
	return AgeProfile{Mean: [2]float64{25, 30}, Size: [2]float64{4, 5}}
}

func TestAgeRatios_SumToOneWithZeroTop(t *testing.T) {
	r, err := AgeRatios(testProfile())
	require.NoError(t, err)
	for s := 0; s < dims.NSex; s++ {
		row := r.Row(s)
		assert.Equal(t, 0.0, row[dims.NAgeAdult-1])
		var sum float64
		for _, v := range row {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	}
}

func TestAgeRatios_RejectsBadProfile(t *testing.T) {
	p := testProfile()
	p.Mean[dims.Male] = 80
	_, err := AgeRatios(p)
	require.Error(t, err)

	p = testProfile()
	p.Size[dims.Female] = 0
	_, err = AgeRatios(p)
	require.Error(t, err)
}

func testTrend() *ndarray.Dense {
	trend := ndarray.New(dims.NSex, dims.NInputYears)
	for s := 0; s < dims.NSex; s++ {
		for y := 0; y < dims.NInputYears; y++ {
			trend.Set(1+float64(s)+0.01*float64(y), s, y)
		}
	}
	return trend
}

func testRatios() *ndarray.Dense {
	r := ndarray.New(dims.NPop, dims.NSex)
	for p := 1; p < dims.NPop; p++ {
		r.Set(float64(p), p, dims.Female)
		r.Set(float64(p)/2, p, dims.Male)
	}
	return r
}

func TestPartnerRates_OuterProduct(t *testing.T) {
	trend, ratios := testTrend(), testRatios()
	rate, err := PartnerRates(trend, testProfile(), ratios, 1980, 1990)
	require.NoError(t, err)
	require.Equal(t, []int{11, dims.NSex, dims.NAgeAdult, dims.NPop}, rate.Shape())

	age, err := AgeRatios(testProfile())
	require.NoError(t, err)

	// 1985 is column 15 of the input trend and row 5 of the projection.
	want := trend.At(dims.Male, 15) * age.At(dims.Male, 10) * ratios.At(dims.PopMSM, dims.Male)
	assert.InDelta(t, want, rate.At(5, dims.Male, 10, dims.PopMSM), 1e-15)
}

func TestPartnerRates_TopAgeAndNoSexAreZero(t *testing.T) {
	rate, err := PartnerRates(testTrend(), testProfile(), testRatios(), 1970, 2050)
	require.NoError(t, err)
	for y := 0; y < dims.NInputYears; y++ {
		for s := 0; s < dims.NSex; s++ {
			for p := 0; p < dims.NPop; p++ {
				assert.Equal(t, 0.0, rate.At(y, s, dims.NAgeAdult-1, p))
			}
			for a := 0; a < dims.NAgeAdult; a++ {
				assert.Equal(t, 0.0, rate.At(y, s, a, dims.PopNoSex))
			}
		}
	}
}

func TestPartnerRates_ValidatesInputs(t *testing.T) {
	_, err := PartnerRates(testTrend(), testProfile(), testRatios(), 1960, 1990)
	require.Error(t, err)
	_, err = PartnerRates(testTrend(), testProfile(), ndarray.New(dims.NRawPop, dims.NSex), 1970, 1990)
	require.Error(t, err)
	_, err = PartnerRates(ndarray.New(dims.NSex, 10), testProfile(), testRatios(), 1970, 1990)
	require.Error(t, err)
}

func TestRemapRatios_InsertsNoSexAndMovesTGW(t *testing.T) {
	raw := ndarray.New(dims.NRawPop, dims.NSex)
	for r := 0; r < dims.NRawPop; r++ {
		raw.Set(float64(10*r+1), r, dims.Female)
		raw.Set(float64(10*r+2), r, dims.Male)
	}
	out, err := RemapRatios(raw)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0}, out.Row(dims.PopNoSex))
	assert.Equal(t, []float64{1, 2}, out.Row(dims.PopNever))
	tgw := dims.PopTGW - 1
	assert.Equal(t, []float64{float64(10*tgw + 2), float64(10*tgw + 1)}, out.Row(dims.PopTGW))
}

func TestRemap_SharedMappingAcrossLayouts(t *testing.T) {
	// Build a mixing-level matrix whose value encodes the raw row cell and
	// check that the row axis lands where RemapAssort puts the same cell.
	rawMix := ndarray.New(dims.NSex, dims.NRawPop, dims.NSex, dims.NRawPop)
	rawAssort := ndarray.New(dims.NSex, dims.NRawPop)
	for s := 0; s < dims.NSex; s++ {
		for r := 0; r < dims.NRawPop; r++ {
			v := float64(100*s + r + 1)
			rawAssort.Set(v, s, r)
			for s2 := 0; s2 < dims.NSex; s2++ {
				for r2 := 0; r2 < dims.NRawPop; r2++ {
					rawMix.Set(v, s, r, s2, r2)
				}
			}
		}
	}
	mix, err := RemapMixLevels(rawMix)
	require.NoError(t, err)
	assort, err := RemapAssort(rawAssort)
	require.NoError(t, err)

	rows := ndarray.New(dims.NSex, dims.NPop)
	for s := 0; s < dims.NSex; s++ {
		for p := 0; p < dims.NPop; p++ {
			rows.Set(mix.At(s, p, dims.Male, dims.PopNever), s, p)
		}
	}
	if diff := cmp.Diff(assort.Data(), rows.Data(), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("row mapping mismatch (-assort +mix):\n%s", diff)
	}
	assert.Equal(t, float64(dims.PopTGW), assort.At(dims.Male, dims.PopTGW))
}

func TestRemapMixLevels_MovesTGWColumns(t *testing.T) {
	raw := ndarray.New(dims.NSex, dims.NRawPop, dims.NSex, dims.NRawPop)
	tgw := dims.PopTGW - 1
	raw.Set(7, dims.Female, 0, dims.Female, tgw)
	out, err := RemapMixLevels(raw)
	require.NoError(t, err)
	assert.Equal(t, 7.0, out.At(dims.Female, dims.PopNever, dims.Male, dims.PopTGW))
	assert.Equal(t, 0.0, out.At(dims.Female, dims.PopNever, dims.Female, dims.PopTGW))
}
