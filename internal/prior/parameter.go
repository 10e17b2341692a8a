package prior

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// Padding keeps the support away from finite distribution boundaries, where
// the log density is -Inf or undefined and derivative-free optimizers that
// step onto the boundary stall.
const Padding = 1e-10

// Family names a prior distribution family.
type Family string

const (
	FamilyBeta      Family = "beta"
	FamilyGamma     Family = "gamma"
	FamilyLogNormal Family = "lognormal"
	FamilyNormal    Family = "normal"
)

// ParseFamily resolves a family name case-insensitively.
func ParseFamily(name string) (Family, error) {
	switch f := Family(strings.ToLower(strings.TrimSpace(name))); f {
	case FamilyBeta, FamilyGamma, FamilyLogNormal, FamilyNormal:
		return f, nil
	}
	return "", &ConfigError{
		Code:    ErrCodeUnknownFamily,
		Message: fmt.Sprintf("unrecognized probability distribution %q", name),
	}
}

// Support is the closed interval the optimizer may search.
type Support struct {
	Lo, Hi float64
}

// Contains reports whether x lies in the interval.
func (s Support) Contains(x float64) bool { return x >= s.Lo && x <= s.Hi }

// Clip returns x limited to the interval.
func (s Support) Clip(x float64) float64 { return math.Min(math.Max(x, s.Lo), s.Hi) }

type logProber interface {
	LogProb(x float64) float64
}

// Parameter is one fittable quantity together with its prior.
//
// For the gamma family, Shape2 holds the scale: the rate given at
// construction is converted once so every later consumer sees the same
// parameterization.
type Parameter struct {
	Name    string
	Initial float64
	Family  Family
	Shape1  float64
	Shape2  float64
	Support Support

	// Fitted is NaN until calibration completes.
	Fitted float64

	dist logProber
}

// NewParameter builds a parameter. For FamilyGamma, p2 is the rate.
func NewParameter(name string, initial float64, family string, p1, p2 float64) (*Parameter, error) {
	fam, err := ParseFamily(family)
	if err != nil {
		err.(*ConfigError).Parameter = name
		return nil, err
	}
	if math.IsNaN(initial) || math.IsInf(initial, 0) {
		return nil, newShapeError(name, "initial value must be finite")
	}
	if math.IsNaN(p1) || math.IsNaN(p2) || math.IsInf(p1, 0) || math.IsInf(p2, 0) {
		return nil, newShapeError(name, "shape constants must be finite")
	}

	p := &Parameter{
		Name:    name,
		Initial: initial,
		Family:  fam,
		Shape1:  p1,
		Shape2:  p2,
		Fitted:  math.NaN(),
	}

	switch fam {
	case FamilyBeta:
		if p1 <= 0 || p2 <= 0 {
			return nil, newShapeError(name, "beta shapes must be positive")
		}
		p.dist = distuv.Beta{Alpha: p1, Beta: p2}
		p.Support = Support{Padding, 1 - Padding}
	case FamilyGamma:
		if p1 <= 0 || p2 <= 0 {
			return nil, newShapeError(name, "gamma shape and rate must be positive")
		}
		p.Shape2 = 1 / p2
		p.dist = distuv.Gamma{Alpha: p1, Beta: p2}
		p.Support = Support{Padding, math.Inf(1)}
	case FamilyLogNormal:
		if p2 <= 0 {
			return nil, newShapeError(name, "lognormal sdlog must be positive")
		}
		p.dist = distuv.LogNormal{Mu: p1, Sigma: p2}
		p.Support = Support{Padding, math.Inf(1)}
	case FamilyNormal:
		if p2 <= 0 {
			return nil, newShapeError(name, "normal sd must be positive")
		}
		p.dist = distuv.Normal{Mu: p1, Sigma: p2}
		p.Support = Support{math.Inf(-1), math.Inf(1)}
	}
	return p, nil
}

// LogDensity evaluates the prior log density at x.
func (p *Parameter) LogDensity(x float64) float64 {
	return p.dist.LogProb(x)
}

// HasFitted reports whether calibration has written a fitted value.
func (p *Parameter) HasFitted() bool { return !math.IsNaN(p.Fitted) }
