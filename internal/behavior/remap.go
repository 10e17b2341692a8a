package behavior

import (
	"fmt"

	"github.com/goalsarm/goalsfit/internal/dims"
	"github.com/goalsarm/goalsfit/internal/ndarray"
)

// Input layouts are keyed by gender identity and omit the never-had-sex
// risk group. Engine layouts are keyed by assigned sex at birth and include
// it. The functions below share one cell mapping: raw (sex, pop) moves to
// engine (dims.AssignedSex(sex, pop), dims.EnginePop(pop)).

func engineCell(sex, rawPop int) (int, int) {
	return dims.AssignedSex(sex, dims.EnginePop(rawPop)), dims.EnginePop(rawPop)
}

// RemapRatios converts a (raw pop × sex) rate-ratio matrix to the engine's
// (pop × sex) layout.
func RemapRatios(raw *ndarray.Dense) (*ndarray.Dense, error) {
	if err := raw.CheckShape(dims.NRawPop, dims.NSex); err != nil {
		return nil, fmt.Errorf("remap ratios: %w", err)
	}
	out := ndarray.New(dims.NPop, dims.NSex)
	for r := 0; r < dims.NRawPop; r++ {
		for s := 0; s < dims.NSex; s++ {
			es, ep := engineCell(s, r)
			out.Set(raw.At(r, s), ep, es)
		}
	}
	return out, nil
}

// RemapAssort converts a (sex × raw pop) assortativity matrix to the
// engine's (sex × pop) layout.
func RemapAssort(raw *ndarray.Dense) (*ndarray.Dense, error) {
	if err := raw.CheckShape(dims.NSex, dims.NRawPop); err != nil {
		return nil, fmt.Errorf("remap assortativity: %w", err)
	}
	out := ndarray.New(dims.NSex, dims.NPop)
	for s := 0; s < dims.NSex; s++ {
		for r := 0; r < dims.NRawPop; r++ {
			es, ep := engineCell(s, r)
			out.Set(raw.At(s, r), es, ep)
		}
	}
	return out, nil
}

// RemapMixLevels converts a (sex × raw pop × sex × raw pop) mixing-level
// matrix to the engine's (sex × pop × sex × pop) layout. TGW is moved on
// both the row and the column axis.
func RemapMixLevels(raw *ndarray.Dense) (*ndarray.Dense, error) {
	if err := raw.CheckShape(dims.NSex, dims.NRawPop, dims.NSex, dims.NRawPop); err != nil {
		return nil, fmt.Errorf("remap mixing levels: %w", err)
	}
	out := ndarray.New(dims.NSex, dims.NPop, dims.NSex, dims.NPop)
	for s := 0; s < dims.NSex; s++ {
		for r := 0; r < dims.NRawPop; r++ {
			es, ep := engineCell(s, r)
			for s2 := 0; s2 < dims.NSex; s2++ {
				for r2 := 0; r2 < dims.NRawPop; r2++ {
					es2, ep2 := engineCell(s2, r2)
					out.Set(raw.At(s, r, s2, r2), es, ep, es2, ep2)
				}
			}
		}
	}
	return out, nil
}
