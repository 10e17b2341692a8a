package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/goalsarm/goalsfit/internal/dims"
	"github.com/goalsarm/goalsfit/internal/engine"
)

var (
	sexLabels   = []string{"Female", "Male"}
	sexMCLabels = []string{"Female", "MaleUncut", "MaleCirc"}
	riskLabels  = []string{"NoSex", "Never", "Union", "Split", "PWID", "FSW", "Clients", "MSM", "TGW"}
)

// axisLabeler turns an index along one axis into its CSV label.
type axisLabeler func(i int) string

// labelers returns one labeler per axis of a. Years are calendar years and
// ages are years of age; sex and risk group use names; CD4 and care
// indices are written as-is.
func labelers(a engine.Named, yearFirst int) ([]axisLabeler, error) {
	shape := a.Array.Shape()
	if len(shape) != len(a.Axes) {
		return nil, fmt.Errorf("%s: %d axes named for a %d-dimensional array", a.Name, len(a.Axes), len(shape))
	}
	out := make([]axisLabeler, len(shape))
	for k, axis := range a.Axes {
		n := shape[k]
		switch axis {
		case "Year":
			out[k] = func(i int) string { return strconv.Itoa(yearFirst + i) }
		case "Age":
			offset := 0
			if n == dims.NAgeAdult {
				offset = dims.AgeAdultMin
			}
			out[k] = func(i int) string { return strconv.Itoa(offset + i) }
		case "Sex":
			names, err := namesFor(a.Name, axis, n, sexLabels, sexMCLabels)
			if err != nil {
				return nil, err
			}
			out[k] = func(i int) string { return names[i] }
		case "Risk":
			names, err := namesFor(a.Name, axis, n, riskLabels)
			if err != nil {
				return nil, err
			}
			out[k] = func(i int) string { return names[i] }
		default:
			out[k] = strconv.Itoa
		}
	}
	return out, nil
}

func namesFor(array, axis string, n int, candidates ...[]string) ([]string, error) {
	for _, c := range candidates {
		if len(c) == n {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%s: no %s labels for an axis of length %d", array, axis, n)
}

// WriteArray writes a in long format: one column per axis followed by
// Value, one row per cell in row-major order.
func WriteArray(w io.Writer, a engine.Named, yearFirst int) error {
	labels, err := labelers(a, yearFirst)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(append(slices.Clone(a.Axes), "Value")); err != nil {
		return err
	}
	record := make([]string, len(a.Axes)+1)
	a.Array.Each(func(idx []int, v float64) {
		if err != nil {
			return
		}
		for k, i := range idx {
			record[k] = labels[k](i)
		}
		record[len(idx)] = strconv.FormatFloat(v, 'g', -1, 64)
		err = cw.Write(record)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", a.Name, err)
	}
	cw.Flush()
	return cw.Error()
}
