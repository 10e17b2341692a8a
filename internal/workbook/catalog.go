package workbook

import (
	"fmt"
	"maps"
	"slices"

	"github.com/goalsarm/goalsfit/internal/prior"
)

// Catalog builds the parameter catalog from the fitting entries marked for
// fitting. Entries with fit: false are skipped.
func (w *Workbook) Catalog() (*prior.Set, error) {
	var params []*prior.Parameter
	for _, name := range slices.Sorted(maps.Keys(w.Fitting)) {
		entry := w.Fitting[name]
		if !entry.Fit {
			continue
		}
		p, err := prior.NewParameter(name, entry.Initial, entry.Prior, entry.Par1, entry.Par2)
		if err != nil {
			return nil, fmt.Errorf("fitting entry %q: %w", name, err)
		}
		params = append(params, p)
	}
	return prior.NewSet(params...)
}
