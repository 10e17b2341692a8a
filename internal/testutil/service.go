package testutil

import (
	"fmt"

	"github.com/goalsarm/goalsfit/internal/template"
	"github.com/goalsarm/goalsfit/internal/workbook"
)

// QuadraticService is an observation service with a single estimate row
// whose log-likelihood is -Scale·(value-Target)². Its maximum is exactly
// at value == Target.
type QuadraticService struct {
	ServiceName string
	Row         template.Row
	Target      float64
	Scale       float64

	// Calls counts Likelihood calls.
	Calls int
	// Params holds the last parameters pushed through SetParameters.
	Params workbook.LikelihoodParams
}

// Name implements likelihood.Service.
func (s *QuadraticService) Name() string { return s.ServiceName }

// ProjectionTemplate implements likelihood.Service.
func (s *QuadraticService) ProjectionTemplate() *template.Table {
	return template.NewTable([]template.Row{s.Row})
}

// Likelihood implements likelihood.Service.
func (s *QuadraticService) Likelihood(t *template.Table) (float64, error) {
	s.Calls++
	if len(t.Rows) != 1 {
		return 0, fmt.Errorf("%s: table has %d rows, want 1", s.ServiceName, len(t.Rows))
	}
	d := t.Rows[0].Value - s.Target
	return -s.Scale * d * d, nil
}

// SetParameters implements likelihood.ParameterSetter.
func (s *QuadraticService) SetParameters(p workbook.LikelihoodParams) { s.Params = p }
