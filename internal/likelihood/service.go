// Package likelihood scores filled estimate tables against surveillance
// data.
//
// Each data source is a Service: it supplies an empty estimate table shaped
// like its observations and returns the log-likelihood of the observations
// given a filled copy of that table. Services whose likelihood depends on
// nuisance terms carried in the workbook (site bias, variance inflation)
// also implement ParameterSetter.
package likelihood

import (
	"github.com/goalsarm/goalsfit/internal/template"
	"github.com/goalsarm/goalsfit/internal/workbook"
)

// Service is one observation-likelihood source.
type Service interface {
	// Name identifies the source in diagnostics and reports.
	Name() string
	// ProjectionTemplate returns a new, unfilled estimate table aligned
	// with the observations.
	ProjectionTemplate() *template.Table
	// Likelihood returns the log-likelihood of the observations given a
	// table previously returned by ProjectionTemplate and then filled.
	Likelihood(t *template.Table) (float64, error)
}

// ParameterSetter is implemented by services with nuisance parameters.
type ParameterSetter interface {
	SetParameters(p workbook.LikelihoodParams)
}

// Source names.
const (
	NameANC           = "anc"
	NameHIVPrevalence = "hiv"
	NameDeaths        = "deaths"
)
