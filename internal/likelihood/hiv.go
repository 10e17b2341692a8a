package likelihood

import (
	"fmt"
	"io"
	"math"

	"github.com/goalsarm/goalsfit/internal/template"
)

// HIVObservation is one survey prevalence estimate.
type HIVObservation struct {
	Year       int
	Population string
	Gender     string
	AgeMin     int
	AgeMax     int
	Value      float64 // observed prevalence
	N          float64 // effective sample size
}

var hivColumns = []string{"Year", "Population", "Gender", "AgeMin", "AgeMax", "Value", "N"}

// ReadHIVPrevalence reads Year,Population,Gender,AgeMin,AgeMax,Value,N.
func ReadHIVPrevalence(r io.Reader, source string) ([]HIVObservation, error) {
	t, err := readTable(r, source, hivColumns...)
	if err != nil {
		return nil, err
	}
	obs := make([]HIVObservation, len(t.rows))
	for i := range t.rows {
		o := &obs[i]
		if err := t.fields(i, hivColumns, &o.Year, &o.Population, &o.Gender, &o.AgeMin, &o.AgeMax, &o.Value, &o.N); err != nil {
			return nil, err
		}
		if o.Value < 0 || o.Value > 1 || o.N <= 0 {
			return nil, fmt.Errorf("%s line %d: prevalence %g with sample size %g", source, i+2, o.Value, o.N)
		}
	}
	return obs, nil
}

// LoadHIVPrevalence reads a survey prevalence CSV file.
func LoadHIVPrevalence(path string) ([]HIVObservation, error) {
	return openFile(path, ReadHIVPrevalence)
}

// HIVPrevalence scores survey prevalence with a binomial likelihood on
// the effective number of positives.
type HIVPrevalence struct {
	obs []HIVObservation
}

// NewHIVPrevalence returns a service over obs.
func NewHIVPrevalence(obs []HIVObservation) *HIVPrevalence {
	return &HIVPrevalence{obs: obs}
}

// Name implements Service.
func (s *HIVPrevalence) Name() string { return NameHIVPrevalence }

// Observations returns the data the service scores.
func (s *HIVPrevalence) Observations() []HIVObservation { return s.obs }

// ProjectionTemplate implements Service.
func (s *HIVPrevalence) ProjectionTemplate() *template.Table {
	rows := make([]template.Row, len(s.obs))
	for i, o := range s.obs {
		rows[i] = template.Row{
			Year:       o.Year,
			Population: o.Population,
			Gender:     o.Gender,
			AgeMin:     o.AgeMin,
			AgeMax:     o.AgeMax,
			Measure:    template.Prevalence,
		}
	}
	return template.NewTable(rows)
}

// Likelihood implements Service.
func (s *HIVPrevalence) Likelihood(t *template.Table) (float64, error) {
	if len(t.Rows) != len(s.obs) {
		return 0, fmt.Errorf("%s: table has %d rows, want %d", s.Name(), len(t.Rows), len(s.obs))
	}
	var ll float64
	for i, o := range s.obs {
		ll += binomialLogProb(o.Value*o.N, o.N, t.Rows[i].Value)
	}
	return ll, nil
}

// binomialLogProb is the binomial log-probability of k successes in n
// trials, generalized to non-integer k and n through the gamma function.
func binomialLogProb(k, n, p float64) float64 {
	if math.IsNaN(p) {
		return math.Inf(-1)
	}
	lc := lgamma(n+1) - lgamma(k+1) - lgamma(n-k+1)
	switch {
	case p <= 0:
		if k == 0 {
			return lc
		}
		return math.Inf(-1)
	case p >= 1:
		if k == n {
			return lc
		}
		return math.Inf(-1)
	}
	return lc + k*math.Log(p) + (n-k)*math.Log1p(-p)
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}
