package likelihood

import (
	"fmt"
	"io"
	"math"

	"github.com/goalsarm/goalsfit/internal/template"
)

// DeathObservation is one vital-registration count of HIV deaths.
type DeathObservation struct {
	Year   int
	Gender string
	AgeMin int
	AgeMax int
	Value  float64
}

var deathColumns = []string{"Year", "Gender", "AgeMin", "AgeMax", "Value"}

// ReadDeaths reads Year,Gender,AgeMin,AgeMax,Value.
func ReadDeaths(r io.Reader, source string) ([]DeathObservation, error) {
	t, err := readTable(r, source, deathColumns...)
	if err != nil {
		return nil, err
	}
	obs := make([]DeathObservation, len(t.rows))
	for i := range t.rows {
		o := &obs[i]
		if err := t.fields(i, deathColumns, &o.Year, &o.Gender, &o.AgeMin, &o.AgeMax, &o.Value); err != nil {
			return nil, err
		}
		if o.Value < 0 {
			return nil, fmt.Errorf("%s line %d: negative death count %g", source, i+2, o.Value)
		}
	}
	return obs, nil
}

// LoadDeaths reads a deaths CSV file.
func LoadDeaths(path string) ([]DeathObservation, error) {
	return openFile(path, ReadDeaths)
}

// Deaths scores registered HIV deaths with a Poisson likelihood.
type Deaths struct {
	obs []DeathObservation
}

// NewDeaths returns a service over obs.
func NewDeaths(obs []DeathObservation) *Deaths {
	return &Deaths{obs: obs}
}

// Name implements Service.
func (s *Deaths) Name() string { return NameDeaths }

// Observations returns the data the service scores.
func (s *Deaths) Observations() []DeathObservation { return s.obs }

// ProjectionTemplate implements Service. Deaths are not reported by risk
// group, so every row covers all populations.
func (s *Deaths) ProjectionTemplate() *template.Table {
	rows := make([]template.Row, len(s.obs))
	for i, o := range s.obs {
		rows[i] = template.Row{
			Year:       o.Year,
			Population: "All",
			Gender:     o.Gender,
			AgeMin:     o.AgeMin,
			AgeMax:     o.AgeMax,
			Measure:    template.Deaths,
		}
	}
	return template.NewTable(rows)
}

// Likelihood implements Service.
func (s *Deaths) Likelihood(t *template.Table) (float64, error) {
	if len(t.Rows) != len(s.obs) {
		return 0, fmt.Errorf("%s: table has %d rows, want %d", s.Name(), len(t.Rows), len(s.obs))
	}
	var ll float64
	for i, o := range s.obs {
		ll += poissonLogProb(o.Value, t.Rows[i].Value)
	}
	return ll, nil
}

func poissonLogProb(k, lambda float64) float64 {
	switch {
	case math.IsNaN(lambda) || lambda < 0:
		return math.Inf(-1)
	case lambda == 0:
		if k == 0 {
			return 0
		}
		return math.Inf(-1)
	}
	return k*math.Log(lambda) - lambda - lgamma(k+1)
}
