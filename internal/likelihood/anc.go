package likelihood

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/goalsarm/goalsfit/internal/template"
	"github.com/goalsarm/goalsfit/internal/workbook"
)

// ANC observation types.
const (
	ANCSentinel = "SS" // sentinel surveillance
	ANCRoutine  = "RT" // routine testing
)

// CensusSite marks national census-like ANC observations.
const CensusSite = "Census"

// ANCObservation is one antenatal-clinic prevalence estimate.
type ANCObservation struct {
	Site       string
	Year       int
	Type       string
	Prevalence float64
	N          float64
}

var ancColumns = []string{"Site", "Year", "Type", "Prevalence", "N"}

// ReadANC reads Site,Year,Type,Prevalence,N.
func ReadANC(r io.Reader, source string) ([]ANCObservation, error) {
	t, err := readTable(r, source, ancColumns...)
	if err != nil {
		return nil, err
	}
	obs := make([]ANCObservation, len(t.rows))
	for i := range t.rows {
		o := &obs[i]
		if err := t.fields(i, ancColumns, &o.Site, &o.Year, &o.Type, &o.Prevalence, &o.N); err != nil {
			return nil, err
		}
		o.Type = strings.ToUpper(o.Type)
		if o.Type != ANCSentinel && o.Type != ANCRoutine {
			return nil, fmt.Errorf("%s line %d: unknown ANC type %q", source, i+2, o.Type)
		}
		if o.Prevalence < 0 || o.Prevalence > 1 || o.N <= 0 {
			return nil, fmt.Errorf("%s line %d: prevalence %g with sample size %g", source, i+2, o.Prevalence, o.N)
		}
	}
	return obs, nil
}

// LoadANC reads an ANC CSV file.
func LoadANC(path string) ([]ANCObservation, error) {
	return openFile(path, ReadANC)
}

// ANC scores clinic prevalence on the probit scale. The modeled value is
// the share of births to HIV-positive mothers, shifted by a bias term for
// the observation type; the variance is the sampling variance of the
// observed probit plus a site or census inflation term.
type ANC struct {
	obs    []ANCObservation
	years  []int
	params workbook.LikelihoodParams
}

var _ ParameterSetter = (*ANC)(nil)

// NewANC returns a service over obs.
func NewANC(obs []ANCObservation) *ANC {
	var years []int
	for _, o := range obs {
		years = append(years, o.Year)
	}
	slices.Sort(years)
	return &ANC{obs: obs, years: slices.Compact(years)}
}

// Name implements Service.
func (s *ANC) Name() string { return NameANC }

// Observations returns the data the service scores.
func (s *ANC) Observations() []ANCObservation { return s.obs }

// SetParameters implements ParameterSetter.
func (s *ANC) SetParameters(p workbook.LikelihoodParams) { s.params = p }

// ProjectionTemplate implements Service: one row per observed year.
func (s *ANC) ProjectionTemplate() *template.Table {
	rows := make([]template.Row, len(s.years))
	for i, y := range s.years {
		rows[i] = template.Row{Year: y, Population: "All", Gender: "Women", Measure: template.ANCPrevalence}
	}
	return template.NewTable(rows)
}

// Likelihood implements Service.
func (s *ANC) Likelihood(t *template.Table) (float64, error) {
	if len(t.Rows) != len(s.years) {
		return 0, fmt.Errorf("%s: table has %d rows, want %d", s.Name(), len(t.Rows), len(s.years))
	}
	est := make(map[int]float64, len(t.Rows))
	for _, r := range t.Rows {
		est[r.Year] = r.Value
	}

	var ll float64
	for _, o := range s.obs {
		p := est[o.Year]
		if math.IsNaN(p) || p <= 0 || p >= 1 {
			return math.Inf(-1), nil
		}
		mu := distuv.UnitNormal.Quantile(p) + s.bias(o)

		// Continuity-adjusted observed prevalence keeps the probit finite.
		q := (o.Prevalence*o.N + 0.5) / (o.N + 1)
		z := distuv.UnitNormal.Quantile(q)
		dens := distuv.UnitNormal.Prob(z)
		variance := q*(1-q)/(o.N*dens*dens) + s.inflation(o)

		ll += distuv.Normal{Mu: mu, Sigma: math.Sqrt(variance)}.LogProb(z)
	}
	return ll, nil
}

func (s *ANC) bias(o ANCObservation) float64 {
	if o.Site == CensusSite {
		return 0
	}
	if o.Type == ANCRoutine {
		return s.params.ANCRTBias
	}
	return s.params.ANCSSBias
}

func (s *ANC) inflation(o ANCObservation) float64 {
	if o.Site == CensusSite {
		return s.params.VarInflCensus
	}
	return s.params.VarInflSite
}
