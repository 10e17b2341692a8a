package report

import (
	"cmp"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/goalsarm/goalsfit/internal/dims"
	"github.com/goalsarm/goalsfit/internal/engine"
	"github.com/goalsarm/goalsfit/internal/likelihood"
	"github.com/goalsarm/goalsfit/internal/template"
)

const (
	plotWidth  = 1600
	plotHeight = 900
)

// Observations are the data plotted against the model.
type Observations struct {
	ANC    []likelihood.ANCObservation
	HIV    []likelihood.HIVObservation
	Deaths []likelihood.DeathObservation
}

// series is one named line or point set.
type series struct {
	name   string
	points bool
	paired bool // points drawn in the color of the preceding line
	x, y   []float64
}

func (s *series) add(x, y float64) {
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return
	}
	s.x = append(s.x, x)
	s.y = append(s.y, y)
}

// group is a (population, gender, age range) stratum shared by observations
// and the model series drawn against them.
type group struct {
	population, gender string
	ageMin, ageMax     int
}

func (g group) label() string {
	if g.population == "" {
		return fmt.Sprintf("%s %d-%d", g.gender, g.ageMin, g.ageMax)
	}
	return fmt.Sprintf("%s %s %d-%d", g.population, g.gender, g.ageMin, g.ageMax)
}

func (g group) adult() bool {
	return g.ageMin >= dims.AgeAdultMin && g.ageMax <= dims.AgeAdultMax && g.ageMin <= g.ageMax
}

func compareGroups(a, b group) int {
	return cmp.Or(
		cmp.Compare(a.population, b.population),
		cmp.Compare(a.gender, b.gender),
		cmp.Compare(a.ageMin, b.ageMin),
		cmp.Compare(a.ageMax, b.ageMax),
	)
}

// modelSeries fills one row per projection year for every group and
// returns a line per group, in group order.
func modelSeries(f *template.Filler, out *engine.Outputs, groups []group, measure template.Measure) ([]series, error) {
	var rows []template.Row
	for _, g := range groups {
		for y := out.YearFirst; y <= out.YearFinal; y++ {
			rows = append(rows, template.Row{
				Year:       y,
				Population: g.population,
				Gender:     g.gender,
				AgeMin:     g.ageMin,
				AgeMax:     g.ageMax,
				Measure:    measure,
			})
		}
	}
	t := template.NewTable(rows)
	if err := f.Fill(t, out); err != nil {
		return nil, err
	}
	lines := make([]series, len(groups))
	for i := range t.Rows {
		g := i / out.Years()
		lines[g].name = "model " + groups[g].label()
		lines[g].add(float64(t.Rows[i].Year), t.Rows[i].Value)
	}
	return lines, nil
}

// ancSeries plots each ANC site (and the census) against modelled
// prevalence among pregnant women.
func ancSeries(out *engine.Outputs, obs []likelihood.ANCObservation) []series {
	bySite := make(map[string]*series)
	var sites []string
	for _, o := range obs {
		s, ok := bySite[o.Site]
		if !ok {
			name := "ANC-" + o.Type + " " + o.Site
			if o.Site == likelihood.CensusSite {
				name = likelihood.CensusSite
			}
			s = &series{name: name, points: true}
			bySite[o.Site] = s
			sites = append(sites, o.Site)
		}
		s.add(float64(o.Year), o.Prevalence)
	}

	model := series{name: "model"}
	for t, p := range out.ANCPrevalence() {
		model.add(float64(out.YearFirst+t), p)
	}
	all := []series{model}
	for _, site := range sites {
		all = append(all, *bySite[site])
	}
	return all
}

func hivSeries(f *template.Filler, out *engine.Outputs, obs []likelihood.HIVObservation) ([]series, error) {
	points := make(map[group]*series)
	for _, o := range obs {
		g := group{o.Population, o.Gender, o.AgeMin, o.AgeMax}
		if !g.adult() {
			continue
		}
		s, ok := points[g]
		if !ok {
			s = &series{name: g.label(), points: true}
			points[g] = s
		}
		s.add(float64(o.Year), o.Value)
	}
	return withModel(f, out, points, template.Prevalence)
}

func deathSeries(f *template.Filler, out *engine.Outputs, obs []likelihood.DeathObservation) ([]series, error) {
	points := make(map[group]*series)
	for _, o := range obs {
		g := group{"All", o.Gender, o.AgeMin, o.AgeMax}
		if !g.adult() {
			continue
		}
		s, ok := points[g]
		if !ok {
			s = &series{name: g.label(), points: true}
			points[g] = s
		}
		s.add(float64(o.Year), o.Value)
	}
	return withModel(f, out, points, template.Deaths)
}

// withModel pairs each group's observed points with its model line.
func withModel(f *template.Filler, out *engine.Outputs, points map[group]*series, m template.Measure) ([]series, error) {
	groups := make([]group, 0, len(points))
	for g := range points {
		groups = append(groups, g)
	}
	slices.SortFunc(groups, compareGroups)

	lines, err := modelSeries(f, out, groups, m)
	if err != nil {
		return nil, err
	}
	all := make([]series, 0, 2*len(groups))
	for i, g := range groups {
		p := *points[g]
		p.paired = true
		all = append(all, lines[i], p)
	}
	return all, nil
}

// renderPlot draws the series as one PNG chart.
func renderPlot(w io.Writer, title, yName string, all []series) error {
	var (
		cs         []chart.Series
		xMin, xMax = math.Inf(1), math.Inf(-1)
		yMin, yMax = math.Inf(1), math.Inf(-1)
		color      = -1
	)
	for _, s := range all {
		if len(s.x) == 0 {
			continue
		}
		if !s.paired || color < 0 {
			color++
		}
		style := chart.Style{
			StrokeColor: chart.GetDefaultColor(color),
			StrokeWidth: 2,
		}
		if s.points {
			style = chart.Style{
				StrokeWidth: chart.Disabled,
				DotColor:    chart.GetDefaultColor(color),
				DotWidth:    4,
			}
		}
		cs = append(cs, chart.ContinuousSeries{Name: s.name, Style: style, XValues: s.x, YValues: s.y})
		xMin = math.Min(xMin, slices.Min(s.x))
		xMax = math.Max(xMax, slices.Max(s.x))
		yMin = math.Min(yMin, slices.Min(s.y))
		yMax = math.Max(yMax, slices.Max(s.y))
	}
	if len(cs) == 0 {
		return fmt.Errorf("%s: nothing to plot", title)
	}
	yMin = math.Min(yMin, 0)
	if yMax <= yMin {
		yMax = yMin + 1
	}
	if xMax <= xMin {
		xMax = xMin + 1
	}

	graph := chart.Chart{
		Title:  title,
		Width:  plotWidth,
		Height: plotHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "Year",
			Range:          &chart.ContinuousRange{Min: xMin, Max: xMax},
			ValueFormatter: func(v any) string { return fmt.Sprintf("%.0f", v) },
		},
		YAxis: chart.YAxis{
			Name:  yName,
			Range: &chart.ContinuousRange{Min: yMin, Max: yMax * 1.05},
		},
		Series: cs,
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}
	return graph.Render(chart.PNG, w)
}
