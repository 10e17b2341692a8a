// Package fit calibrates model parameters by maximizing the posterior
// density of the surveillance data.
//
// A Calibrator owns one injector (and through it one engine) plus the
// observation services. Evaluations are strictly sequential: each call
// injects its vector, projects, fills every enabled estimate table and
// scores it before the next vector is proposed.
package fit

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/goalsarm/goalsfit/internal/inject"
	"github.com/goalsarm/goalsfit/internal/likelihood"
	"github.com/goalsarm/goalsfit/internal/prior"
	"github.com/goalsarm/goalsfit/internal/template"
)

// Source is an observation service and whether it contributes to the
// likelihood. Disabled sources score 0.
type Source struct {
	Service likelihood.Service
	Enabled bool
}

// SourceScore is one source's contribution to an evaluation.
type SourceScore struct {
	Name          string  `json:"name"`
	Enabled       bool    `json:"enabled"`
	LogLikelihood float64 `json:"log_likelihood"`
}

// Evaluation is one scored parameter vector.
type Evaluation struct {
	Seq           int64         `json:"seq"`
	Vector        []float64     `json:"vector"`
	LogPrior      float64       `json:"log_prior"`
	LogLikelihood float64       `json:"log_likelihood"`
	LogPosterior  float64       `json:"log_posterior"`
	Sources       []SourceScore `json:"sources"`
}

// EvaluationSink receives every evaluation in sequence order. An error
// from the sink aborts calibration.
type EvaluationSink interface {
	RecordEvaluation(ev Evaluation) error
}

type source struct {
	Source
	table *template.Table
}

// Calibrator evaluates and maximizes the posterior.
type Calibrator struct {
	params  *prior.Set
	inj     *inject.Injector
	filler  *template.Filler
	sources []source
	sink    EvaluationSink
	counter *Counter
	logger  *slog.Logger
}

// Option configures a Calibrator.
type Option func(*Calibrator)

// WithSink records every evaluation to s.
func WithSink(s EvaluationSink) Option {
	return func(c *Calibrator) { c.sink = s }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Calibrator) { c.logger = l }
}

// WithLabelPolicy sets how estimate tables treat unknown category labels.
// The default is template.PolicyStrict.
func WithLabelPolicy(p template.Policy) Option {
	return func(c *Calibrator) { c.filler.Policy = p }
}

// WithCounter numbers evaluations from an existing counter.
func WithCounter(n *Counter) Option {
	return func(c *Calibrator) { c.counter = n }
}

// New builds a calibrator. The injector must be bound to exactly the
// catalog's keys, in catalog order. Every enabled source's estimate table
// is built and compiled here, so label errors surface before any
// projection runs.
func New(params *prior.Set, inj *inject.Injector, sources []Source, opts ...Option) (*Calibrator, error) {
	if !slices.Equal(inj.Keys(), params.Keys()) {
		return nil, fmt.Errorf("injector keys %v do not match catalog keys %v", inj.Keys(), params.Keys())
	}
	m := inj.Model()
	c := &Calibrator{
		params:  params,
		inj:     inj,
		filler:  &template.Filler{YearFirst: m.YearFirst, YearFinal: m.YearFinal},
		counter: NewCounter(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.filler.Logger = c.logger

	for _, s := range sources {
		src := source{Source: s}
		if s.Enabled {
			src.table = s.Service.ProjectionTemplate()
			if err := c.filler.Compile(src.table); err != nil {
				return nil, fmt.Errorf("%s estimate table: %w", s.Service.Name(), err)
			}
		}
		c.sources = append(c.sources, src)
	}
	return c, nil
}

// Params returns the catalog being calibrated.
func (c *Calibrator) Params() *prior.Set { return c.params }

// Evaluations returns the number of posterior evaluations so far.
func (c *Calibrator) Evaluations() int64 { return c.counter.Current() }

// Table returns the most recently filled estimate table of the named
// source, or nil if the source is disabled or unknown.
func (c *Calibrator) Table(name string) *template.Table {
	for _, s := range c.sources {
		if s.Service.Name() == name {
			return s.table
		}
	}
	return nil
}

// PriorLogDensity sums the prior log densities of vec in key order.
func (c *Calibrator) PriorLogDensity(vec []float64) (float64, error) {
	return c.params.VectorLogDensity(vec)
}

// LogLikelihood injects vec, projects, and scores every enabled source.
func (c *Calibrator) LogLikelihood(vec []float64) (float64, []SourceScore, error) {
	if err := c.inj.Apply(vec); err != nil {
		return 0, nil, fmt.Errorf("inject parameters: %w", err)
	}
	m := c.inj.Model()
	for _, s := range c.sources {
		if ps, ok := s.Service.(likelihood.ParameterSetter); ok {
			ps.SetParameters(m.Likelihood)
		}
	}

	var total float64
	scores := make([]SourceScore, len(c.sources))
	for i, s := range c.sources {
		scores[i] = SourceScore{Name: s.Service.Name(), Enabled: s.Enabled}
		if !s.Enabled {
			continue
		}
		if err := c.filler.Fill(s.table, m.Outputs); err != nil {
			return 0, nil, fmt.Errorf("%s estimates: %w", s.Service.Name(), err)
		}
		ll, err := s.Service.Likelihood(s.table)
		if err != nil {
			return 0, nil, fmt.Errorf("%s likelihood: %w", s.Service.Name(), err)
		}
		scores[i].LogLikelihood = ll
		total += ll
	}
	return total, scores, nil
}

// LogPosterior returns LogLikelihood(vec) + PriorLogDensity(vec). The
// likelihood is evaluated first, so the model always reflects vec
// afterwards.
func (c *Calibrator) LogPosterior(vec []float64) (float64, error) {
	ev, err := c.evaluate(vec)
	if err != nil {
		return 0, err
	}
	return ev.LogPosterior, nil
}

func (c *Calibrator) evaluate(vec []float64) (Evaluation, error) {
	ll, scores, err := c.LogLikelihood(vec)
	if err != nil {
		return Evaluation{}, err
	}
	lp, err := c.PriorLogDensity(vec)
	if err != nil {
		return Evaluation{}, err
	}
	ev := Evaluation{
		Seq:           c.counter.Next(),
		Vector:        slices.Clone(vec),
		LogPrior:      lp,
		LogLikelihood: ll,
		LogPosterior:  ll + lp,
		Sources:       scores,
	}

	attrs := []any{"seq", ev.Seq, "log_prior", lp, "log_posterior", ev.LogPosterior}
	for _, s := range scores {
		attrs = append(attrs, s.Name, s.LogLikelihood)
	}
	attrs = append(attrs, "vector", ev.Vector)
	c.logger.Debug("evaluation", attrs...)

	if c.sink != nil {
		if err := c.sink.RecordEvaluation(ev); err != nil {
			return Evaluation{}, fmt.Errorf("record evaluation %d: %w", ev.Seq, err)
		}
	}
	return ev, nil
}

// ErrNoFiniteEvaluation is returned when the optimizer never found a
// vector with finite posterior density.
var ErrNoFiniteEvaluation = errors.New("no parameter vector had finite posterior density")

// negate turns a log posterior into an objective to minimize. Non-finite
// and NaN densities become +Inf.
func negate(lp float64) float64 {
	if math.IsNaN(lp) || math.IsInf(lp, 0) {
		return math.Inf(1)
	}
	return -lp
}
