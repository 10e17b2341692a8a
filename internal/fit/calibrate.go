package fit

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// Method names an optimization algorithm.
type Method string

const (
	// NelderMead is the derivative-free simplex method.
	NelderMead Method = "nelder-mead"
	// BFGS is quasi-Newton with central finite-difference gradients.
	BFGS Method = "bfgs"
)

// ParseMethod accepts a method name, case-insensitively. The empty string
// selects NelderMead.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return NelderMead, nil
	case NelderMead, BFGS:
		return m, nil
	}
	return "", fmt.Errorf("unknown optimization method %q (want %s or %s)", s, NelderMead, BFGS)
}

// Settings bounds the optimizer. Zero values select the defaults.
type Settings struct {
	Method          Method
	MaxEvaluations  int
	MaxIterations   int
	Tolerance       float64 // absolute change in -log posterior
	StallIterations int     // iterations below Tolerance before converging
}

// DefaultSettings returns the settings used when none are given.
func DefaultSettings() Settings {
	return Settings{
		Method:          NelderMead,
		MaxEvaluations:  2000,
		Tolerance:       1e-8,
		StallIterations: 50,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Method == "" {
		s.Method = d.Method
	}
	if s.MaxEvaluations <= 0 {
		s.MaxEvaluations = d.MaxEvaluations
	}
	if s.Tolerance <= 0 {
		s.Tolerance = d.Tolerance
	}
	if s.StallIterations <= 0 {
		s.StallIterations = d.StallIterations
	}
	return s
}

// Diagnostics describes a finished calibration.
type Diagnostics struct {
	Method          Method        `json:"method"`
	Converged       bool          `json:"converged"`
	Status          string        `json:"status"`
	Message         string        `json:"message,omitempty"`
	Evaluations     int64         `json:"evaluations"`
	FuncEvaluations int           `json:"func_evaluations"`
	MajorIterations int           `json:"major_iterations"`
	Keys            []string      `json:"keys"`
	Vector          []float64     `json:"vector"`
	LogPrior        float64       `json:"log_prior"`
	LogLikelihood   float64       `json:"log_likelihood"`
	LogPosterior    float64       `json:"log_posterior"`
	Sources         []SourceScore `json:"sources"`
	Runtime         time.Duration `json:"runtime"`
}

// Calibrate maximizes the log posterior within the catalog supports,
// starting from the catalog's initial values. Each proposal is clipped to
// the supports before it is evaluated. On return the catalog's fitted
// values hold the best vector and the model has been projected at it.
// Nelder-Mead starts from the simplex built by initialSimplex, whose
// vertices are evaluated up front.
//
// Failure to converge is not an error; it is reported in the diagnostics.
// Errors are returned for failed evaluations, sink errors and ctx
// cancellation.
func (c *Calibrator) Calibrate(ctx context.Context, s Settings) (*Diagnostics, error) {
	s = s.withDefaults()
	start := time.Now()

	var (
		method optimize.Method
		nm     *optimize.NelderMead
	)
	switch s.Method {
	case NelderMead:
		nm = &optimize.NelderMead{}
		method = nm
	case BFGS:
		method = &optimize.BFGS{}
	default:
		return nil, fmt.Errorf("unknown optimization method %q", s.Method)
	}

	x0 := c.params.InitialVector()
	c.params.Clip(x0)

	var evalErr error
	proposal := make([]float64, len(x0))
	objective := func(x []float64) float64 {
		if evalErr != nil {
			return math.Inf(1)
		}
		copy(proposal, x)
		c.params.Clip(proposal)
		ev, err := c.evaluate(proposal)
		if err != nil {
			evalErr = err
			return math.Inf(1)
		}
		return negate(ev.LogPosterior)
	}

	if nm != nil {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("calibration cancelled: %w", err)
		}
		lo, hi := c.params.Bounds()
		nm.InitialVertices = initialSimplex(x0, lo, hi)
		nm.InitialValues = make([]float64, len(nm.InitialVertices))
		for i, v := range nm.InitialVertices {
			nm.InitialValues[i] = objective(v)
		}
		if evalErr != nil {
			return nil, evalErr
		}
	}

	problem := optimize.Problem{
		Func: objective,
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			if evalErr != nil {
				return optimize.Failure, evalErr
			}
			return optimize.NotTerminated, nil
		},
	}
	if s.Method == BFGS {
		problem.Grad = func(grad, x []float64) {
			fd.Gradient(grad, objective, x, &fd.Settings{Formula: fd.Central})
		}
	}

	settings := &optimize.Settings{
		FuncEvaluations: s.MaxEvaluations,
		MajorIterations: s.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   s.Tolerance,
			Iterations: s.StallIterations,
		},
		Recorder: &iterationLog{c: c},
	}

	c.logger.Info("calibration started",
		"method", s.Method,
		"parameters", c.params.Len(),
		"max_evaluations", s.MaxEvaluations,
	)

	res, optErr := optimize.Minimize(problem, x0, settings, method)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("calibration cancelled: %w", ctxErr)
	}
	if evalErr != nil {
		return nil, evalErr
	}
	if res == nil {
		return nil, fmt.Errorf("optimize: %w", optErr)
	}
	if math.IsInf(res.F, 1) {
		return nil, ErrNoFiniteEvaluation
	}

	best := slices.Clone(res.X)
	c.params.Clip(best)
	if err := c.params.SetFitted(best); err != nil {
		return nil, err
	}

	// Re-evaluate so the model and the estimate tables reflect the fitted
	// vector, and the diagnostics carry its per-source breakdown.
	final, err := c.evaluate(best)
	if err != nil {
		return nil, fmt.Errorf("evaluate fitted parameters: %w", err)
	}

	d := &Diagnostics{
		Method:          s.Method,
		Converged:       converged(res.Status),
		Status:          res.Status.String(),
		Evaluations:     c.counter.Current(),
		FuncEvaluations: res.Stats.FuncEvaluations,
		MajorIterations: res.Stats.MajorIterations,
		Keys:            c.params.Keys(),
		Vector:          best,
		LogPrior:        final.LogPrior,
		LogLikelihood:   final.LogLikelihood,
		LogPosterior:    final.LogPosterior,
		Sources:         final.Sources,
		Runtime:         time.Since(start),
	}
	switch {
	case optErr != nil:
		d.Message = optErr.Error()
	case !floats.Equal(best, res.X):
		d.Message = "optimizer location was clipped to the parameter supports"
	}

	c.logger.Info("calibration finished",
		"converged", d.Converged,
		"status", d.Status,
		"evaluations", d.Evaluations,
		"log_posterior", d.LogPosterior,
	)
	return d, nil
}

// Initial simplex steps, relative to the starting value.
const (
	simplexStep     = 0.05
	simplexZeroStep = 0.00025
)

// initialSimplex returns x0 followed by one vertex per coordinate, with that
// coordinate moved by 5% of its value (0.00025 when it is 0). A step that
// would leave [lo, hi] is taken in the opposite direction, and the result
// is clipped.
func initialSimplex(x0, lo, hi []float64) [][]float64 {
	vertices := make([][]float64, 0, len(x0)+1)
	vertices = append(vertices, slices.Clone(x0))
	for i, x := range x0 {
		step := simplexStep * x
		if x == 0 {
			step = simplexZeroStep
		}
		v := slices.Clone(x0)
		v[i] = x + step
		if v[i] < lo[i] || v[i] > hi[i] {
			v[i] = x - step
		}
		v[i] = math.Min(math.Max(v[i], lo[i]), hi[i])
		vertices = append(vertices, v)
	}
	return vertices
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.MethodConverge, optimize.FunctionConvergence,
		optimize.GradientThreshold, optimize.StepConvergence, optimize.FunctionThreshold:
		return true
	}
	return false
}

// iterationLog logs each major iteration of the optimizer.
type iterationLog struct {
	c *Calibrator
}

func (r *iterationLog) Init() error { return nil }

func (r *iterationLog) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op&optimize.MajorIteration == 0 {
		return nil
	}
	r.c.logger.Info("iteration",
		"iteration", stats.MajorIterations,
		"evaluations", stats.FuncEvaluations,
		"log_posterior", -loc.F,
	)
	return nil
}
