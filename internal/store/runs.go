package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/goalsarm/goalsfit/internal/fit"
	"github.com/goalsarm/goalsfit/internal/prior"
)

// Run statuses other than the optimizer's own status strings.
const (
	StatusRunning = "running"
	StatusAborted = "aborted"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("run not found")

// RunInfo describes a run being started.
type RunInfo struct {
	Command  string
	Workbook string
	Method   fit.Method
}

// Run is one row of the runs table.
type Run struct {
	ID           string
	Command      string
	Workbook     string
	Fingerprint  string
	Method       string
	Keys         []string
	StartedAt    time.Time
	FinishedAt   time.Time // zero while running
	Converged    bool
	Status       string
	Message      string
	Evaluations  int64
	LogPosterior float64 // NaN until finished
}

// FittedParameter is one row of fitted_parameters.
type FittedParameter struct {
	Name    string
	Initial float64
	Fitted  float64 // NaN if the run did not produce a value
	Family  string
	Shape1  float64
	Shape2  float64
}

// RunLog appends evaluations to one run. It implements fit.EvaluationSink.
type RunLog struct {
	s   *Store
	ctx context.Context
	id  string
	n   int64
}

// BeginRun inserts a running run for params and returns its log. ctx bounds
// every later write through the log.
func (s *Store) BeginRun(ctx context.Context, info RunInfo, params *prior.Set) (*RunLog, error) {
	fp, err := Fingerprint(params)
	if err != nil {
		return nil, err
	}
	keys, err := json.Marshal(params.Keys())
	if err != nil {
		return nil, fmt.Errorf("marshal keys: %w", err)
	}

	id := s.ids.Generate()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, command, workbook, catalog_fingerprint, method, keys, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, info.Command, info.Workbook, fp, string(info.Method), string(keys), formatTime(s.now()), StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &RunLog{s: s, ctx: ctx, id: id}, nil
}

// ID returns the run's identifier.
func (l *RunLog) ID() string { return l.id }

// RecordEvaluation stores ev. Writing the same seq twice is an error.
func (l *RunLog) RecordEvaluation(ev fit.Evaluation) error {
	vector, err := json.Marshal(finiteOrNull(ev.Vector))
	if err != nil {
		return fmt.Errorf("marshal vector: %w", err)
	}
	sources, err := json.Marshal(toSourceRows(ev.Sources))
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	_, err = l.s.db.ExecContext(l.ctx, `
		INSERT INTO evaluations (run_id, seq, vector, log_prior, log_likelihood, log_posterior, sources)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, l.id, ev.Seq, string(vector), nullFloat(ev.LogPrior), nullFloat(ev.LogLikelihood), nullFloat(ev.LogPosterior), string(sources))
	if err != nil {
		return fmt.Errorf("insert evaluation %d: %w", ev.Seq, err)
	}
	l.n++
	return nil
}

// Finish stores the diagnostics and the catalog's fitted values in one
// transaction.
func (l *RunLog) Finish(ctx context.Context, d *fit.Diagnostics, params *prior.Set) error {
	tx, err := l.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finish: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, converged = ?, status = ?, message = ?, evaluations = ?, log_posterior = ?
		WHERE id = ?
	`, formatTime(l.s.now()), d.Converged, d.Status, d.Message, d.Evaluations, nullFloat(d.LogPosterior), l.id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, l.id)
	}

	for i := 0; i < params.Len(); i++ {
		p := params.At(i)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO fitted_parameters (run_id, position, name, initial, fitted, family, shape1, shape2)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, l.id, i, p.Name, p.Initial, nullFloat(p.Fitted), string(p.Family), p.Shape1, p.Shape2)
		if err != nil {
			return fmt.Errorf("insert fitted %s: %w", p.Name, err)
		}
	}
	return tx.Commit()
}

// Abort marks the run as ended by cause. Evaluations already written stay.
func (l *RunLog) Abort(ctx context.Context, cause error) error {
	_, err := l.s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, status = ?, message = ?, evaluations = ?
		WHERE id = ?
	`, formatTime(l.s.now()), StatusAborted, cause.Error(), l.n, l.id)
	if err != nil {
		return fmt.Errorf("abort run: %w", err)
	}
	return nil
}

const runColumns = `id, command, workbook, catalog_fingerprint, method, keys, started_at,
	finished_at, converged, status, message, evaluations, log_posterior`

// ListRuns returns up to limit runs, newest first. A limit of 0 returns
// all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// ReadEvaluations returns a run's evaluations in seq order. Log densities
// stored as NULL read back as -Inf; NULL vector entries read back as NaN.
func (s *Store) ReadEvaluations(ctx context.Context, runID string) ([]fit.Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, vector, log_prior, log_likelihood, log_posterior, sources
		FROM evaluations WHERE run_id = ? ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	var evals []fit.Evaluation
	for rows.Next() {
		var (
			ev              fit.Evaluation
			vector, sources string
			lp, ll, post    sql.NullFloat64
		)
		if err := rows.Scan(&ev.Seq, &vector, &lp, &ll, &post, &sources); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		var vec []*float64
		if err := json.Unmarshal([]byte(vector), &vec); err != nil {
			return nil, fmt.Errorf("evaluation %d vector: %w", ev.Seq, err)
		}
		ev.Vector = fromNullable(vec, math.NaN())
		var srcs []sourceRow
		if err := json.Unmarshal([]byte(sources), &srcs); err != nil {
			return nil, fmt.Errorf("evaluation %d sources: %w", ev.Seq, err)
		}
		ev.Sources = fromSourceRows(srcs)
		ev.LogPrior = orInf(lp)
		ev.LogLikelihood = orInf(ll)
		ev.LogPosterior = orInf(post)
		evals = append(evals, ev)
	}
	return evals, rows.Err()
}

// ReadFitted returns a finished run's parameters in catalog order.
func (s *Store) ReadFitted(ctx context.Context, runID string) ([]FittedParameter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, initial, fitted, family, shape1, shape2
		FROM fitted_parameters WHERE run_id = ? ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query fitted parameters: %w", err)
	}
	defer rows.Close()

	var out []FittedParameter
	for rows.Next() {
		var (
			p      FittedParameter
			fitted sql.NullFloat64
		)
		if err := rows.Scan(&p.Name, &p.Initial, &fitted, &p.Family, &p.Shape1, &p.Shape2); err != nil {
			return nil, fmt.Errorf("scan fitted parameter: %w", err)
		}
		p.Fitted = math.NaN()
		if fitted.Valid {
			p.Fitted = fitted.Float64
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r             Run
		keys, started string
		finished      sql.NullString
		logPosterior  sql.NullFloat64
	)
	err := sc.Scan(&r.ID, &r.Command, &r.Workbook, &r.Fingerprint, &r.Method, &keys, &started,
		&finished, &r.Converged, &r.Status, &r.Message, &r.Evaluations, &logPosterior)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if err := json.Unmarshal([]byte(keys), &r.Keys); err != nil {
		return Run{}, fmt.Errorf("run %s keys: %w", r.ID, err)
	}
	if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Run{}, fmt.Errorf("run %s started_at: %w", r.ID, err)
	}
	if finished.Valid {
		if r.FinishedAt, err = time.Parse(timeLayout, finished.String); err != nil {
			return Run{}, fmt.Errorf("run %s finished_at: %w", r.ID, err)
		}
	}
	r.LogPosterior = math.NaN()
	if logPosterior.Valid {
		r.LogPosterior = logPosterior.Float64
	}
	return r, nil
}

// sourceRow is the stored form of fit.SourceScore. JSON cannot carry
// -Inf, so non-finite scores become null.
type sourceRow struct {
	Name          string   `json:"name"`
	Enabled       bool     `json:"enabled"`
	LogLikelihood *float64 `json:"log_likelihood"`
}

func toSourceRows(scores []fit.SourceScore) []sourceRow {
	rows := make([]sourceRow, len(scores))
	for i, s := range scores {
		rows[i] = sourceRow{Name: s.Name, Enabled: s.Enabled, LogLikelihood: finitePtr(s.LogLikelihood)}
	}
	return rows
}

func fromSourceRows(rows []sourceRow) []fit.SourceScore {
	scores := make([]fit.SourceScore, len(rows))
	for i, r := range rows {
		scores[i] = fit.SourceScore{Name: r.Name, Enabled: r.Enabled, LogLikelihood: math.Inf(-1)}
		if r.LogLikelihood != nil {
			scores[i].LogLikelihood = *r.LogLikelihood
		}
	}
	return scores
}

func finitePtr(x float64) *float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}

func finiteOrNull(xs []float64) []*float64 {
	out := make([]*float64, len(xs))
	for i, x := range xs {
		out[i] = finitePtr(x)
	}
	return out
}

func fromNullable(xs []*float64, missing float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = missing
		if x != nil {
			out[i] = *x
		}
	}
	return out
}

func nullFloat(x float64) sql.NullFloat64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: x, Valid: true}
}

func orInf(x sql.NullFloat64) float64 {
	if !x.Valid {
		return math.Inf(-1)
	}
	return x.Float64
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
