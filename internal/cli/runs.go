package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/goalsarm/goalsfit/internal/config"
	"github.com/goalsarm/goalsfit/internal/report"
	"github.com/goalsarm/goalsfit/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	Database    string
	Limit       int
	Evaluations bool
}

// RunSummary is the JSON form of a recorded run. Missing values are null.
type RunSummary struct {
	ID           string     `json:"id"`
	Command      string     `json:"command"`
	Workbook     string     `json:"workbook"`
	Fingerprint  string     `json:"catalog_fingerprint"`
	Method       string     `json:"method"`
	Keys         []string   `json:"keys"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at"`
	Converged    bool       `json:"converged"`
	Status       string     `json:"status"`
	Message      string     `json:"message,omitempty"`
	Evaluations  int64      `json:"evaluations"`
	LogPosterior *float64   `json:"log_posterior"`
}

// FittedSummary is the JSON form of one fitted parameter.
type FittedSummary struct {
	Name    string   `json:"name"`
	Initial float64  `json:"initial"`
	Fitted  *float64 `json:"fitted"`
	Prior   string   `json:"prior"`
}

// EvaluationSummary is the JSON form of one recorded evaluation.
type EvaluationSummary struct {
	Seq          int64      `json:"seq"`
	Vector       []*float64 `json:"vector"`
	LogPosterior *float64   `json:"log_posterior"`
}

// RunDetail is the JSON payload of runs <run-id>.
type RunDetail struct {
	Run         RunSummary          `json:"run"`
	Fitted      []FittedSummary     `json:"fitted"`
	Evaluations []EvaluationSummary `json:"evaluations,omitempty"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{}

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded calibration runs",
		Long: `List the calibration runs recorded in a run database, newest first.

Given a run ID, show that run with its fitted parameters and, with
--evaluations, every posterior evaluation in sequence order.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd, rootOpts, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "run database path (default from the run configuration)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum runs to list; 0 lists all")
	cmd.Flags().BoolVar(&opts.Evaluations, "evaluations", false, "include every evaluation of the run")

	return cmd
}

func runRuns(cmd *cobra.Command, rootOpts *RootOptions, opts *RunsOptions, args []string) error {
	formatter := rootOpts.formatter(cmd)

	dbPath := opts.Database
	if dbPath == "" {
		cfg, err := rootOpts.resolveConfig(nil)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeConfig, "invalid run configuration", err)
		}
		dbPath = cfg.DatabasePath()
	}
	if dbPath == "" {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "no run database configured",
			fmt.Errorf("set --db or %s", config.EnvDatabase))
	}
	// Opening creates missing databases; a listing should not.
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		return formatter.fail(ExitCommandError, ErrCodeStore, "run database not found", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to open run database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if len(args) == 1 {
		return showRun(cmd, formatter, st, args[0], opts.Evaluations)
	}

	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to list runs", err)
	}
	formatter.VerboseLog("Found %d run(s) in %s", len(runs), dbPath)

	if formatter.JSON() {
		summaries := make([]RunSummary, len(runs))
		for i, r := range runs {
			summaries[i] = summarizeRun(r)
		}
		return formatter.Success(summaries)
	}

	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded")
		return nil
	}
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			r.ID,
			r.StartedAt.UTC().Format(time.DateTime),
			r.Method,
			r.Status,
			strconv.FormatInt(r.Evaluations, 10),
			formatMaybe(r.LogPosterior),
			r.Workbook,
		}
	}
	return report.WriteTable(formatter.Writer,
		[]string{"ID", "Started (UTC)", "Method", "Status", "Evals", "Log posterior", "Workbook"}, rows)
}

func showRun(cmd *cobra.Command, formatter *OutputFormatter, st *store.Store, id string, withEvals bool) error {
	ctx := cmd.Context()
	run, err := st.GetRun(ctx, id)
	if errors.Is(err, store.ErrRunNotFound) {
		return formatter.fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("run %s not found", id), err)
	}
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to read run", err)
	}
	fitted, err := st.ReadFitted(ctx, id)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to read fitted parameters", err)
	}

	detail := RunDetail{Run: summarizeRun(run)}
	for _, p := range fitted {
		detail.Fitted = append(detail.Fitted, FittedSummary{
			Name:    p.Name,
			Initial: p.Initial,
			Fitted:  finite(p.Fitted),
			Prior:   fmt.Sprintf("%s(%g, %g)", p.Family, p.Shape1, p.Shape2),
		})
	}
	if withEvals {
		evals, err := st.ReadEvaluations(ctx, id)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, "failed to read evaluations", err)
		}
		for _, ev := range evals {
			vec := make([]*float64, len(ev.Vector))
			for i, x := range ev.Vector {
				vec[i] = finite(x)
			}
			detail.Evaluations = append(detail.Evaluations, EvaluationSummary{
				Seq:          ev.Seq,
				Vector:       vec,
				LogPosterior: finite(ev.LogPosterior),
			})
		}
	}

	if formatter.JSON() {
		return formatter.Success(detail)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Run %s\n", run.ID)
	info := [][]string{
		{"Command", run.Command},
		{"Workbook", run.Workbook},
		{"Catalog", run.Fingerprint},
		{"Method", run.Method},
		{"Started (UTC)", run.StartedAt.UTC().Format(time.DateTime)},
		{"Status", run.Status},
		{"Evaluations", strconv.FormatInt(run.Evaluations, 10)},
		{"Log posterior", formatMaybe(run.LogPosterior)},
	}
	if run.Message != "" {
		info = append(info, []string{"Message", run.Message})
	}
	if err := report.WriteTable(w, nil, info); err != nil {
		return err
	}

	if len(detail.Fitted) > 0 {
		fmt.Fprintln(w)
		rows := make([][]string, len(fitted))
		for i, p := range fitted {
			rows[i] = []string{p.Name, formatMaybe(p.Initial), formatMaybe(p.Fitted), detail.Fitted[i].Prior}
		}
		if err := report.WriteTable(w, []string{"Name", "Initial", "Fitted", "Prior"}, rows); err != nil {
			return err
		}
	}

	if withEvals {
		fmt.Fprintln(w)
		rows := make([][]string, len(detail.Evaluations))
		for i, ev := range detail.Evaluations {
			cells := make([]string, len(ev.Vector))
			for k, x := range ev.Vector {
				cells[k] = formatPtr(x)
			}
			rows[i] = []string{strconv.FormatInt(ev.Seq, 10), formatPtr(ev.LogPosterior), strings.Join(cells, " ")}
		}
		return report.WriteTable(w, []string{"Seq", "Log posterior", strings.Join(run.Keys, " ")}, rows)
	}
	return nil
}

func summarizeRun(r store.Run) RunSummary {
	s := RunSummary{
		ID:           r.ID,
		Command:      r.Command,
		Workbook:     r.Workbook,
		Fingerprint:  r.Fingerprint,
		Method:       r.Method,
		Keys:         r.Keys,
		StartedAt:    r.StartedAt,
		Converged:    r.Converged,
		Status:       r.Status,
		Message:      r.Message,
		Evaluations:  r.Evaluations,
		LogPosterior: finite(r.LogPosterior),
	}
	if !r.FinishedAt.IsZero() {
		t := r.FinishedAt
		s.FinishedAt = &t
	}
	return s
}

// finite returns nil for values JSON cannot carry.
func finite(x float64) *float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}

func formatMaybe(x float64) string {
	if math.IsNaN(x) {
		return "-"
	}
	return fmt.Sprintf("%.6g", x)
}

func formatPtr(x *float64) string {
	if x == nil {
		return "-"
	}
	return fmt.Sprintf("%.6g", *x)
}
