package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goalsarm/goalsfit/internal/config"
	"github.com/goalsarm/goalsfit/internal/fit"
	"github.com/goalsarm/goalsfit/internal/likelihood"
	"github.com/goalsarm/goalsfit/internal/report"
	"github.com/goalsarm/goalsfit/internal/store"
)

// CalibrateOptions holds flags for the calibrate command. Each flag
// overrides the run configuration only when set.
type CalibrateOptions struct {
	OutputDir      string
	Method         string
	MaxEvaluations int
	UnknownLabels  string
	Database       string
	NoPlots        bool
	Sources        []string
}

// CalibrateResult is the JSON payload of the calibrate command.
type CalibrateResult struct {
	RunID       string             `json:"run_id,omitempty"`
	Diagnostics *fit.Diagnostics   `json:"diagnostics"`
	Fitted      map[string]float64 `json:"fitted"`
	Files       []string           `json:"files"`
}

// NewCalibrateCommand creates the calibrate command.
func NewCalibrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CalibrateOptions{}

	cmd := &cobra.Command{
		Use:   "calibrate <parameters-workbook> <anc-csv> <hiv-prevalence-csv> <deaths-csv>",
		Short: "Fit workbook parameters to surveillance data",
		Long: `Fit the workbook's parameters by maximizing the posterior density of
antenatal clinic prevalence, survey HIV prevalence and HIV deaths.

Every posterior evaluation is recorded in the run database. When the fit
finishes, the model is projected at the fitted values and the output
directory receives one CSV per output array and one goodness-of-fit plot
per data source.

Exit codes: 0 when the optimizer converged, 1 when it did not or when
calibration failed, 2 for command errors.`,
		Args:          cobra.ExactArgs(4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalibrate(cmd, rootOpts, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputDir, "out", "o", "", "output directory")
	cmd.Flags().StringVar(&opts.Method, "method", "", "optimization method (nelder-mead|bfgs)")
	cmd.Flags().IntVar(&opts.MaxEvaluations, "max-evals", 0, "maximum posterior evaluations by the optimizer")
	cmd.Flags().StringVar(&opts.UnknownLabels, "unknown-labels", "", "policy for unknown data labels (strict|warn)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "run database path; empty disables recording")
	cmd.Flags().BoolVar(&opts.NoPlots, "no-plots", false, "skip goodness-of-fit plots")
	cmd.Flags().StringSliceVar(&opts.Sources, "sources", nil, "data sources in the likelihood (anc,hiv,deaths)")

	return cmd
}

// apply copies the flags the user set onto cfg.
func (o *CalibrateOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.OutputDir = o.OutputDir
	}
	if flags.Changed("method") {
		cfg.Method = o.Method
	}
	if flags.Changed("max-evals") {
		cfg.MaxEvaluations = o.MaxEvaluations
	}
	if flags.Changed("unknown-labels") {
		cfg.UnknownLabels = o.UnknownLabels
	}
	if flags.Changed("db") {
		cfg.Database = o.Database
	}
	if flags.Changed("no-plots") {
		cfg.Plots = !o.NoPlots
	}
	if flags.Changed("sources") {
		var s config.Sources
		for _, name := range o.Sources {
			switch strings.ToLower(strings.TrimSpace(name)) {
			case likelihood.NameANC:
				s.ANC = true
			case likelihood.NameHIVPrevalence:
				s.HIV = true
			case likelihood.NameDeaths:
				s.Deaths = true
			default:
				return fmt.Errorf("unknown data source %q", name)
			}
		}
		cfg.Sources = s
	}
	return nil
}

func runCalibrate(cmd *cobra.Command, rootOpts *RootOptions, opts *CalibrateOptions, args []string) error {
	formatter := rootOpts.formatter(cmd)
	logger := rootOpts.logger()
	workbookPath, ancPath, hivPath, deathsPath := args[0], args[1], args[2], args[3]

	var flagErr error
	cfg, err := rootOpts.resolveConfig(func(cfg *config.Config) { flagErr = opts.apply(cmd, cfg) })
	if err == nil {
		err = flagErr
	}
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "invalid run configuration", err)
	}
	settings, err := cfg.FitSettings()
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "invalid run configuration", err)
	}
	policy, err := cfg.LabelPolicy()
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "invalid run configuration", err)
	}

	s, err := openSession(workbookPath, logger)
	if err != nil {
		return formatter.failStage(err)
	}
	if s.params.Len() == 0 {
		return formatter.fail(ExitCommandError, ErrCodeCatalog, "no fitting entries are marked for fitting", nil)
	}

	obs, err := loadObservations(ancPath, hivPath, deathsPath)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeObservations, "failed to load observations", err)
	}
	sources := []fit.Source{
		{Service: likelihood.NewANC(obs.ANC), Enabled: cfg.Sources.ANC},
		{Service: likelihood.NewHIVPrevalence(obs.HIV), Enabled: cfg.Sources.HIV},
		{Service: likelihood.NewDeaths(obs.Deaths), Enabled: cfg.Sources.Deaths},
	}
	formatter.VerboseLog("Loaded %d ANC, %d HIV prevalence and %d deaths observations",
		len(obs.ANC), len(obs.HIV), len(obs.Deaths))

	ctx, stop := commandContext(cmd, logger)
	defer stop()

	fitOpts := []fit.Option{fit.WithLogger(logger), fit.WithLabelPolicy(policy)}
	var runLog *store.RunLog
	if dbPath := cfg.DatabasePath(); dbPath != "" {
		st, err := openStore(dbPath)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, "failed to open run database", err)
		}
		defer st.Close()

		runLog, err = st.BeginRun(ctx, store.RunInfo{
			Command:  "calibrate",
			Workbook: workbookPath,
			Method:   settings.Method,
		}, s.params)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, "failed to record run", err)
		}
		fitOpts = append(fitOpts, fit.WithSink(runLog))
		logger.Info("run started", "run_id", runLog.ID(), "db", dbPath)
	}

	cal, err := fit.New(s.params, s.inj, sources, fitOpts...)
	if err != nil {
		abortRun(ctx, runLog, err, logger)
		return formatter.fail(ExitCommandError, ErrCodeObservations, "observations do not match the model", err)
	}

	d, err := cal.Calibrate(ctx, settings)
	if err != nil {
		abortRun(ctx, runLog, err, logger)
		return formatter.fail(ExitFailure, ErrCodeCalibration, "calibration failed", err)
	}

	result := CalibrateResult{Diagnostics: d, Fitted: s.params.Fitted()}
	if runLog != nil {
		result.RunID = runLog.ID()
		if err := runLog.Finish(context.WithoutCancel(ctx), d, s.params); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, "failed to record run result", err)
		}
	}

	// The final evaluation left the model projected at the fitted values.
	w := &report.Writer{Dir: cfg.OutputDir, Policy: policy, Logger: logger}
	result.Files, err = w.WriteProjection(ctx, s.model.Outputs)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeWrite, "failed to write projection", err)
	}
	if cfg.Plots {
		plots, err := w.WritePlots(ctx, s.model.Outputs, obs)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWrite, "failed to write plots", err)
		}
		result.Files = append(result.Files, plots...)
		slices.Sort(result.Files)
	}

	if err := outputCalibrateResult(formatter, result, s); err != nil {
		return err
	}
	if !d.Converged {
		return NewExitError(ExitFailure, fmt.Sprintf("calibration did not converge: %s", d.Status))
	}
	return nil
}

func loadObservations(ancPath, hivPath, deathsPath string) (report.Observations, error) {
	var (
		obs report.Observations
		err error
	)
	if obs.ANC, err = likelihood.LoadANC(ancPath); err != nil {
		return obs, err
	}
	if obs.HIV, err = likelihood.LoadHIVPrevalence(hivPath); err != nil {
		return obs, err
	}
	if obs.Deaths, err = likelihood.LoadDeaths(deathsPath); err != nil {
		return obs, err
	}
	return obs, nil
}

// openStore opens the run database, creating its directory first.
func openStore(path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return store.Open(path)
}

// abortRun marks the run aborted. The run database is best effort here: the
// calibration error is what gets reported.
func abortRun(ctx context.Context, runLog *store.RunLog, cause error, logger *slog.Logger) {
	if runLog == nil {
		return
	}
	if err := runLog.Abort(context.WithoutCancel(ctx), cause); err != nil {
		logger.Warn("failed to mark run aborted", "run_id", runLog.ID(), "error", err)
	}
}

func outputCalibrateResult(formatter *OutputFormatter, result CalibrateResult, s *session) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	if err := report.WriteSummary(formatter.Writer, result.Diagnostics, s.params); err != nil {
		return err
	}
	fmt.Fprintln(formatter.Writer)
	if result.RunID != "" {
		fmt.Fprintf(formatter.Writer, "Run: %s\n", result.RunID)
	}
	fmt.Fprintln(formatter.Writer, "Files:")
	for _, f := range result.Files {
		fmt.Fprintf(formatter.Writer, "  %s\n", f)
	}
	return nil
}
