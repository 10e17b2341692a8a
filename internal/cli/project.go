package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goalsarm/goalsfit/internal/config"
	"github.com/goalsarm/goalsfit/internal/report"
)

// ProjectOptions holds flags for the project command.
type ProjectOptions struct {
	OutputDir string
}

// ProjectResult is the JSON payload of the project command.
type ProjectResult struct {
	FirstYear int      `json:"first_year"`
	FinalYear int      `json:"final_year"`
	Files     []string `json:"files"`
}

// NewProjectCommand creates the project command.
func NewProjectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProjectOptions{}

	cmd := &cobra.Command{
		Use:   "project <parameters-workbook>",
		Short: "Run one projection with the workbook's values",
		Long: `Run one projection with the values in a parameters workbook, without
calibrating, and write every output array as a long-format CSV.

Fitting entries are not applied: the projection uses the workbook inputs
as they are.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProject(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.OutputDir, "out", "o", "", "output directory (overrides the run configuration)")

	return cmd
}

func runProject(cmd *cobra.Command, rootOpts *RootOptions, opts *ProjectOptions, path string) error {
	formatter := rootOpts.formatter(cmd)
	logger := rootOpts.logger()

	cfg, err := rootOpts.resolveConfig(func(cfg *config.Config) {
		if cmd.Flags().Changed("out") {
			cfg.OutputDir = opts.OutputDir
		}
	})
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "invalid run configuration", err)
	}
	policy, err := cfg.LabelPolicy()
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "invalid run configuration", err)
	}

	s, err := openSession(path, logger)
	if err != nil {
		return formatter.failStage(err)
	}

	ctx, stop := commandContext(cmd, logger)
	defer stop()

	m := s.model
	if err := m.Project(m.YearFinal); err != nil {
		return formatter.fail(ExitFailure, ErrCodeProjection, "projection failed", err)
	}
	formatter.VerboseLog("Projected %d-%d", m.YearFirst, m.YearFinal)

	w := &report.Writer{Dir: cfg.OutputDir, Policy: policy, Logger: logger}
	files, err := w.WriteProjection(ctx, m.Outputs)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeWrite, "failed to write projection", err)
	}

	result := ProjectResult{FirstYear: m.YearFirst, FinalYear: m.YearFinal, Files: files}
	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Projected %d-%d\n", result.FirstYear, result.FinalYear)
	for _, f := range files {
		fmt.Fprintf(formatter.Writer, "  %s\n", f)
	}
	return nil
}
