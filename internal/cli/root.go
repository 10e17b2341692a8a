package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/goalsarm/goalsfit/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // YAML run file
	DotEnv  string // .env file; a missing file is ignored

	// Logger is installed by the root command. Commands built on their own
	// fall back to slog.Default().
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the goalsfit CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "goalsfit",
		Short: "goalsfit - calibrate an HIV epidemic model to surveillance data",
		Long: `Calibrate the parameters of a Goals-style HIV epidemic projection against
antenatal clinic, household survey and vital registration data.

Parameters, priors and model inputs come from a CUE parameters workbook.
Calibration maximizes the posterior density with a bounded optimizer and
writes projection tables, goodness-of-fit plots and a run database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}

			logLevel := slog.LevelInfo
			if opts.Verbose {
				logLevel = slog.LevelDebug
			}
			opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel,
			}))
			slog.SetDefault(opts.Logger)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "YAML run configuration file")
	cmd.PersistentFlags().StringVar(&opts.DotEnv, "env-file", ".env", "dotenv file with GOALSFIT_* overrides")

	// Add subcommands
	cmd.AddCommand(NewCalibrateCommand(opts))
	cmd.AddCommand(NewProjectCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// resolveConfig loads the run configuration, then applies every flag of
// cmd the user set. Flags are bound to fields of cfg through apply.
func (o *RootOptions) resolveConfig(apply func(cfg *config.Config)) (*config.Config, error) {
	cfg, err := config.Resolve(o.Config, o.DotEnv)
	if err != nil {
		return nil, err
	}
	if apply != nil {
		apply(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid flags: %w", err)
		}
	}
	return cfg, nil
}
