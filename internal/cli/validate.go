package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/goalsarm/goalsfit/internal/inject"
	"github.com/goalsarm/goalsfit/internal/report"
	"github.com/goalsarm/goalsfit/internal/workbook"
)

// ValidationError is one problem found in a workbook.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// CatalogEntry describes one parameter to be fitted.
type CatalogEntry struct {
	Name    string  `json:"name"`
	Kind    string  `json:"kind"`
	Target  string  `json:"target"`
	Initial float64 `json:"initial"`
	Prior   string  `json:"prior"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool              `json:"valid"`
	FirstYear  int               `json:"first_year,omitempty"`
	FinalYear  int               `json:"final_year,omitempty"`
	Parameters []CatalogEntry    `json:"parameters,omitempty"`
	Errors     []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <parameters-workbook>",
		Short: "Validate a parameters workbook without projecting",
		Long: `Validate a parameters workbook without running a projection.

Checks the workbook against its schema, builds the parameter catalog from
the fitting entries, derives every model input and checks that each catalog
parameter can be injected into the model. Faster than calibrate for
feedback while editing a workbook.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	formatter.VerboseLog("Validating workbook %s", path)

	s, err := openSession(path, opts.logger())
	if err != nil {
		var se *stageError
		if errors.As(err, &se) && se.exitCode == ExitCommandError && se.code == ErrCodeWorkbook {
			return formatter.fail(ExitCommandError, se.code, se.message, se.err)
		}
		return outputValidationErrors(formatter, []ValidationError{toValidationError(err)})
	}
	if s.params.Len() == 0 {
		return outputValidationErrors(formatter, []ValidationError{{
			Code:    ErrCodeCatalog,
			Message: "no fitting entries are marked for fitting",
		}})
	}

	result := ValidationResult{
		Valid:     true,
		FirstYear: s.wb.FirstYear,
		FinalYear: s.wb.FinalYear,
	}
	for i := range s.params.Len() {
		p := s.params.At(i)
		action, _ := inject.Lookup(p.Name)
		result.Parameters = append(result.Parameters, CatalogEntry{
			Name:    p.Name,
			Kind:    action.Kind.String(),
			Target:  action.Target,
			Initial: p.Initial,
			Prior:   string(p.Family),
		})
		formatter.VerboseLog("Parameter %s: %s (%s)", p.Name, action.Target, action.Kind)
	}

	return outputValidateSuccess(formatter, result)
}

// toValidationError maps a session failure to a validation error. Workbook
// load errors keep their own code and source line.
func toValidationError(err error) ValidationError {
	var le *workbook.LoadError
	if errors.As(err, &le) {
		line := 0
		if le.Pos.IsValid() {
			line = le.Pos.Line()
		}
		return ValidationError{Code: le.Code, Message: le.Message, Line: line}
	}
	var se *stageError
	if errors.As(err, &se) {
		return ValidationError{Code: se.code, Message: fmt.Sprintf("%s: %v", se.message, se.err)}
	}
	return ValidationError{Code: ErrCodeGeneric, Message: err.Error()}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Workbook valid: projects %d-%d, %d parameter(s) to fit\n",
		result.FirstYear, result.FinalYear, len(result.Parameters))
	rows := make([][]string, len(result.Parameters))
	for i, p := range result.Parameters {
		rows[i] = []string{p.Name, p.Kind, p.Prior, strconv.FormatFloat(p.Initial, 'g', -1, 64), p.Target}
	}
	return report.WriteTable(formatter.Writer, []string{"Name", "Kind", "Prior", "Initial", "Target"}, rows)
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []ValidationError) error {
	failed := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	if formatter.JSON() {
		if err := formatter.Failure(errs[0].Code, errs[0].Message, nil, ValidationResult{Errors: errs}); err != nil {
			return err
		}
		return failed
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return failed
}
