package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/goalsarm/goalsfit/internal/engine/surrogate"
	"github.com/goalsarm/goalsfit/internal/inject"
	"github.com/goalsarm/goalsfit/internal/model"
	"github.com/goalsarm/goalsfit/internal/prior"
	"github.com/goalsarm/goalsfit/internal/workbook"
)

// stageError ties a failure to the error code reported for it. exitCode
// defaults to ExitCommandError.
type stageError struct {
	code     string
	message  string
	exitCode int
	err      error
}

func (e *stageError) Error() string { return fmt.Sprintf("%s: %v", e.message, e.err) }

func (e *stageError) Unwrap() error { return e.err }

func stageFailed(code, message string, err error) *stageError {
	return &stageError{code: code, message: message, exitCode: ExitCommandError, err: err}
}

// failStage reports err through f. Errors that are not stage errors are
// reported as generic failures.
func (f *OutputFormatter) failStage(err error) error {
	var se *stageError
	if errors.As(err, &se) {
		return f.fail(se.exitCode, se.code, se.message, se.err)
	}
	return f.fail(ExitFailure, ErrCodeGeneric, err.Error(), nil)
}

// session is a workbook loaded into a model, with an injector bound to the
// workbook's parameter catalog.
type session struct {
	wb     *workbook.Workbook
	params *prior.Set
	model  *model.Model
	inj    *inject.Injector
}

// openSession loads the workbook at path and wires it to the surrogate
// engine. The model's inputs are derived but nothing is projected.
func openSession(path string, logger *slog.Logger) (*session, error) {
	wb, err := workbook.Load(path)
	if err != nil {
		var le *workbook.LoadError
		if errors.As(err, &le) && le.Code == workbook.ErrCodeRead {
			return nil, stageFailed(ErrCodeWorkbook, "failed to read workbook", err)
		}
		se := stageFailed(ErrCodeWorkbook, "invalid workbook", err)
		se.exitCode = ExitFailure
		return nil, se
	}
	logger.Debug("workbook loaded", "path", path, "first_year", wb.FirstYear, "final_year", wb.FinalYear)

	params, err := wb.Catalog()
	if err != nil {
		return nil, stageFailed(ErrCodeCatalog, "invalid parameter catalog", err)
	}
	keys := params.Keys()
	if err := inject.Validate(keys); err != nil {
		return nil, stageFailed(ErrCodeCatalog, "catalog names parameters the model cannot accept", err)
	}

	eng, err := surrogate.New(wb.FirstYear, wb.FinalYear)
	if err != nil {
		return nil, stageFailed(ErrCodeProjection, "failed to start projection engine", err)
	}
	m, err := model.New(wb, eng, model.WithLogger(logger))
	if err != nil {
		return nil, stageFailed(ErrCodeWorkbook, "failed to derive model inputs", err)
	}
	inj, err := inject.New(m, keys, logger)
	if err != nil {
		return nil, stageFailed(ErrCodeCatalog, "failed to bind parameters to the model", err)
	}
	logger.Debug("model ready", "parameters", len(keys))

	return &session{wb: wb, params: params, model: m, inj: inj}, nil
}
