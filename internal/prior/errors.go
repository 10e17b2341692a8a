package prior

import (
	"errors"
	"fmt"
)

// ConfigError reports a catalog that cannot be built. These are detected
// at construction, never during evaluation.
type ConfigError struct {
	Code      ConfigErrorCode
	Message   string
	Parameter string
}

// ConfigErrorCode categorizes catalog errors.
type ConfigErrorCode string

const (
	// ErrCodeUnknownFamily indicates an unsupported prior family name.
	ErrCodeUnknownFamily ConfigErrorCode = "UNKNOWN_FAMILY"

	// ErrCodeInvalidShape indicates shape constants outside the family's domain.
	ErrCodeInvalidShape ConfigErrorCode = "INVALID_SHAPE"

	// ErrCodeDuplicate indicates two parameters with one name.
	ErrCodeDuplicate ConfigErrorCode = "DUPLICATE_PARAMETER"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Parameter != "" {
		return fmt.Sprintf("%s: %s (parameter=%s)", e.Code, e.Message, e.Parameter)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigError reports whether err wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func newShapeError(name, msg string) *ConfigError {
	return &ConfigError{Code: ErrCodeInvalidShape, Message: msg, Parameter: name}
}
