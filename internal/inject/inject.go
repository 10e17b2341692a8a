// Package inject applies calibration parameter vectors to a model.
//
// Every parameter key is bound to exactly one typed Action from a fixed
// table. An Injector is built against the catalog's key list and rejects
// any key the table does not know, so catalog/injector drift is caught
// before optimization starts.
//
// After the per-key mutations, Apply unconditionally rebuilds and pushes
// every derived engine input, invalidates the cached projection and
// projects to the final year.
package inject

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/goalsarm/goalsfit/internal/model"
)

// ConfigError reports keys the injector cannot handle.
type ConfigError struct {
	Code ConfigErrorCode
	Keys []string
}

// ConfigErrorCode categorizes injector configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeUnknownKey indicates parameter keys with no bound action.
	ErrCodeUnknownKey ConfigErrorCode = "UNKNOWN_KEY"
	// ErrCodeMissingKey indicates a mapping that lacks catalog keys.
	ErrCodeMissingKey ConfigErrorCode = "MISSING_KEY"
)

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, strings.Join(e.Keys, ", "))
}

// IsConfigError reports whether err wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Validate checks that every key has a bound action.
func Validate(keys []string) error {
	var unknown []string
	for _, k := range keys {
		if _, ok := actions[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		return &ConfigError{Code: ErrCodeUnknownKey, Keys: unknown}
	}
	return nil
}

// Injector applies vectors in a fixed key order to one model.
type Injector struct {
	m       *model.Model
	keys    []string
	actions []Action
	logger  *slog.Logger
}

// New binds keys, in vector order, to their actions.
func New(m *model.Model, keys []string, logger *slog.Logger) (*Injector, error) {
	if err := Validate(keys); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	in := &Injector{m: m, keys: slices.Clone(keys), logger: logger}
	for _, k := range keys {
		in.actions = append(in.actions, actions[k])
	}
	return in, nil
}

// Keys returns the bound keys in vector order.
func (in *Injector) Keys() []string { return slices.Clone(in.keys) }

// Model returns the model the injector mutates.
func (in *Injector) Model() *model.Model { return in.m }

// Apply assigns vec[i] through the action bound to Keys()[i], then
// refreshes the engine inputs and projects to the final year.
func (in *Injector) Apply(vec []float64) error {
	if len(vec) != len(in.keys) {
		return fmt.Errorf("parameter vector has %d entries, injector has %d keys", len(vec), len(in.keys))
	}
	for i, a := range in.actions {
		a.apply(in.m, vec[i])
	}
	return in.sync()
}

// ApplyMapping assigns values by name. Every bound key must be present and
// every name must have an action.
func (in *Injector) ApplyMapping(values map[string]float64) error {
	var unknown []string
	for k := range values {
		if _, ok := actions[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return &ConfigError{Code: ErrCodeUnknownKey, Keys: unknown}
	}

	vec := make([]float64, len(in.keys))
	var missing []string
	for i, k := range in.keys {
		v, ok := values[k]
		if !ok {
			missing = append(missing, k)
			continue
		}
		vec[i] = v
	}
	if len(missing) > 0 {
		return &ConfigError{Code: ErrCodeMissingKey, Keys: missing}
	}
	return in.Apply(vec)
}

func (in *Injector) sync() error {
	if err := in.m.Refresh(); err != nil {
		return fmt.Errorf("refresh engine inputs: %w", err)
	}
	in.m.Invalidate(-1)
	if err := in.m.Project(in.m.YearFinal); err != nil {
		return err
	}
	in.logger.Debug("parameters injected", "keys", len(in.keys), "year_final", in.m.YearFinal)
	return nil
}
