// Package config loads run configuration for calibration and projection
// commands.
//
// Precedence, lowest first: built-in defaults, the YAML run file, a .env
// file, the process environment, command-line flags. Flags are applied by
// the CLI after Resolve returns.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/goalsarm/goalsfit/internal/fit"
	"github.com/goalsarm/goalsfit/internal/template"
)

// Environment variable names.
const (
	EnvOutputDir      = "GOALSFIT_OUTPUT_DIR"
	EnvMethod         = "GOALSFIT_METHOD"
	EnvMaxEvaluations = "GOALSFIT_MAX_EVALUATIONS"
	EnvUnknownLabels  = "GOALSFIT_UNKNOWN_LABELS"
	EnvDatabase       = "GOALSFIT_DATABASE"
)

var envKeys = []string{EnvOutputDir, EnvMethod, EnvMaxEvaluations, EnvUnknownLabels, EnvDatabase}

// Sources enables individual observation sources.
type Sources struct {
	ANC    bool `yaml:"anc"`
	HIV    bool `yaml:"hiv"`
	Deaths bool `yaml:"deaths"`
}

// Config is the run configuration.
type Config struct {
	OutputDir      string  `yaml:"output_dir"`
	Database       string  `yaml:"database"`
	Method         string  `yaml:"method"`
	MaxEvaluations int     `yaml:"max_evaluations"`
	MaxIterations  int     `yaml:"max_iterations"`
	Tolerance      float64 `yaml:"tolerance"`
	UnknownLabels  string  `yaml:"unknown_labels"`
	Plots          bool    `yaml:"plots"`
	Sources        Sources `yaml:"sources"`
}

// Default returns the built-in configuration. The ANC source is off by
// default.
func Default() *Config {
	d := fit.DefaultSettings()
	return &Config{
		OutputDir:      "out",
		Database:       "runs.db",
		Method:         string(d.Method),
		MaxEvaluations: d.MaxEvaluations,
		Tolerance:      d.Tolerance,
		UnknownLabels:  template.PolicyStrict.String(),
		Plots:          true,
		Sources:        Sources{ANC: false, HIV: true, Deaths: true},
	}
}

// Load reads a YAML run file over the defaults. An empty path returns the
// defaults. Unknown fields are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse run config %s: %w", path, err)
	}
	return cfg, nil
}

// Environment returns the GOALSFIT_* variables from the dotenv file (if it
// exists) overlaid by the process environment.
func Environment(dotenv string) (map[string]string, error) {
	env := make(map[string]string)
	if dotenv != "" {
		vars, err := godotenv.Read(dotenv)
		switch {
		case err == nil:
			for _, k := range envKeys {
				if v, ok := vars[k]; ok {
					env[k] = v
				}
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read %s: %w", dotenv, err)
		}
	}
	for _, k := range envKeys {
		if v, ok := os.LookupEnv(k); ok {
			env[k] = v
		}
	}
	return env, nil
}

// ApplyEnv overrides fields from env.
func (c *Config) ApplyEnv(env map[string]string) error {
	if v, ok := env[EnvOutputDir]; ok {
		c.OutputDir = v
	}
	if v, ok := env[EnvMethod]; ok {
		c.Method = v
	}
	if v, ok := env[EnvUnknownLabels]; ok {
		c.UnknownLabels = v
	}
	if v, ok := env[EnvDatabase]; ok {
		c.Database = v
	}
	if v, ok := env[EnvMaxEvaluations]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxEvaluations, err)
		}
		c.MaxEvaluations = n
	}
	return nil
}

// Resolve loads the run file and applies the dotenv file and environment.
func Resolve(path, dotenv string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	env, err := Environment(dotenv)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(env); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config: %w", err)
	}
	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	var errs []error
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	if _, err := fit.ParseMethod(c.Method); err != nil {
		errs = append(errs, err)
	}
	if _, err := template.ParsePolicy(c.UnknownLabels); err != nil {
		errs = append(errs, err)
	}
	if c.MaxEvaluations < 0 || c.MaxIterations < 0 {
		errs = append(errs, errors.New("evaluation and iteration limits must not be negative"))
	}
	if c.Tolerance < 0 {
		errs = append(errs, errors.New("tolerance must not be negative"))
	}
	return errors.Join(errs...)
}

// DatabasePath returns the run database location. Relative names are
// resolved against the output directory; an empty name disables the store.
func (c *Config) DatabasePath() string {
	if c.Database == "" || filepath.IsAbs(c.Database) {
		return c.Database
	}
	return filepath.Join(c.OutputDir, c.Database)
}

// FitSettings converts the optimizer fields.
func (c *Config) FitSettings() (fit.Settings, error) {
	m, err := fit.ParseMethod(c.Method)
	if err != nil {
		return fit.Settings{}, err
	}
	return fit.Settings{
		Method:         m,
		MaxEvaluations: c.MaxEvaluations,
		MaxIterations:  c.MaxIterations,
		Tolerance:      c.Tolerance,
	}, nil
}

// LabelPolicy converts UnknownLabels.
func (c *Config) LabelPolicy() (template.Policy, error) {
	return template.ParsePolicy(c.UnknownLabels)
}
