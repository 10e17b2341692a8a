package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goalsarm/goalsfit/internal/fit"
	"github.com/goalsarm/goalsfit/internal/template"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Sources.ANC)
	assert.True(t, cfg.Sources.HIV)
	assert.True(t, cfg.Sources.Deaths)
	assert.Equal(t, filepath.Join("out", "runs.db"), cfg.DatabasePath())

	s, err := cfg.FitSettings()
	require.NoError(t, err)
	assert.Equal(t, fit.NelderMead, s.Method)

	p, err := cfg.LabelPolicy()
	require.NoError(t, err)
	assert.Equal(t, template.PolicyStrict, p)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeFile(t, "run.yaml", `
output_dir: results
method: bfgs
sources:
  anc: true
  hiv: true
  deaths: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "results", cfg.OutputDir)
	assert.Equal(t, "bfgs", cfg.Method)
	assert.Equal(t, Sources{ANC: true, HIV: true, Deaths: false}, cfg.Sources)
	assert.Equal(t, 2000, cfg.MaxEvaluations, "unset fields keep defaults")
	assert.True(t, cfg.Plots)
}

func TestLoad_EmptyFileIsDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "run.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	_, err := Load(writeFile(t, "run.yaml", "max_evals: 10\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_evals")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvironment_DotenvThenProcess(t *testing.T) {
	dotenv := writeFile(t, ".env", "GOALSFIT_METHOD=bfgs\nGOALSFIT_OUTPUT_DIR=from-dotenv\nOTHER=ignored\n")
	t.Setenv(EnvOutputDir, "from-process")

	env, err := Environment(dotenv)
	require.NoError(t, err)
	assert.Equal(t, "bfgs", env[EnvMethod])
	assert.Equal(t, "from-process", env[EnvOutputDir])
	assert.NotContains(t, env, "OTHER")
}

func TestEnvironment_MissingDotenv(t *testing.T) {
	_, err := Environment(filepath.Join(t.TempDir(), ".env"))
	assert.NoError(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(map[string]string{
		EnvMaxEvaluations: "250",
		EnvUnknownLabels:  "warn",
		EnvDatabase:       "/tmp/history.db",
	}))
	assert.Equal(t, 250, cfg.MaxEvaluations)
	assert.Equal(t, "/tmp/history.db", cfg.DatabasePath())
	p, err := cfg.LabelPolicy()
	require.NoError(t, err)
	assert.Equal(t, template.PolicyWarn, p)

	assert.Error(t, cfg.ApplyEnv(map[string]string{EnvMaxEvaluations: "lots"}))
}

func TestResolve_Validates(t *testing.T) {
	path := writeFile(t, "run.yaml", "method: simulated-annealing\nunknown_labels: shrug\n")
	_, err := Resolve(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulated-annealing")
	assert.Contains(t, err.Error(), "shrug")
}
