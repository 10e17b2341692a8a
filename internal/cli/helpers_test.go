package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/goalsarm/goalsfit/internal/testutil"
)

const (
	ancCSV = `Site,Year,Type,Prevalence,N
Hospital A,1985,SS,0.03,400
Hospital A,1988,SS,0.05,400
Census,1989,RT,0.04,5000
`
	hivCSV = `Year,Population,Gender,AgeMin,AgeMax,Value,N
1985,All,Women,15,49,0.04,800
1988,All,Men,15,49,0.03,700
`
	deathsCSV = `Year,Gender,AgeMin,AgeMax,Value
1986,Men,15,49,40
1989,Women,15,49,35
`
)

// fixture is a workbook and observation files in a temporary directory.
type fixture struct {
	dir      string
	workbook string
	anc      string
	hiv      string
	deaths   string
	out      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, testutil.SampleWorkbook, hivCSV)
}

func newFixtureWith(t *testing.T, workbook, hiv string) *fixture {
	t.Helper()
	dir := t.TempDir()
	return &fixture{
		dir:      dir,
		workbook: writeFile(t, dir, "sample.cue", workbook),
		anc:      writeFile(t, dir, "anc.csv", ancCSV),
		hiv:      writeFile(t, dir, "hiv.csv", hiv),
		deaths:   writeFile(t, dir, "deaths.csv", deathsCSV),
		out:      filepath.Join(dir, "out"),
	}
}

func (f *fixture) calibrateArgs(extra ...string) []string {
	args := []string{f.workbook, f.anc, f.hiv, f.deaths, "--out", f.out, "--max-evals", "40"}
	return append(args, extra...)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// requireFinished accepts a calibration that ran to completion, converged
// or not.
func requireFinished(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		return
	}
	require.Equal(t, ExitFailure, GetExitCode(err), "unexpected error: %v", err)
	require.Contains(t, err.Error(), "did not converge")
}
