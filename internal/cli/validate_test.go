package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goalsarm/goalsfit/internal/testutil"
	"github.com/goalsarm/goalsfit/internal/workbook"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestValidateValidWorkbook(t *testing.T) {
	f := newFixture(t)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), f.workbook)
	require.NoError(t, err)

	newGoldie(t).Assert(t, "validate_text", []byte(out))
}

func TestValidateValidWorkbookJSON(t *testing.T) {
	f := newFixture(t)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), f.workbook)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 1970, resp.Data.FirstYear)
	assert.Equal(t, 1990, resp.Data.FinalYear)

	names := make([]string, len(resp.Data.Parameters))
	for i, p := range resp.Data.Parameters {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"partners.male", "seed.prev", "transmit.f2m", "transmit.m2f"}, names)
	assert.Equal(t, "broadcast", resp.Data.Parameters[0].Kind)
	assert.Equal(t, "gamma", resp.Data.Parameters[0].Prior)
}

func TestValidateNonExistentWorkbook(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/sample.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
	assert.Contains(t, out, "failed to read workbook")
}

func TestValidateSyntaxError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.cue", "config: {\n\tfirst_year: 1970\n")

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, workbook.ErrCodeSyntax)
}

func TestValidateSchemaErrorJSON(t *testing.T) {
	dir := t.TempDir()
	wb := testutil.SampleWorkbookWith("prev: 0.001", "prev: 2.5")
	path := writeFile(t, dir, "sample.cue", wb)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
	assert.Equal(t, workbook.ErrCodeSchema, resp.Error.Code)
}

func TestValidateUnknownParameterKey(t *testing.T) {
	dir := t.TempDir()
	wb := testutil.SampleWorkbookWith(`"ancss.bias":`,
		`"bogus.key": {initial: 1, prior: "normal", par1: 0, par2: 1}
	"ancss.bias":`)
	path := writeFile(t, dir, "sample.cue", wb)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, ErrCodeCatalog)
	assert.Contains(t, out, "UNKNOWN_KEY: bogus.key")
}

func TestValidateEmptyCatalog(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "sample.cue", nothingToFit())

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "no fitting entries are marked for fitting")
}

func TestValidateVerboseOutput(t *testing.T) {
	f := newFixture(t)

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json", Verbose: true})
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{f.workbook})
	require.NoError(t, cmd.Execute())

	// Verbose lines go to stderr so the JSON on stdout stays parseable.
	assert.Contains(t, stderr.String(), "Parameter transmit.f2m: female-to-male transmission (scalar)")
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
}

// nothingToFit returns the sample workbook with every fitting entry
// switched off.
func nothingToFit() string {
	wb := testutil.SampleWorkbook
	for _, closing := range []string{"par2: 500}", "par2: 0.5}", "par2: 0.5}", "par2: 100}"} {
		fitted := strings.TrimSuffix(closing, "}") + ", fit: false}"
		wb = strings.Replace(wb, closing, fitted, 1)
	}
	return wb
}
