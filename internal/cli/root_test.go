package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "goalsfit", cmd.Use)
	assert.Contains(t, cmd.Long, "HIV epidemic projection")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"calibrate", "project", "validate", "runs"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestFlags(t *testing.T) {
	root := NewRootCommand()

	tests := []struct {
		command    string // empty for persistent root flags
		flag       string
		shorthand  string
		defaultVal string
	}{
		{"", "verbose", "v", "false"},
		{"", "format", "", "text"},
		{"", "config", "c", ""},
		{"", "env-file", "", ".env"},
		{"calibrate", "out", "o", ""},
		{"calibrate", "method", "", ""},
		{"calibrate", "max-evals", "", "0"},
		{"calibrate", "unknown-labels", "", ""},
		{"calibrate", "db", "", ""},
		{"calibrate", "no-plots", "", "false"},
		{"calibrate", "sources", "", "[]"},
		{"project", "out", "o", ""},
		{"runs", "db", "", ""},
		{"runs", "limit", "n", "20"},
		{"runs", "evaluations", "", "false"},
	}
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			flags := root.PersistentFlags()
			if tt.command != "" {
				sub, _, err := root.Find([]string{tt.command})
				require.NoError(t, err)
				flags = sub.Flags()
			}
			f := flags.Lookup(tt.flag)
			require.NotNil(t, f, "flag --%s", tt.flag)
			assert.Equal(t, tt.shorthand, f.Shorthand)
			assert.Equal(t, tt.defaultVal, f.DefValue)
		})
	}
}

func TestCommandHelp(t *testing.T) {
	cmd := NewRootCommand()

	// Verify help text contains key elements
	assert.Contains(t, cmd.Short, "goalsfit")
	assert.Contains(t, cmd.Long, "parameters workbook")
}

func TestFormatValidation(t *testing.T) {
	// Test valid formats
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	// Test invalid formats
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	_, err := execute(t, cmd, "--format", "invalid", "validate", "sample.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootRunsSubcommand(t *testing.T) {
	f := newFixture(t)
	out, err := execute(t, NewRootCommand(), "--env-file", "", "validate", f.workbook)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Workbook valid")
}
