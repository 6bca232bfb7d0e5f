package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "ctcdecode", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommandHelp(t *testing.T) {
	cmd := rootCmd

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	cmd.SetArgs([]string{"--help"})
	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "CTC prefix beam search")
	assert.Contains(t, output, "Available Commands:")
	assert.Contains(t, output, "Usage:")
}

func TestRootCommandVersion(t *testing.T) {
	cmd := rootCmd

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	cmd.SetArgs([]string{"--version"})
	err := cmd.Execute()
	require.NoError(t, err)
	assert.NotEmpty(t, buf.String())
}

func TestRootCommandSubcommands(t *testing.T) {
	cmd := rootCmd

	subcommands := cmd.Commands()
	commandNames := make([]string, len(subcommands))
	for i, subcmd := range subcommands {
		commandNames[i] = subcmd.Name()
	}

	expectedCommands := []string{"decode", "batch", "serve"}
	for _, expected := range expectedCommands {
		assert.Contains(t, commandNames, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	cmd := rootCmd

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	cmd.SetArgs([]string{"--invalid-flag"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "unknown flag")
}

func TestRootCommandNoArgs(t *testing.T) {
	cmd := rootCmd

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	cmd.SetArgs([]string{})
	err := cmd.Execute()
	require.NoError(t, err)
	assert.NotEmpty(t, buf.String())
}

func executeCommandAndCaptureOutput(t *testing.T, cmd *cobra.Command, args []string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return strings.TrimSpace(buf.String()), err
}

func TestExecuteCommandHelper(t *testing.T) {
	cmd := rootCmd

	output, err := executeCommandAndCaptureOutput(t, cmd, []string{"--help"})
	require.NoError(t, err)
	assert.Contains(t, output, "Available Commands:")
}

func TestRootCommandConfiguration(t *testing.T) {
	cmd := rootCmd

	assert.True(t, cmd.HasSubCommands())
	assert.NotNil(t, cmd.PersistentFlags())
	assert.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("alphabet"))
}

func TestSetVersionInfoUpdatesRootVersion(t *testing.T) {
	SetVersionInfo("1.2.3 (commit: abcdef, built: today)")
	assert.Equal(t, "1.2.3 (commit: abcdef, built: today)", rootCmd.Version)
	assert.Equal(t, "1.2.3 (commit: abcdef, built: today)", versionInfo)
}

func TestGetRootCommandReturnsRoot(t *testing.T) {
	assert.Same(t, rootCmd, GetRootCommand())
}
