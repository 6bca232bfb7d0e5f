package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestAlphabet(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "alphabet.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\n<space>\n"), 0o600))
	return path
}

func writeTestProbs(t *testing.T, dir string) string {
	t.Helper()
	probs := decodeInput{
		Probs: [][]float32{
			{0.1, 0.1, 0.1, 0.7},
			{0.1, 0.1, 0.1, 0.7},
			{0.7, 0.1, 0.1, 0.1},
			{0.1, 0.1, 0.1, 0.7},
		},
	}
	b, err := json.Marshal(probs)
	require.NoError(t, err)
	path := filepath.Join(dir, "probs.json")
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestDecodeCommand(t *testing.T) {
	assert.NotNil(t, decodeCmd)
	assert.True(t, strings.HasPrefix(decodeCmd.Use, "decode"))
	assert.NotEmpty(t, decodeCmd.Short)
	assert.NotEmpty(t, decodeCmd.Long)
}

func TestDecodeCommandProducesHypothesis(t *testing.T) {
	dir := t.TempDir()
	alphPath := writeTestAlphabet(t, dir)
	probsPath := writeTestProbs(t, dir)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"decode", probsPath, "--alphabet", alphPath, "--beam-size", "10"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "a")
}

func TestDecodeCommandJSONFormat(t *testing.T) {
	dir := t.TempDir()
	alphPath := writeTestAlphabet(t, dir)
	probsPath := writeTestProbs(t, dir)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{
		"decode", probsPath,
		"--alphabet", alphPath,
		"--beam-size", "10",
		"--format", "json",
	})

	require.NoError(t, rootCmd.Execute())

	var lines []decodeOutputLine
	require.NoError(t, json.Unmarshal(buf.Bytes(), &lines))
	require.NotEmpty(t, lines)
	assert.Equal(t, 1, lines[0].Rank)
}

func TestDecodeCommandWritesOutputFile(t *testing.T) {
	dir := t.TempDir()
	alphPath := writeTestAlphabet(t, dir)
	probsPath := writeTestProbs(t, dir)
	outPath := filepath.Join(dir, "out.json")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{
		"decode", probsPath,
		"--alphabet", alphPath,
		"--format", "json",
		"--output", outPath,
	})

	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var lines []decodeOutputLine
	require.NoError(t, json.Unmarshal(data, &lines))
	assert.NotEmpty(t, lines)
}

func TestDecodeCommandRequiresAlphabet(t *testing.T) {
	dir := t.TempDir()
	probsPath := writeTestProbs(t, dir)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"decode", probsPath, "--alphabet", ""})

	err := rootCmd.Execute()
	assert.Error(t, err)
}

func TestDecodeCommandRejectsMissingFile(t *testing.T) {
	dir := t.TempDir()
	alphPath := writeTestAlphabet(t, dir)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"decode", "/nonexistent/probs.json", "--alphabet", alphPath})

	assert.Error(t, rootCmd.Execute())
}

func TestDecodeCommandRejectsEmptyProbs(t *testing.T) {
	dir := t.TempDir()
	alphPath := writeTestAlphabet(t, dir)
	probsPath := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(probsPath, []byte(`{"probs":[]}`), 0o600))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"decode", probsPath, "--alphabet", alphPath})

	assert.Error(t, rootCmd.Execute())
}
