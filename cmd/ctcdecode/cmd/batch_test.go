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

func writeTestBatch(t *testing.T, dir string) string {
	t.Helper()
	utterance := [][]float32{
		{0.1, 0.1, 0.1, 0.7},
		{0.1, 0.1, 0.1, 0.7},
		{0.7, 0.1, 0.1, 0.1},
		{0.1, 0.1, 0.1, 0.7},
	}
	in := batchInput{Utterances: [][][]float32{utterance, utterance}}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	path := filepath.Join(dir, "utterances.json")
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestBatchCommand(t *testing.T) {
	assert.NotNil(t, batchCmd)
	assert.True(t, strings.HasPrefix(batchCmd.Use, "batch"))
	assert.NotEmpty(t, batchCmd.Short)
	assert.NotEmpty(t, batchCmd.Long)
}

func TestBatchCommandDecodesAllUtterances(t *testing.T) {
	dir := t.TempDir()
	alphPath := writeTestAlphabet(t, dir)
	batchPath := writeTestBatch(t, dir)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{
		"batch", batchPath,
		"--alphabet", alphPath,
		"--beam-size", "10",
		"--format", "json",
		"--workers", "2",
	})

	require.NoError(t, rootCmd.Execute())

	var lines []batchOutputLine
	require.NoError(t, json.Unmarshal(buf.Bytes(), &lines))
	require.Len(t, lines, 2)
	assert.Equal(t, 0, lines[0].Index)
	assert.Equal(t, 1, lines[1].Index)
}

func TestBatchCommandWritesOutputFile(t *testing.T) {
	dir := t.TempDir()
	alphPath := writeTestAlphabet(t, dir)
	batchPath := writeTestBatch(t, dir)
	outPath := filepath.Join(dir, "results.json")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{
		"batch", batchPath,
		"--alphabet", alphPath,
		"--format", "json",
		"--out", outPath,
	})

	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var lines []batchOutputLine
	require.NoError(t, json.Unmarshal(data, &lines))
	assert.Len(t, lines, 2)
}

func TestBatchCommandRejectsEmptyBatch(t *testing.T) {
	dir := t.TempDir()
	alphPath := writeTestAlphabet(t, dir)
	batchPath := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(batchPath, []byte(`{"utterances":[]}`), 0o600))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"batch", batchPath, "--alphabet", alphPath})

	assert.Error(t, rootCmd.Execute())
}

func TestBatchCommandRejectsMissingFile(t *testing.T) {
	dir := t.TempDir()
	alphPath := writeTestAlphabet(t, dir)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"batch", "/nonexistent/utterances.json", "--alphabet", alphPath})

	assert.Error(t, rootCmd.Execute())
}
