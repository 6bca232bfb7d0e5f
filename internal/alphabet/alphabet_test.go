package alphabet_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctcdecode/ctcdecode/internal/alphabet"
)

func TestNewAssignsIndices(t *testing.T) {
	a, err := alphabet.New([]string{"a", "b", "<space>", "c"})
	require.NoError(t, err)
	assert.Equal(t, 4, a.Size())
	assert.Equal(t, 4, a.BlankLabel())
	assert.Equal(t, 2, a.SpaceLabel())
	assert.Equal(t, "a", a.StringFromLabel(0))

	idx, ok := a.LabelFromString("c")
	require.True(t, ok)
	assert.Equal(t, 3, idx)

	_, ok = a.LabelFromString("missing")
	assert.False(t, ok)
}

func TestNewRequiresSpaceToken(t *testing.T) {
	_, err := alphabet.New([]string{"a", "b"})
	assert.Error(t, err)
}

func TestNewRejectsEmpty(t *testing.T) {
	_, err := alphabet.New(nil)
	assert.Error(t, err)
}

func TestLoadSkipsBlankLinesAndBOM(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chars.txt")
	content := "\ufeffa\nb\n\n<space>\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	a, err := alphabet.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, a.Size())
	assert.Equal(t, "a", a.StringFromLabel(0))
	assert.Equal(t, 2, a.SpaceLabel())
}

func TestIsCodepointBoundary(t *testing.T) {
	assert.True(t, alphabet.IsCodepointBoundary('a'))
	assert.True(t, alphabet.IsCodepointBoundary(0xC3)) // lead byte of a 2-byte rune
	assert.False(t, alphabet.IsCodepointBoundary(0x80)) // continuation byte
}
