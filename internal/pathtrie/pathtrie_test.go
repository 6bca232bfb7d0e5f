package pathtrie_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctcdecode/ctcdecode/internal/pathtrie"
)

func TestNewRootIsEmpty(t *testing.T) {
	root := pathtrie.NewRoot()
	assert.True(t, root.IsEmpty())
	assert.Nil(t, root.Parent)
	tokens, timesteps := root.PathVec()
	assert.Empty(t, tokens)
	assert.Empty(t, timesteps)
}

func TestGetPathTrieExtendsAndReuses(t *testing.T) {
	root := pathtrie.NewRoot()

	a1 := root.GetPathTrie(0, 1, -0.1, true)
	require.NotNil(t, a1)
	assert.Equal(t, 0, a1.Character)
	assert.Len(t, root.Children, 1)

	a2 := root.GetPathTrie(0, 2, -0.2, true)
	assert.Same(t, a1, a2, "re-requesting the same label must reuse the child")
	assert.Len(t, root.Children, 1)

	b := root.GetPathTrie(1, 1, -0.3, true)
	require.NotNil(t, b)
	assert.Len(t, root.Children, 2)
}

func TestGetPathTrieUpdatesLeafLogProbC(t *testing.T) {
	root := pathtrie.NewRoot()
	a := root.GetPathTrie(0, 1, -5.0, true)
	a2 := root.GetPathTrie(0, 2, -1.0, true)
	assert.Same(t, a, a2)
	assert.Equal(t, -1.0, a.LogProbC)
	assert.Equal(t, 2, a.Timestep)
}

func TestGetPathTrieRejectsOutOfDictionaryLabel(t *testing.T) {
	root := pathtrie.NewRoot()
	root.SetDictionary(&fixedFST{transitions: map[uint64]map[int]uint64{0: {1: 1}}, finals: map[uint64]bool{1: true}})

	ok := root.GetPathTrie(0, 1, -0.1, true)
	require.NotNil(t, ok)

	rejected := root.GetPathTrie(5, 1, -0.1, true)
	assert.Nil(t, rejected)
}

func TestPathVecConcatenatesParentToChild(t *testing.T) {
	root := pathtrie.NewRoot()
	a := root.GetPathTrie(2, 0, -0.1, true)
	b := a.GetPathTrie(4, 1, -0.1, true)
	c := b.GetPathTrie(6, 2, -0.1, true)

	tokens, timesteps := c.PathVec()
	assert.Equal(t, []int{2, 4, 6}, tokens)
	assert.Equal(t, []int{0, 1, 2}, timesteps)
}

func TestRemoveTombstonesAndPrunesChildlessAncestors(t *testing.T) {
	root := pathtrie.NewRoot()
	a := root.GetPathTrie(0, 0, -0.1, true)
	b := a.GetPathTrie(1, 1, -0.1, true)

	// a still has a child, so removing it only tombstones it.
	a.Remove()
	assert.False(t, a.Exists)
	assert.Len(t, root.Children, 1)

	b.Remove()
	assert.False(t, b.Exists)
	// a had no other children, so the tombstoned a is pruned from root once
	// its last child is unlinked.
	assert.Empty(t, a.Children)
	assert.Empty(t, root.Children)
}

func TestRemoveKeepsAncestorWhenSiblingExists(t *testing.T) {
	root := pathtrie.NewRoot()
	a := root.GetPathTrie(0, 0, -0.1, true)
	b := a.GetPathTrie(1, 1, -0.1, true)
	_ = a.GetPathTrie(2, 1, -0.1, true)

	b.Remove()
	assert.Len(t, a.Children, 1)
	assert.True(t, a.Exists)
}

func TestIterateToVecSlidesAndSkipsTombstones(t *testing.T) {
	root := pathtrie.NewRoot()
	root.LogProbBPrev = 0
	a := root.GetPathTrie(0, 0, -0.1, true)
	a.LogProbBCur = math.Log(0.5)
	a.LogProbNbCur = math.Log(0.25)
	b := root.GetPathTrie(1, 0, -0.1, true)
	b.Exists = false

	var out []*pathtrie.Node
	root.IterateToVec(&out)

	require.Len(t, out, 2)
	assert.InDelta(t, math.Log(0.75), a.Score, 1e-9)
	assert.True(t, math.IsInf(a.LogProbBCur, -1))
}

type fixedFST struct {
	transitions map[uint64]map[int]uint64
	finals      map[uint64]bool
}

func (f *fixedFST) Start() uint64        { return 0 }
func (f *fixedFST) IsFinal(s uint64) bool { return f.finals[s] }
func (f *fixedFST) Step(s uint64, labelPlusOne int) (uint64, bool) {
	next, ok := f.transitions[s][labelPlusOne]
	return next, ok
}
