package pathtrie_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ctcdecode/ctcdecode/internal/pathtrie"
)

// TestGetPathTriePathVecRoundTrips verifies that extending the trie along a
// random label sequence and reading it back with PathVec reproduces exactly
// that sequence, in order.
func TestGetPathTriePathVecRoundTrips(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("path vec reconstructs the extension sequence", prop.ForAll(
		func(labels []int) bool {
			root := pathtrie.NewRoot()
			node := root
			for i, label := range labels {
				label = label % 20
				if label < 0 {
					label += 20
				}
				labels[i] = label
				node = node.GetPathTrie(label, i, -0.1, true)
				if node == nil {
					return false
				}
			}
			tokens, timesteps := node.PathVec()
			if len(tokens) != len(labels) {
				return false
			}
			for i, label := range labels {
				if tokens[i] != label {
					return false
				}
				if timesteps[i] != i {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.IntRange(0, 19)),
	))

	properties.TestingRun(t)
}

// TestRemoveNeverLeavesDanglingTombstones verifies that after removing every
// node in a chain, no tombstoned node with zero children is left reachable
// from the root (invariant: tombstones are pruned, not accumulated).
func TestRemoveNeverLeavesDanglingTombstones(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("removing a leaf chain prunes every tombstoned ancestor", prop.ForAll(
		func(depth int) bool {
			if depth < 1 || depth > 30 {
				return true
			}
			root := pathtrie.NewRoot()
			node := root
			chain := make([]*pathtrie.Node, 0, depth)
			for i := 0; i < depth; i++ {
				node = node.GetPathTrie(i%20, i, -0.1, true)
				chain = append(chain, node)
			}
			for _, n := range chain {
				n.Remove()
			}

			var walk func(n *pathtrie.Node) bool
			walk = func(n *pathtrie.Node) bool {
				if !n.Exists && len(n.Children) == 0 && n != root {
					return false
				}
				for _, c := range n.Children {
					if !walk(c) {
						return false
					}
				}
				return true
			}
			return walk(root)
		},
		gen.IntRange(1, 30),
	))

	properties.TestingRun(t)
}
