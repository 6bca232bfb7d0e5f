// Package pathtrie implements the prefix trie the beam search decoder
// extends one CTC label at a time. Each node owns the four log-probability
// accumulators (blank/non-blank, previous/current timestep) that the
// forward recursion needs, and knows how to walk back to the previous
// grapheme or word boundary for language-model scoring.
package pathtrie

import (
	"github.com/ctcdecode/ctcdecode/internal/alphabet"
	"github.com/ctcdecode/ctcdecode/internal/logmath"
)

// Root is the sentinel character value held by the trie's root node.
const Root = -1

// FST is the read-only dictionary consulted when a node has no child for a
// requested label yet. A single FST value is safe to share across many
// Nodes and across concurrently decoding DecoderStates: it carries no
// mutable walk state of its own, unlike the matcher object in the reference
// decoder that motivated a per-state FST copy.
type FST interface {
	Start() uint64
	IsFinal(state uint64) bool
	Step(state uint64, labelPlusOne int) (next uint64, ok bool)
}

// Node is one prefix in the beam search trie.
type Node struct {
	Character int
	Timestep  int
	Parent    *Node
	Children  []*Node

	LogProbBPrev  float64
	LogProbNbPrev float64
	LogProbBCur   float64
	LogProbNbCur  float64
	LogProbC      float64
	Score         float64

	// Exists is false for a tombstoned node kept around only because it
	// still has live children.
	Exists bool

	dictionary    FST
	dictState     uint64
	hasDictionary bool
}

// NewNode allocates a node with every accumulator at log-zero, matching the
// reference trie's constructor exactly.
func NewNode(character, timestep int, parent *Node, logProbC float64) *Node {
	return &Node{
		Character:     character,
		Timestep:      timestep,
		Parent:        parent,
		LogProbBPrev:  logmath.Zero,
		LogProbNbPrev: logmath.Zero,
		LogProbBCur:   logmath.Zero,
		LogProbNbCur:  logmath.Zero,
		LogProbC:      logProbC,
		Score:         logmath.Zero,
		Exists:        true,
	}
}

// NewRoot allocates the trie root.
func NewRoot() *Node {
	return NewNode(Root, 0, nil, logmath.Zero)
}

// IsEmpty reports whether this node is the trie root (the empty prefix).
func (n *Node) IsEmpty() bool { return n.Character == Root }

// SetDictionary attaches a dictionary to the node and positions the matcher
// state at the dictionary's start. Only meaningful on the root; children
// inherit their dictionary state from the parent's successful Step.
func (n *Node) SetDictionary(fst FST) {
	n.dictionary = fst
	n.hasDictionary = fst != nil
	if fst != nil {
		n.dictState = fst.Start()
	}
}

// GetPathTrie returns the child of n labeled newChar, extending the trie if
// necessary. It returns nil when a dictionary is attached and newChar would
// walk off the dictionary's language. reset controls whether reaching a
// dictionary-final state restarts the matcher at the dictionary start (used
// for the common "reset between words" mode).
func (n *Node) GetPathTrie(newChar, newTimestep int, curLogProbC float64, reset bool) *Node {
	for _, child := range n.Children {
		if child.Character != newChar {
			continue
		}
		if child.LogProbC < curLogProbC && len(child.Children) == 0 {
			child.LogProbC = curLogProbC
			child.Timestep = newTimestep
		}
		if !child.Exists {
			child.Exists = true
			child.LogProbBPrev = logmath.Zero
			child.LogProbNbPrev = logmath.Zero
			child.LogProbBCur = logmath.Zero
			child.LogProbNbCur = logmath.Zero
		}
		return child
	}

	if !n.hasDictionary {
		child := NewNode(newChar, newTimestep, n, curLogProbC)
		n.Children = append(n.Children, child)
		return child
	}

	next, ok := n.dictionary.Step(n.dictState, newChar+1)
	if !ok {
		if n.dictionary.IsFinal(n.dictState) && reset {
			n.dictState = n.dictionary.Start()
		}
		return nil
	}

	child := NewNode(newChar, newTimestep, n, curLogProbC)
	child.dictionary = n.dictionary
	child.hasDictionary = true
	if n.dictionary.IsFinal(next) && reset {
		child.dictState = n.dictionary.Start()
	} else {
		child.dictState = next
	}
	n.Children = append(n.Children, child)
	return child
}

// PathVec returns the label sequence and per-label timesteps from the root
// to n, excluding the root's own sentinel character.
func (n *Node) PathVec() ([]int, []int) {
	if n.Parent == nil || n.IsEmpty() {
		return nil, nil
	}
	tokens, timesteps := n.Parent.PathVec()
	return append(tokens, n.Character), append(timesteps, n.Timestep)
}

// PrevGrapheme walks back from n, collecting labels until it has consumed
// one full UTF-8 codepoint, and returns the node at which that codepoint
// starts (stop). stop.Parent is the node to continue ascending from for the
// next grapheme.
func (n *Node) PrevGrapheme() (tokens, timesteps []int, stop *Node) {
	if n.IsEmpty() {
		return nil, nil, n
	}
	if n.Parent != nil && !alphabet.IsCodepointBoundary(byte(n.Character+1)) {
		tokens, timesteps, stop = n.Parent.PrevGrapheme()
	} else {
		stop = n
	}
	tokens = append(tokens, n.Character)
	timesteps = append(timesteps, n.Timestep)
	return tokens, timesteps, stop
}

// PrevWord walks back from n, collecting labels until it reaches the space
// label or the root, and returns the boundary node (the space or root
// itself) as stop.
func (n *Node) PrevWord(spaceLabel int) (tokens, timesteps []int, stop *Node) {
	if n.IsEmpty() || n.Character == spaceLabel {
		return nil, nil, n
	}
	if n.Parent != nil {
		tokens, timesteps, stop = n.Parent.PrevWord(spaceLabel)
	} else {
		stop = n
	}
	tokens = append(tokens, n.Character)
	timesteps = append(timesteps, n.Timestep)
	return tokens, timesteps, stop
}

// IterateToVec slides every existing node's current-timestep accumulators
// into the previous-timestep slot, recomputes its score, and appends it to
// out. Non-existent (tombstoned) nodes are skipped but their subtrees are
// still visited, since a live descendant further down must still slide.
func (n *Node) IterateToVec(out *[]*Node) {
	if n.Exists {
		n.LogProbBPrev = n.LogProbBCur
		n.LogProbNbPrev = n.LogProbNbCur
		n.LogProbBCur = logmath.Zero
		n.LogProbNbCur = logmath.Zero
		n.Score = logmath.LogSumExp(n.LogProbBPrev, n.LogProbNbPrev)
		*out = append(*out, n)
	}
	for _, child := range n.Children {
		child.IterateToVec(out)
	}
}

// Remove tombstones n and prunes it, and any now-childless tombstoned
// ancestors, out of the tree.
func (n *Node) Remove() {
	n.Exists = false
	if len(n.Children) != 0 || n.Parent == nil {
		return
	}
	n.Parent.removeChild(n)
	if !n.Parent.Exists && len(n.Parent.Children) == 0 {
		n.Parent.Remove()
	}
}

func (n *Node) removeChild(c *Node) {
	for i, child := range n.Children {
		if child == c {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			return
		}
	}
}
