// Package decoderstate implements the CTC prefix beam search for a single
// utterance: given per-timestep class probabilities it maintains a bounded
// beam of path trie prefixes and, at the end, produces ranked transcription
// hypotheses.
package decoderstate

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctcdecode/ctcdecode/internal/alphabet"
	"github.com/ctcdecode/ctcdecode/internal/logmath"
	"github.com/ctcdecode/ctcdecode/internal/mempool"
	"github.com/ctcdecode/ctcdecode/internal/pathtrie"
	"github.com/ctcdecode/ctcdecode/internal/scorer"
)

// topPaths is the number of ranked hypotheses Decode returns. The reference
// decoder hard-codes this to 1 pending support for returning more; we keep
// that behavior but isolate it as a named constant.
const topPaths = 1

// Output is one ranked decoding hypothesis.
type Output struct {
	Tokens     []int
	Timesteps  []int
	Confidence float64
}

// State holds the beam for a single utterance across its timesteps.
type State struct {
	absTimeStep int
	blankLabel  int
	spaceLabel  int
	beamSize    int
	cutoffProb  float64
	cutoffTopN  int
	scorer      *scorer.Scorer
	root        *pathtrie.Node
	prefixes    []*pathtrie.Node
}

// New allocates a decoder state for one utterance. sc may be nil to decode
// without a language model.
func New(alph *alphabet.Alphabet, beamSize int, cutoffProb float64, cutoffTopN int, sc *scorer.Scorer) (*State, error) {
	if beamSize <= 0 {
		return nil, fmt.Errorf("decoderstate: beam_size must be positive, got %d", beamSize)
	}
	if cutoffProb <= 0 || cutoffProb > 1 {
		return nil, fmt.Errorf("decoderstate: cutoff_prob must be in (0, 1], got %g", cutoffProb)
	}

	root := pathtrie.NewRoot()
	root.LogProbBPrev = 0
	root.Score = 0
	if sc != nil {
		root.SetDictionary(sc.Dictionary())
	}

	return &State{
		blankLabel: alph.BlankLabel(),
		spaceLabel: alph.SpaceLabel(),
		beamSize:   beamSize,
		cutoffProb: cutoffProb,
		cutoffTopN: cutoffTopN,
		scorer:     sc,
		root:       root,
		prefixes:   []*pathtrie.Node{root},
	}, nil
}

// Next advances the beam by the given per-timestep class probabilities.
// probs[t][c] must sum to (approximately) 1 over c, and len(probs[t]) must
// equal the alphabet size plus one (the blank class).
func (d *State) Next(probs [][]float32) {
	for _, row := range probs {
		d.step(row)
		d.absTimeStep++
	}
}

func (d *State) step(prob []float32) {
	minCutoff := logmath.Zero
	fullBeam := false
	if d.scorer != nil {
		n := min(d.beamSize, len(d.prefixes))
		sortPrefixes(d.prefixes)
		top := d.prefixes[n-1]
		beta := d.scorer.Beta
		if beta < 0 {
			beta = 0
		}
		minCutoff = top.Score + math.Log(float64(prob[d.blankLabel])) - beta
		fullBeam = n == d.beamSize
	}

	pruned := prunedLogProbs(prob, d.cutoffProb, d.cutoffTopN)
	limit := min(d.beamSize, len(d.prefixes))

	for _, lp := range pruned {
		c := lp.Label
		logProbC := lp.LogProb

		for i := 0; i < limit; i++ {
			prefix := d.prefixes[i]
			if fullBeam && logProbC+prefix.Score < minCutoff {
				break
			}

			if c == d.blankLabel {
				prefix.LogProbBCur = logmath.LogSumExp(prefix.LogProbBCur, logProbC+prefix.Score)
				continue
			}

			if c == prefix.Character {
				prefix.LogProbNbCur = logmath.LogSumExp(prefix.LogProbNbCur, logProbC+prefix.LogProbNbPrev)
			}

			newNode := prefix.GetPathTrie(c, d.absTimeStep, logProbC, true)
			if newNode == nil {
				continue
			}

			logP := logmath.Zero
			switch {
			case c == prefix.Character && !math.IsInf(prefix.LogProbBPrev, -1):
				logP = logProbC + prefix.LogProbBPrev
			case c != prefix.Character:
				logP = logProbC + prefix.Score
			}

			if d.scorer != nil {
				scoreTarget := prefix
				if d.scorer.IsUTF8Mode() {
					scoreTarget = newNode
				}
				if d.scorer.IsScoringBoundary(scoreTarget, c) {
					words := d.scorer.MakeNgram(scoreTarget)
					bos := len(words) < d.scorer.MaxOrder()
					logP += d.scorer.Alpha*d.scorer.GetLogCondProb(words, bos, false) + d.scorer.Beta
				}
			}

			newNode.LogProbNbCur = logmath.LogSumExp(newNode.LogProbNbCur, logP)
		}
	}

	d.prefixes = d.prefixes[:0]
	d.root.IterateToVec(&d.prefixes)

	if len(d.prefixes) > d.beamSize {
		sortPrefixes(d.prefixes)
		for _, n := range d.prefixes[d.beamSize:] {
			n.Remove()
		}
		d.prefixes = d.prefixes[:d.beamSize]
	}
}

// Len returns the number of live prefixes currently held in the beam. It
// exists mainly so callers and tests can observe the beam-size invariant
// without reaching into decoder internals.
func (d *State) Len() int { return len(d.prefixes) }

// Decode ranks the current beam and returns the top hypotheses, applying an
// end-of-decoding language model tail bonus to prefixes that do not already
// end on a scoring boundary.
func (d *State) Decode() []Output {
	ranked := append([]*pathtrie.Node(nil), d.prefixes...)
	scores := make(map[*pathtrie.Node]float64, len(ranked))
	for _, p := range ranked {
		scores[p] = p.Score
	}

	if d.scorer != nil {
		n := min(d.beamSize, len(ranked))
		for i := 0; i < n; i++ {
			p := ranked[i]
			if p.IsEmpty() {
				scores[p] = scorer.OOVScore
				continue
			}
			if !d.scorer.IsScoringBoundary(p.Parent, p.Character) {
				words := d.scorer.MakeNgram(p)
				bos := len(words) < d.scorer.MaxOrder()
				scores[p] += d.scorer.Alpha*d.scorer.GetLogCondProb(words, bos, false) + d.scorer.Beta
			}
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i]], scores[ranked[j]]
		if si != sj {
			return si > sj
		}
		return ranked[i].Character > ranked[j].Character
	})

	numPrefixes := min(d.beamSize, len(ranked))
	numReturned := min(numPrefixes, topPaths)

	outputs := make([]Output, 0, numReturned)
	for i := 0; i < numReturned; i++ {
		p := ranked[i]
		tokens, timesteps := p.PathVec()
		approxCTC := scores[p]
		if d.scorer != nil {
			words := d.scorer.SplitLabelsIntoScoredUnits(tokens)
			approxCTC -= float64(len(words)) * d.scorer.Beta
			approxCTC -= d.scorer.Alpha * d.scorer.GetSentLogProb(words)
		}
		outputs = append(outputs, Output{Tokens: tokens, Timesteps: timesteps, Confidence: -approxCTC})
	}
	return outputs
}

func sortPrefixes(prefixes []*pathtrie.Node) {
	sort.Slice(prefixes, func(i, j int) bool {
		if prefixes[i].Score != prefixes[j].Score {
			return prefixes[i].Score > prefixes[j].Score
		}
		return prefixes[i].Character > prefixes[j].Character
	})
}

type labelLogProb struct {
	Label   int
	LogProb float64
}

// prunedLogProbs sorts classes by probability descending and keeps entries
// until either cutoffTopN classes have been taken or their cumulative
// probability mass reaches cutoffProb, whichever happens first.
func prunedLogProbs(prob []float32, cutoffProb float64, cutoffTopN int) []labelLogProb {
	idx := mempool.GetInt(len(prob))
	defer mempool.PutInt(idx)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return prob[idx[i]] > prob[idx[j]] })

	n := cutoffTopN
	if n <= 0 || n > len(idx) {
		n = len(idx)
	}

	out := make([]labelLogProb, 0, n)
	cumulative := 0.0
	for _, i := range idx {
		if len(out) >= n {
			break
		}
		p := float64(prob[i])
		out = append(out, labelLogProb{Label: i, LogProb: math.Log(p)})
		cumulative += p
		if cumulative >= cutoffProb {
			break
		}
	}
	return out
}
