// Package scorer combines an n-gram language model with a vocabulary
// dictionary to rescore beam search prefixes, mirroring the external scorer
// used by the reference CTC beam search decoder.
package scorer

import (
	"fmt"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ctcdecode/ctcdecode/internal/alphabet"
	"github.com/ctcdecode/ctcdecode/internal/dictfst"
	"github.com/ctcdecode/ctcdecode/internal/ngram"
	"github.com/ctcdecode/ctcdecode/internal/pathtrie"
)

// OOVScore is assigned to a prefix that reaches end-of-decoding without ever
// producing a token (the empty hypothesis), matching the reference decoder.
// GetLogCondProb also returns it for a word the language model gives no
// probability to (no matching entry and no <unk>).
const OOVScore = -1000.0

// condProbCacheSize bounds the LRU cache of conditional log-probability
// lookups, which are repeated heavily across beams and timesteps.
const condProbCacheSize = 8192

// Mode selects how the scorer segments a label sequence into scoring units.
type Mode int

// Scoring modes.
const (
	ModeWord Mode = iota
	ModeUTF8
)

// Scorer rescores beam search prefixes using a language model and an
// optional vocabulary-constrained dictionary.
type Scorer struct {
	Alpha float64
	Beta  float64

	mode     Mode
	lm       *ngram.Model
	dict     *dictfst.Dictionary
	alphabet *alphabet.Alphabet
	spaceID  int
	cache    *lru.Cache[string, float64]
}

// Load builds a Scorer from an ARPA language model file at lmPath. When
// dictPath is non-empty, the persisted dictionary is loaded from disk;
// otherwise the dictionary is rebuilt from the language model's own
// vocabulary, exercising the supplemental "no separate vocabulary file"
// path.
func Load(alpha, beta float64, lmPath, dictPath string, alph *alphabet.Alphabet) (*Scorer, error) {
	f, err := os.Open(lmPath)
	if err != nil {
		return nil, fmt.Errorf("scorer: open language model %s: %w", lmPath, err)
	}
	defer f.Close()

	lm, err := ngram.LoadARPA(f)
	if err != nil {
		return nil, fmt.Errorf("scorer: load language model %s: %w", lmPath, err)
	}

	mode := inferMode(lm.Vocabulary())

	var dict *dictfst.Dictionary
	if dictPath != "" {
		dict, err = dictfst.Load(dictPath, alph, mode == ModeUTF8)
		if err != nil {
			return nil, fmt.Errorf("scorer: load dictionary %s: %w", dictPath, err)
		}
	} else {
		dict = dictfst.BuildFromWordList(lm.Vocabulary(), alph, mode == ModeUTF8)
	}

	cache, err := lru.New[string, float64](condProbCacheSize)
	if err != nil {
		return nil, fmt.Errorf("scorer: allocate cache: %w", err)
	}

	return &Scorer{
		Alpha:    alpha,
		Beta:     beta,
		mode:     mode,
		lm:       lm,
		dict:     dict,
		alphabet: alph,
		spaceID:  alph.SpaceLabel(),
		cache:    cache,
	}, nil
}

func inferMode(vocab []string) Mode {
	for _, w := range vocab {
		switch w {
		case ngram.StartToken, ngram.EndToken, ngram.UnknownToken:
			continue
		}
		if utf8.RuneCountInString(w) != 1 {
			return ModeWord
		}
	}
	return ModeUTF8
}

// IsUTF8Mode reports whether the scorer's language model vocabulary is
// single-codepoint (character-level) rather than whole-word.
func (s *Scorer) IsUTF8Mode() bool { return s.mode == ModeUTF8 }

// MaxOrder returns the underlying language model's n-gram order.
func (s *Scorer) MaxOrder() int { return s.lm.Order() }

// Dictionary returns the FST consulted by the path trie when extending
// prefixes. The returned value is immutable and safe to share across
// concurrently decoding states.
func (s *Scorer) Dictionary() pathtrie.FST { return s.dict }

// ResetParams updates the language model weight and word insertion bonus in
// place, letting a caller retune a loaded scorer without reloading the
// language model or dictionary.
func (s *Scorer) ResetParams(alpha, beta float64) {
	s.Alpha = alpha
	s.Beta = beta
}

// SaveDictionary persists the scorer's vocabulary to path.
func (s *Scorer) SaveDictionary(path string) error {
	return dictfst.Save(path, s.dict.Words())
}

// IsScoringBoundary reports whether appending newLabel to prefix completes a
// scoring unit: a codepoint boundary in UTF-8 mode, or a space in word mode.
func (s *Scorer) IsScoringBoundary(prefix *pathtrie.Node, newLabel int) bool {
	if s.mode == ModeUTF8 {
		return alphabet.IsCodepointBoundary(byte(newLabel + 1))
	}
	return newLabel == s.spaceID
}

// MakeNgram walks back from prefix, collecting up to MaxOrder scoring units
// (graphemes in UTF-8 mode, words in word mode), oldest first.
func (s *Scorer) MakeNgram(prefix *pathtrie.Node) []string {
	var words []string
	node := prefix
	for i := 0; i < s.MaxOrder() && node != nil && !node.IsEmpty(); i++ {
		var tokens []int
		var stop *pathtrie.Node
		if s.mode == ModeUTF8 {
			tokens, _, stop = node.PrevGrapheme()
		} else {
			tokens, _, stop = node.PrevWord(s.spaceID)
		}
		words = append([]string{s.unitToString(tokens)}, words...)
		if stop.IsEmpty() {
			break
		}
		node = stop.Parent
	}
	return words
}

// SplitLabelsIntoScoredUnits segments a full label sequence the same way
// MakeNgram segments a prefix: by codepoint in UTF-8 mode, by space-delimited
// word in word mode.
func (s *Scorer) SplitLabelsIntoScoredUnits(labels []int) []string {
	var units []string
	var cur []int
	flush := func() {
		if len(cur) > 0 {
			units = append(units, s.unitToString(cur))
			cur = nil
		}
	}
	for _, l := range labels {
		if s.mode == ModeWord {
			if l == s.spaceID {
				flush()
				continue
			}
			cur = append(cur, l)
			continue
		}
		if alphabet.IsCodepointBoundary(byte(l+1)) && len(cur) > 0 {
			flush()
		}
		cur = append(cur, l)
	}
	flush()
	return units
}

func (s *Scorer) unitToString(labels []int) string {
	var b strings.Builder
	for _, l := range labels {
		b.WriteString(s.alphabet.StringFromLabel(l))
	}
	return b.String()
}

// GetLogCondProb returns the conditional log-probability of the last word in
// ngram given the preceding ones, optionally framed with start/end of
// sentence tokens. Results are cached since the same short n-grams recur
// constantly across beams.
func (s *Scorer) GetLogCondProb(words []string, bos, eos bool) float64 {
	seq := words
	if bos {
		seq = append([]string{ngram.StartToken}, seq...)
	}
	if eos {
		seq = append(seq, ngram.EndToken)
	}
	if len(seq) == 0 {
		return ngram.LogZero
	}

	key := strings.Join(seq, "\x1f")
	if v, ok := s.cache.Get(key); ok {
		return v
	}
	lp := s.lm.LogProb(seq[:len(seq)-1], seq[len(seq)-1])
	if math.IsInf(lp, -1) {
		lp = OOVScore
	}
	s.cache.Add(key, lp)
	return lp
}

// GetSentLogProb returns the sum of conditional log-probabilities across a
// full sentence, with bos framing on the first word and eos framing on the
// last. Only ever feeds the approximate confidence value, never ranking:
// with eos=true the last term evaluates to P(</s> | ctx, w) rather than
// P(w | ctx) + P(</s> | ctx, w), so the last word's own conditional is not
// summed in. A literal reading of "eos=true on the last word" rather than a
// separate trailing end-of-sentence term.
func (s *Scorer) GetSentLogProb(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	total := 0.0
	for i, w := range words {
		ctx := words[:i]
		total += s.GetLogCondProb(append(append([]string{}, ctx...), w), i == 0, i == len(words)-1)
	}
	return total
}
