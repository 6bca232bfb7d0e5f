// Package dictfst implements the vocabulary-constrained dictionary consulted
// by the path trie while it extends prefixes. It persists the vocabulary
// through a vellum finite-state transducer (the same encoding bleve uses for
// its term dictionaries) and keeps an in-memory label trie for the
// per-timestep incremental walk the decoder performs.
package dictfst

import (
	"fmt"
	"os"
	"sort"

	"github.com/blevesearch/vellum"

	"github.com/ctcdecode/ctcdecode/internal/alphabet"
)

// Dictionary is a read-only, label-indexed trie over a word list. It
// implements the pathtrie.FST interface. Because the trie has no per-walk
// mutable state of its own (the current matcher state lives on the path
// trie node, not here), a single Dictionary value can be shared safely by
// every DecoderState decoding concurrently; no defensive per-state copy is
// required.
type Dictionary struct {
	nodes []trieNode
	words []string
}

type trieNode struct {
	next  map[int]int
	final bool
}

// Start returns the dictionary's initial matcher state.
func (d *Dictionary) Start() uint64 { return 0 }

// IsFinal reports whether state corresponds to a complete dictionary entry.
func (d *Dictionary) IsFinal(state uint64) bool {
	if int(state) >= len(d.nodes) {
		return false
	}
	return d.nodes[state].final
}

// Step advances state by one label, using the label+1 convention that
// reserves label value 0 for the epsilon transition used internally by the
// FST builder.
func (d *Dictionary) Step(state uint64, labelPlusOne int) (uint64, bool) {
	if int(state) >= len(d.nodes) {
		return 0, false
	}
	next, ok := d.nodes[state].next[labelPlusOne]
	return uint64(next), ok
}

// Words returns the vocabulary the dictionary was built from.
func (d *Dictionary) Words() []string { return d.words }

func newDictionary() *Dictionary {
	return &Dictionary{nodes: []trieNode{{next: map[int]int{}}}}
}

func (d *Dictionary) insert(labels []int) {
	cur := 0
	for _, l := range labels {
		key := l + 1
		nxt, ok := d.nodes[cur].next[key]
		if !ok {
			d.nodes = append(d.nodes, trieNode{next: map[int]int{}})
			nxt = len(d.nodes) - 1
			d.nodes[cur].next[key] = nxt
		}
		cur = nxt
	}
	d.nodes[cur].final = true
}

// BuildFromLabelSequences builds a dictionary directly from pre-tokenized
// label sequences, one per vocabulary entry.
func BuildFromLabelSequences(sequences [][]int, words []string) *Dictionary {
	d := newDictionary()
	for _, seq := range sequences {
		d.insert(seq)
	}
	d.words = words
	return d
}

// BuildFromWordList tokenizes each word against alph (one label per byte in
// UTF-8 mode, one label per rune in word mode) and builds the matching
// trie. Words that cannot be tokenized against the alphabet are skipped.
func BuildFromWordList(words []string, alph *alphabet.Alphabet, utf8Mode bool) *Dictionary {
	d := newDictionary()
	var kept []string
	for _, w := range words {
		seq, ok := tokenize(w, alph, utf8Mode)
		if !ok || len(seq) == 0 {
			continue
		}
		d.insert(seq)
		kept = append(kept, w)
	}
	d.words = kept
	return d
}

func tokenize(word string, alph *alphabet.Alphabet, utf8Mode bool) ([]int, bool) {
	if utf8Mode {
		seq := make([]int, 0, len(word))
		for i := 0; i < len(word); i++ {
			label, ok := alph.LabelFromString(string(word[i]))
			if !ok {
				return nil, false
			}
			seq = append(seq, label)
		}
		return seq, true
	}
	seq := make([]int, 0, len([]rune(word)))
	for _, r := range word {
		label, ok := alph.LabelFromString(string(r))
		if !ok {
			return nil, false
		}
		seq = append(seq, label)
	}
	return seq, true
}

// Save persists the vocabulary as a vellum finite-state transducer. Entries
// must be inserted in sorted byte order, a requirement of the underlying
// builder, so the word list is sorted and deduplicated first.
func Save(path string, words []string) error {
	uniq := dedupeSorted(words)

	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dictfst: open %s for writing: %w", path, err)
	}
	defer w.Close()

	builder, err := vellum.New(w, nil)
	if err != nil {
		return fmt.Errorf("dictfst: new builder: %w", err)
	}
	for i, word := range uniq {
		if err := builder.Insert([]byte(word), uint64(i)); err != nil {
			return fmt.Errorf("dictfst: insert %q: %w", word, err)
		}
	}
	if err := builder.Close(); err != nil {
		return fmt.Errorf("dictfst: close builder: %w", err)
	}
	return nil
}

// Load reads back a vellum-encoded vocabulary and rebuilds the label trie
// against alph.
func Load(path string, alph *alphabet.Alphabet, utf8Mode bool) (*Dictionary, error) {
	fst, err := vellum.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dictfst: open %s: %w", path, err)
	}
	defer fst.Close()

	var words []string
	it, err := fst.Iterator(nil, nil)
	for err == nil {
		key, _ := it.Current()
		words = append(words, string(key))
		err = it.Next()
	}
	if err != nil && err != vellum.ErrIteratorDone {
		return nil, fmt.Errorf("dictfst: iterate %s: %w", path, err)
	}

	return BuildFromWordList(words, alph, utf8Mode), nil
}

func dedupeSorted(words []string) []string {
	sorted := append([]string(nil), words...)
	sort.Strings(sorted)
	out := sorted[:0]
	var prev string
	first := true
	for _, w := range sorted {
		if first || w != prev {
			out = append(out, w)
			prev = w
			first = false
		}
	}
	return out
}
