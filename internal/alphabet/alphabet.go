// Package alphabet maps CTC output labels to the tokens they represent and
// exposes the codepoint-boundary predicate used by UTF-8 mode scoring.
package alphabet

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// spaceToken is the sentinel line recognized as the word-boundary label when
// loading a charset file. A bare literal space is also accepted.
const spaceToken = "<space>"

// Alphabet is an ordered, immutable list of output tokens indexed by CTC
// label. The blank label is not stored explicitly; it is always Size().
type Alphabet struct {
	labels []string
	index  map[string]int
	space  int
}

// New builds an Alphabet from an ordered token list. Tokens are normalized to
// NFC so that dictionary and language-model lookups agree on composition.
func New(tokens []string) (*Alphabet, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("alphabet: no tokens provided")
	}
	a := &Alphabet{
		labels: make([]string, len(tokens)),
		index:  make(map[string]int, len(tokens)),
		space:  -1,
	}
	for i, tok := range tokens {
		tok = norm.NFC.String(tok)
		a.labels[i] = tok
		if _, exists := a.index[tok]; !exists {
			a.index[tok] = i
		}
		if tok == spaceToken || tok == " " {
			a.space = i
		}
	}
	if a.space < 0 {
		return nil, fmt.Errorf("alphabet: no space/word-boundary token found")
	}
	return a, nil
}

// Load reads one token per line, skipping blank lines and stripping a
// leading UTF-8 BOM on the first line.
func Load(path string) (*Alphabet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("alphabet: open %s: %w", path, err)
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		if line == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("alphabet: read %s: %w", path, err)
	}
	return New(tokens)
}

// Size returns the number of non-blank labels.
func (a *Alphabet) Size() int { return len(a.labels) }

// BlankLabel returns the CTC blank label, always Size().
func (a *Alphabet) BlankLabel() int { return len(a.labels) }

// SpaceLabel returns the label used as the word boundary.
func (a *Alphabet) SpaceLabel() int { return a.space }

// StringFromLabel returns the token text for a label, or "" if out of range.
func (a *Alphabet) StringFromLabel(label int) string {
	if label < 0 || label >= len(a.labels) {
		return ""
	}
	return a.labels[label]
}

// LabelFromString looks up the label for an exact token string.
func (a *Alphabet) LabelFromString(s string) (int, bool) {
	idx, ok := a.index[norm.NFC.String(s)]
	return idx, ok
}

// Tokens returns the ordered token list. The caller must not mutate it.
func (a *Alphabet) Tokens() []string { return a.labels }

// LabelsToString concatenates the token text for a label sequence, rendering
// the space/word-boundary label as a literal space regardless of how it was
// spelled in the charset file (e.g. "<space>").
func (a *Alphabet) LabelsToString(labels []int) string {
	var b strings.Builder
	for _, l := range labels {
		if l == a.space {
			b.WriteByte(' ')
			continue
		}
		b.WriteString(a.StringFromLabel(l))
	}
	return b.String()
}

// IsCodepointBoundary reports whether b is a UTF-8 lead byte (ASCII or the
// first byte of a multi-byte sequence), matching the upstream decoder's
// byte_is_codepoint_boundary predicate exactly.
func IsCodepointBoundary(b byte) bool {
	return utf8.RuneStart(b)
}
