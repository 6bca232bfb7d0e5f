// Package ngram loads ARPA-format back-off language models and answers
// conditional and sentence log-probability queries with standard Katz
// back-off, generalized to whatever order the loaded model provides.
package ngram

import (
	"strings"

	"github.com/ctcdecode/ctcdecode/internal/logmath"
)

// Sentence boundary and out-of-vocabulary tokens, as used by ARPA models.
const (
	StartToken   = "<s>"
	EndToken     = "</s>"
	UnknownToken = "<unk>"
)

// LogZero is returned for combinations the model assigns no probability to.
var LogZero = logmath.Zero

type entry struct {
	logProb    float64
	logBackoff float64
}

// Model is an n-gram language model with arbitrary back-off order.
type Model struct {
	order  int
	tables []map[string]entry // tables[k-1] holds (k)-gram entries
}

// NewModel allocates an empty model of the given maximum order.
func NewModel(order int) *Model {
	m := &Model{order: order, tables: make([]map[string]entry, order)}
	for i := range m.tables {
		m.tables[i] = make(map[string]entry)
	}
	return m
}

// Order returns the model's maximum n-gram order.
func (m *Model) Order() int { return m.order }

// Vocabulary returns every word seen in the unigram table.
func (m *Model) Vocabulary() []string {
	if len(m.tables) == 0 {
		return nil
	}
	words := make([]string, 0, len(m.tables[0]))
	for k := range m.tables[0] {
		words = append(words, k)
	}
	return words
}

// LogProb returns the conditional natural-log probability of word following
// context, applying Katz back-off when the full n-gram is unseen. context is
// truncated to the model's order automatically.
func (m *Model) LogProb(context []string, word string) float64 {
	if len(context)+1 > m.order {
		context = context[len(context)-(m.order-1):]
	}
	return m.logProb(context, word)
}

func (m *Model) logProb(context []string, word string) float64 {
	n := len(context)
	words := make([]string, 0, n+1)
	words = append(words, context...)
	words = append(words, word)
	if e, ok := m.lookup(n+1, words); ok {
		return e.logProb
	}
	if n == 0 {
		if e, ok := m.lookup(1, []string{UnknownToken}); ok {
			return e.logProb
		}
		return LogZero
	}
	backoff := 0.0
	if e, ok := m.lookup(n, context); ok {
		backoff = e.logBackoff
	}
	return backoff + m.logProb(context[1:], word)
}

func (m *Model) lookup(order int, words []string) (entry, bool) {
	if order < 1 || order > len(m.tables) {
		return entry{}, false
	}
	e, ok := m.tables[order-1][gramKey(words)]
	return e, ok
}

func (m *Model) insert(order int, words []string, logProb, logBackoff float64) {
	if order < 1 {
		return
	}
	for order > len(m.tables) {
		m.tables = append(m.tables, make(map[string]entry))
	}
	if order > m.order {
		m.order = order
	}
	m.tables[order-1][gramKey(words)] = entry{logProb: logProb, logBackoff: logBackoff}
}

const gramSep = "\x1f"

func gramKey(words []string) string { return strings.Join(words, gramSep) }
