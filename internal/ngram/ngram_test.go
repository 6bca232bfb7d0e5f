package ngram_test

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctcdecode/ctcdecode/internal/ngram"
)

const sampleARPA = `\data\
ngram 1=5
ngram 2=3

\1-grams:
-1.0	<unk>
-0.5	<s>
-0.6	</s>
-0.3	the
-0.4	cat

\2-grams:
-0.1	<s>	the
-0.2	the	cat
-0.15	cat	</s>

\end\
`

func loadSample(t *testing.T) *ngram.Model {
	t.Helper()
	m, err := ngram.LoadARPA(strings.NewReader(sampleARPA))
	require.NoError(t, err)
	return m
}

func TestLoadARPAParsesOrderAndEntries(t *testing.T) {
	m := loadSample(t)
	assert.Equal(t, 2, m.Order())
	assert.InDelta(t, -0.1*math.Ln10, m.LogProb([]string{"<s>"}, "the"), 1e-9)
}

func TestLogProbBacksOffToUnigram(t *testing.T) {
	m := loadSample(t)
	got := m.LogProb([]string{"the"}, "<unk>")
	want := -1.0 * math.Ln10
	assert.InDelta(t, want, got, 1e-9)
}

func TestLogProbTruncatesContextToOrder(t *testing.T) {
	m := loadSample(t)
	short := m.LogProb([]string{"the"}, "cat")
	long := m.LogProb([]string{"<s>", "the"}, "cat")
	assert.Equal(t, short, long)
}

func TestVocabularyContainsUnigrams(t *testing.T) {
	m := loadSample(t)
	assert.ElementsMatch(t, []string{"<unk>", "<s>", "</s>", "the", "cat"}, m.Vocabulary())
}

func TestLogProbUnknownContextAndWordReturnsLogZero(t *testing.T) {
	m := ngram.NewModel(2)
	got := m.LogProb([]string{"missing"}, "also-missing")
	assert.True(t, math.IsInf(got, -1))
}
