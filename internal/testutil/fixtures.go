package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFixture represents a test fixture with input and expected output.
type TestFixture struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputFile   string                 `json:"input_file"`
	Expected    interface{}            `json:"expected"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// DecodeExpectedResult represents the expected ranked hypotheses for a
// fixture's per-timestep probability input.
type DecodeExpectedResult struct {
	Hypotheses []ExpectedHypothesis `json:"hypotheses"`
}

// ExpectedHypothesis is one ranked hypothesis a fixture expects to see.
type ExpectedHypothesis struct {
	Text    string  `json:"text"`
	LogProb float64 `json:"log_prob"`
}

// LoadFixture loads a test fixture from JSON file.
func LoadFixture(t *testing.T, name string) TestFixture {
	t.Helper()

	fixturesDir := GetFixturesDir(t)
	fixturePath := filepath.Join(fixturesDir, name+".json")

	data, err := os.ReadFile(fixturePath) //nolint:gosec // G304: Reading test fixture files with controlled paths
	require.NoError(t, err, "Failed to read fixture file: %s", fixturePath)

	var fixture TestFixture
	err = json.Unmarshal(data, &fixture)
	require.NoError(t, err, "Failed to unmarshal fixture JSON")

	return fixture
}

// SaveFixture saves a test fixture to JSON file.
func SaveFixture(t *testing.T, fixture TestFixture) {
	t.Helper()

	fixturesDir := GetFixturesDir(t)
	require.NoError(t, EnsureDir(fixturesDir))

	fixturePath := filepath.Join(fixturesDir, fixture.Name+".json")

	data, err := json.MarshalIndent(fixture, "", "  ")
	require.NoError(t, err, "Failed to marshal fixture to JSON")

	err = os.WriteFile(fixturePath, data, 0o600)
	require.NoError(t, err, "Failed to write fixture file: %s", fixturePath)
}

// createSingleWordFixture creates a fixture for a short, unambiguous
// utterance that should decode to one clear top hypothesis.
func createSingleWordFixture(t *testing.T) TestFixture {
	t.Helper()

	return TestFixture{
		Name:        "single_word",
		Description: "Short utterance that decodes cleanly to one word",
		InputFile:   "probs/single_word.json",
		Expected: DecodeExpectedResult{
			Hypotheses: []ExpectedHypothesis{
				{Text: "hi", LogProb: -1.2},
			},
		},
		Metadata: map[string]interface{}{
			"timesteps": 6,
			"classes":   29,
		},
	}
}

// createAmbiguousFixture creates a fixture where the beam search should keep
// more than one plausible hypothesis alive.
func createAmbiguousFixture(t *testing.T) TestFixture {
	t.Helper()

	return TestFixture{
		Name:        "ambiguous_pair",
		Description: "Utterance with two similarly-scored hypotheses",
		InputFile:   "probs/ambiguous_pair.json",
		Expected: DecodeExpectedResult{
			Hypotheses: []ExpectedHypothesis{
				{Text: "cat", LogProb: -4.1},
				{Text: "cot", LogProb: -4.3},
			},
		},
		Metadata: map[string]interface{}{
			"timesteps": 10,
			"classes":   29,
		},
	}
}

// createLanguageModelRescoredFixture creates a fixture whose top hypothesis
// changes once n-gram rescoring is applied.
func createLanguageModelRescoredFixture(t *testing.T) TestFixture {
	t.Helper()

	return TestFixture{
		Name:        "lm_rescored",
		Description: "Utterance whose acoustic-only and LM-rescored top hypotheses differ",
		InputFile:   "probs/lm_rescored.json",
		Expected: DecodeExpectedResult{
			Hypotheses: []ExpectedHypothesis{
				{Text: "recognize speech", LogProb: -9.8},
			},
		},
		Metadata: map[string]interface{}{
			"timesteps": 18,
			"classes":   29,
			"lm_order":  3,
		},
	}
}

// CreateSampleFixtures creates sample test fixtures covering the decoder's
// main behaviors: a clean single word, a genuinely ambiguous pair of
// hypotheses, and a case where language model rescoring changes the winner.
func CreateSampleFixtures(t *testing.T) {
	t.Helper()

	SaveFixture(t, createSingleWordFixture(t))
	SaveFixture(t, createAmbiguousFixture(t))
	SaveFixture(t, createLanguageModelRescoredFixture(t))
}

// GetFixtureInputPath returns the full path to a fixture's input file.
func GetFixtureInputPath(t *testing.T, fixture TestFixture) string {
	t.Helper()

	testDataDir := GetTestDataDir(t)
	return filepath.Join(testDataDir, fixture.InputFile)
}
