package batchdecoder_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ctcdecode/ctcdecode/internal/alphabet"
	"github.com/ctcdecode/ctcdecode/internal/batchdecoder"
	"github.com/ctcdecode/ctcdecode/internal/testutil"
)

// syntheticProbsForFixture builds a deterministic probability matrix shaped
// by a fixture's declared timestep/class counts: each timestep peaks on a
// different class so the beam search has an unambiguous best path to find,
// independent of what the fixture's own expected hypotheses say.
func syntheticProbsForFixture(t *testing.T, fixture testutil.TestFixture) [][]float32 {
	t.Helper()

	meta := fixture.Metadata
	timesteps, ok := meta["timesteps"].(float64)
	require.True(t, ok, "fixture %s missing numeric timesteps metadata", fixture.Name)
	classes, ok := meta["classes"].(float64)
	require.True(t, ok, "fixture %s missing numeric classes metadata", fixture.Name)

	numClasses := int(classes)
	probs := make([][]float32, int(timesteps))
	for step := range probs {
		frame := make([]float32, numClasses)
		peak := step % numClasses
		for c := range frame {
			frame[c] = 0.01
		}
		frame[peak] = 1 - 0.01*float32(numClasses-1)
		probs[step] = frame
	}
	return probs
}

func TestDecodeOneAcrossSampleFixtures(t *testing.T) {
	testutil.CreateSampleFixtures(t)

	names := []string{"single_word", "ambiguous_pair", "lm_rescored"}
	for _, name := range names {
		name := name
		t.Run(name, func(t *testing.T) {
			fixture := testutil.LoadFixture(t, name)
			probs := syntheticProbsForFixture(t, fixture)

			tokens := make([]string, len(probs[0])-1)
			for i := range tokens {
				tokens[i] = string(rune('a' + i))
			}
			tokens[len(tokens)-1] = "<space>"

			a, err := alphabet.New(tokens)
			require.NoError(t, err)

			d, err := batchdecoder.New(a, nil, batchdecoder.Config{NumProcesses: 1, BeamSize: 20, CutoffProb: 1.0})
			require.NoError(t, err)

			out, err := d.DecodeOne(probs)
			require.NoError(t, err)
			require.NotEmpty(t, out)
		})
	}
}
