package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ctcdecode/ctcdecode/internal/alphabet"
	"github.com/ctcdecode/ctcdecode/internal/batchdecoder"
	"github.com/ctcdecode/ctcdecode/internal/decoderstate"
	"github.com/ctcdecode/ctcdecode/internal/scorer"
)

// decodeInput is the on-disk shape read by the decode command: one
// utterance's per-timestep class probabilities, probs[t][c].
type decodeInput struct {
	Probs [][]float32 `json:"probs"`
}

// decodeOutputLine is one ranked hypothesis printed by the decode command.
type decodeOutputLine struct {
	Rank    int     `json:"rank"`
	Text    string  `json:"text"`
	Tokens  []int   `json:"tokens"`
	LogProb float64 `json:"log_prob"`
}

// decodeCmd represents the decode command.
var decodeCmd = &cobra.Command{
	Use:   "decode [probs-file]",
	Short: "Decode a single utterance's CTC probabilities",
	Long: `Decode reads a JSON file of per-timestep CTC class probabilities and
prints ranked transcription hypotheses.

The input file must contain an object with a "probs" field: a list of
timesteps, each a list of per-class probabilities in alphabet order followed
by the blank class.

Examples:
  ctcdecode decode probs.json
  ctcdecode decode probs.json --lm-path lm.arpa --alpha 0.5 --beta 1.0
  ctcdecode decode probs.json --format json --output hyps.json`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runDecodeCommand,
}

func runDecodeCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	alphabetPath := flagOverrideString(cmd, "alphabet", cfg.Alphabet.Path)
	if alphabetPath == "" {
		return fmt.Errorf("decode: --alphabet (or alphabet.path in config) is required")
	}

	beamSize := flagOverrideInt(cmd, "beam-size", cfg.Decoder.BeamSize)
	cutoffProb := flagOverrideFloat64(cmd, "cutoff-prob", cfg.Decoder.CutoffProb)
	cutoffTopN := flagOverrideInt(cmd, "cutoff-top-n", cfg.Decoder.CutoffTopN)
	lmPath := flagOverrideString(cmd, "lm-path", cfg.Scorer.LMPath)
	dictPath := flagOverrideString(cmd, "dict-path", cfg.Scorer.DictPath)
	alpha := flagOverrideFloat64(cmd, "alpha", cfg.Scorer.Alpha)
	beta := flagOverrideFloat64(cmd, "beta", cfg.Scorer.Beta)

	format, _ := cmd.Flags().GetString("format")
	outputFile, _ := cmd.Flags().GetString("output")
	topN, _ := cmd.Flags().GetInt("top")

	alph, err := alphabet.Load(alphabetPath)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	var sc *scorer.Scorer
	if lmPath != "" {
		sc, err = scorer.Load(alpha, beta, lmPath, dictPath, alph)
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}
	}

	input, err := loadDecodeInput(args[0])
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if len(input.Probs) == 0 {
		return fmt.Errorf("decode: %s contains no timesteps", args[0])
	}

	dec, err := batchdecoder.New(alph, sc, batchdecoder.Config{
		NumProcesses: 1,
		BeamSize:     beamSize,
		CutoffProb:   cutoffProb,
		CutoffTopN:   cutoffTopN,
	})
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	outputs, err := dec.DecodeOne(input.Probs)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	lines := renderHypotheses(alph, outputs, topN)

	rendered, err := formatDecodeOutput(format, lines)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(rendered), 0o600); err != nil {
			return fmt.Errorf("decode: write %s: %w", outputFile, err)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", outputFile)
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func loadDecodeInput(path string) (*decodeInput, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is an explicit CLI argument
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var in decodeInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &in, nil
}

func renderHypotheses(alph *alphabet.Alphabet, outputs []decoderstate.Output, topN int) []decodeOutputLine {
	sort.SliceStable(outputs, func(i, j int) bool {
		return outputs[i].Confidence > outputs[j].Confidence
	})
	if topN > 0 && topN < len(outputs) {
		outputs = outputs[:topN]
	}
	lines := make([]decodeOutputLine, len(outputs))
	for i, o := range outputs {
		lines[i] = decodeOutputLine{
			Rank:    i + 1,
			Text:    alph.LabelsToString(o.Tokens),
			Tokens:  o.Tokens,
			LogProb: o.Confidence,
		}
	}
	return lines
}

func formatDecodeOutput(format string, lines []decodeOutputLine) (string, error) {
	switch format {
	case "json":
		b, err := json.MarshalIndent(lines, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal JSON: %w", err)
		}
		return string(b), nil
	default:
		var out string
		for _, l := range lines {
			out += fmt.Sprintf("%d\t%.4f\t%s\n", l.Rank, l.LogProb, l.Text)
		}
		return out, nil
	}
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringP("format", "f", "text", "output format: text or json")
	decodeCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	decodeCmd.Flags().Int("top", 0, "print only the top N hypotheses (0 = all)")
}
