package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ctcdecode/ctcdecode/internal/alphabet"
	"github.com/ctcdecode/ctcdecode/internal/batchdecoder"
	"github.com/ctcdecode/ctcdecode/internal/scorer"
)

// batchInput is the on-disk shape read by the batch command: many
// utterances, each its own per-timestep class probabilities.
type batchInput struct {
	Utterances [][][]float32 `json:"utterances"`
	SeqLengths []int         `json:"seq_lengths,omitempty"`
}

// batchOutputLine holds one utterance's ranked hypotheses.
type batchOutputLine struct {
	Index      int                `json:"index"`
	Hypotheses []decodeOutputLine `json:"hypotheses"`
}

// batchCmd represents the batch command for parallel utterance decoding.
var batchCmd = &cobra.Command{
	Use:   "batch [utterances-file]",
	Short: "Decode many utterances concurrently",
	Long: `Batch reads a JSON file of many utterances' per-timestep CTC class
probabilities and decodes them concurrently across a fixed worker pool,
preserving input order in the results.

The input file must contain an object with an "utterances" field: a list of
utterances, each shaped like the "probs" field accepted by "ctcdecode
decode". An optional "seq_lengths" field truncates each utterance to its
real length, for batches padded to a common timestep count.

Examples:
  ctcdecode batch utterances.json --out results.json
  ctcdecode batch utterances.json --workers 4 --lm-path lm.arpa`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	alphabetPath := flagOverrideString(cmd, "alphabet", cfg.Alphabet.Path)
	if alphabetPath == "" {
		return fmt.Errorf("batch: --alphabet (or alphabet.path in config) is required")
	}

	beamSize := flagOverrideInt(cmd, "beam-size", cfg.Decoder.BeamSize)
	cutoffProb := flagOverrideFloat64(cmd, "cutoff-prob", cfg.Decoder.CutoffProb)
	cutoffTopN := flagOverrideInt(cmd, "cutoff-top-n", cfg.Decoder.CutoffTopN)
	lmPath := flagOverrideString(cmd, "lm-path", cfg.Scorer.LMPath)
	dictPath := flagOverrideString(cmd, "dict-path", cfg.Scorer.DictPath)
	alpha := flagOverrideFloat64(cmd, "alpha", cfg.Scorer.Alpha)
	beta := flagOverrideFloat64(cmd, "beta", cfg.Scorer.Beta)

	workers := flagOverrideInt(cmd, "workers", cfg.Batch.NumProcesses)
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	format, _ := cmd.Flags().GetString("format")
	outputFile, _ := cmd.Flags().GetString("out")
	topN, _ := cmd.Flags().GetInt("top")
	timeoutSec, _ := cmd.Flags().GetInt("timeout")

	alph, err := alphabet.Load(alphabetPath)
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}

	var sc *scorer.Scorer
	if lmPath != "" {
		sc, err = scorer.Load(alpha, beta, lmPath, dictPath, alph)
		if err != nil {
			return fmt.Errorf("batch: %w", err)
		}
	}

	input, err := loadBatchInput(args[0])
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	if len(input.Utterances) == 0 {
		return fmt.Errorf("batch: %s contains no utterances", args[0])
	}

	seqLengths := input.SeqLengths
	if len(seqLengths) == 0 {
		seqLengths = make([]int, len(input.Utterances))
		for i, u := range input.Utterances {
			seqLengths[i] = len(u)
		}
	}

	dec, err := batchdecoder.New(alph, sc, batchdecoder.Config{
		NumProcesses: workers,
		BeamSize:     beamSize,
		CutoffProb:   cutoffProb,
		CutoffTopN:   cutoffTopN,
	})
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}

	if format != "json" {
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Decoding %d utterance(s)\n", len(input.Utterances)); err != nil {
			return err
		}
	}

	ctx := context.Background()
	if timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
		defer cancel()
	}

	results, err := dec.DecodeBatch(ctx, input.Utterances, seqLengths)
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}

	lines := make([]batchOutputLine, len(results))
	for i, outputs := range results {
		lines[i] = batchOutputLine{Index: i, Hypotheses: renderHypotheses(alph, outputs, topN)}
	}

	rendered, err := formatBatchOutput(format, lines)
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(rendered), 0o600); err != nil {
			return fmt.Errorf("batch: write %s: %w", outputFile, err)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", outputFile)
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func loadBatchInput(path string) (*batchInput, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is an explicit CLI argument
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var in batchInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &in, nil
}

func formatBatchOutput(format string, lines []batchOutputLine) (string, error) {
	switch format {
	case "json":
		b, err := json.MarshalIndent(lines, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal JSON: %w", err)
		}
		return string(b), nil
	default:
		var out string
		for _, line := range lines {
			out += fmt.Sprintf("# utterance %d\n", line.Index)
			for _, h := range line.Hypotheses {
				out += fmt.Sprintf("%d\t%.4f\t%s\n", h.Rank, h.LogProb, h.Text)
			}
		}
		return out, nil
	}
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringP("format", "f", "text", "output format: text or json")
	batchCmd.Flags().String("out", "", "output file (default: stdout)")
	batchCmd.Flags().Int("top", 0, "print only the top N hypotheses per utterance (0 = all)")
	batchCmd.Flags().Int("workers", 0, "number of parallel decode workers (default: NumCPU)")
	batchCmd.Flags().Int("timeout", 0, "batch decode timeout in seconds (0 = no timeout)")
}
