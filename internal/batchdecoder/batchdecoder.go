// Package batchdecoder runs the CTC prefix beam search over many utterances
// concurrently, using a fixed-size worker pool so memory use stays bounded
// regardless of batch size.
package batchdecoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/ctcdecode/ctcdecode/internal/alphabet"
	"github.com/ctcdecode/ctcdecode/internal/decoderstate"
	"github.com/ctcdecode/ctcdecode/internal/scorer"
)

// Config controls batch decoding concurrency and beam search parameters.
type Config struct {
	NumProcesses int // worker count, must be positive; see DefaultConfig
	BeamSize     int
	CutoffProb   float64
	CutoffTopN   int
}

// DefaultConfig returns sensible decoding defaults.
func DefaultConfig() Config {
	return Config{
		NumProcesses: runtime.NumCPU(),
		BeamSize:     100,
		CutoffProb:   1.0,
		CutoffTopN:   40,
	}
}

// Decoder decodes one or many utterances using a shared alphabet and an
// optional shared scorer.
type Decoder struct {
	alphabet *alphabet.Alphabet
	scorer   *scorer.Scorer
	cfg      Config
}

// New validates cfg and builds a Decoder. NumProcesses must be positive;
// pass DefaultConfig().NumProcesses (runtime.NumCPU()) for the common case
// rather than relying on an implicit default.
func New(alph *alphabet.Alphabet, sc *scorer.Scorer, cfg Config) (*Decoder, error) {
	if cfg.NumProcesses <= 0 {
		return nil, fmt.Errorf("batchdecoder: num_processes must be positive, got %d", cfg.NumProcesses)
	}
	if cfg.BeamSize <= 0 {
		return nil, fmt.Errorf("batchdecoder: beam_size must be positive, got %d", cfg.BeamSize)
	}
	if alph == nil {
		return nil, errors.New("batchdecoder: alphabet must not be nil")
	}
	return &Decoder{alphabet: alph, scorer: sc, cfg: cfg}, nil
}

// BeamSize returns the configured beam width.
func (d *Decoder) BeamSize() int { return d.cfg.BeamSize }

// CutoffProb returns the configured cumulative probability cutoff.
func (d *Decoder) CutoffProb() float64 { return d.cfg.CutoffProb }

// CutoffTopN returns the configured per-timestep class cutoff.
func (d *Decoder) CutoffTopN() int { return d.cfg.CutoffTopN }

// DecodeOne runs the beam search over a single utterance's per-timestep
// class probabilities and returns its ranked hypotheses.
func (d *Decoder) DecodeOne(probs [][]float32) ([]decoderstate.Output, error) {
	st, err := decoderstate.New(d.alphabet, d.cfg.BeamSize, d.cfg.CutoffProb, d.cfg.CutoffTopN, d.scorer)
	if err != nil {
		return nil, err
	}
	st.Next(probs)
	return st.Decode(), nil
}

type job struct {
	index int
	probs [][]float32
}

type result struct {
	index int
	out   []decoderstate.Output
	err   error
}

// DecodeBatch decodes every utterance in probs independently across a fixed
// worker pool, preserving input order in the returned slice. seqLengths[i]
// truncates probs[i] to its real length, letting callers pad a batch to a
// common timestep count.
func (d *Decoder) DecodeBatch(ctx context.Context, probs [][][]float32, seqLengths []int) ([][]decoderstate.Output, error) {
	if len(probs) != len(seqLengths) {
		return nil, fmt.Errorf("batchdecoder: batch_size (%d) must equal len(seq_lengths) (%d)", len(probs), len(seqLengths))
	}
	n := len(probs)
	if n == 0 {
		return nil, errors.New("batchdecoder: no utterances provided")
	}
	for i, l := range seqLengths {
		if l < 0 || l > len(probs[i]) {
			return nil, fmt.Errorf("batchdecoder: seq_lengths[%d]=%d out of range for %d timesteps", i, l, len(probs[i]))
		}
	}

	workers := d.cfg.NumProcesses
	if workers > n {
		workers = n
	}

	jobs := make(chan job, n)
	results := make(chan result, n)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go d.worker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i := 0; i < n; i++ {
			select {
			case jobs <- job{index: i, probs: probs[i][:seqLengths[i]]}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([][]decoderstate.Output, n)
	var firstErr error
	for r := range results {
		batchUtterancesTotal.Inc()
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("batchdecoder: utterance %d: %w", r.index, r.err)
			}
			continue
		}
		ordered[r.index] = r.out
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return ordered, nil
}

func (d *Decoder) worker(ctx context.Context, jobs <-chan job, results chan<- result, wg *sync.WaitGroup) {
	defer wg.Done()
	for j := range jobs {
		select {
		case <-ctx.Done():
			results <- result{index: j.index, err: ctx.Err()}
			continue
		default:
		}

		timer := newBatchTimer()
		out, err := d.DecodeOne(j.probs)
		br := timer.observe()
		slog.Debug("decoded utterance", "index", j.index, "timing", br.String())
		results <- result{index: j.index, out: out, err: err}
	}
}
