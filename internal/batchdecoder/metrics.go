package batchdecoder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ctcdecode/ctcdecode/internal/common"
)

var (
	batchUtterancesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ctcdecode_batch_utterances_total",
			Help: "Total number of utterances decoded through the batch decoder",
		},
	)

	utteranceDecodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ctcdecode_utterance_decode_duration_seconds",
			Help:    "Per-utterance beam search duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// batchTimer times one utterance's beam search and reports it to both the
// Prometheus histogram and, on request, as a common.BenchmarkResult for
// structured logging.
type batchTimer struct {
	timer *common.Timer
}

func newBatchTimer() *batchTimer {
	return &batchTimer{timer: common.NewNamedTimer("utterance_decode")}
}

// observe stops the timer, records its duration in the decode-duration
// histogram, and returns a BenchmarkResult describing the single run.
func (t *batchTimer) observe() common.BenchmarkResult {
	d := t.timer.Stop()
	utteranceDecodeDuration.Observe(d.Seconds())
	return common.BenchmarkResult{
		Name:       t.timer.Name(),
		Duration:   d,
		Iterations: 1,
	}
}
