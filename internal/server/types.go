// Package server exposes the CTC decoder over HTTP and WebSocket: a
// request/response endpoint for decoding a complete utterance, a batch
// endpoint for decoding many at once, and a streaming endpoint for decoding
// per-timestep probability frames as they arrive.
package server

import (
	"fmt"
	"net/http"

	"github.com/ctcdecode/ctcdecode/internal/alphabet"
	"github.com/ctcdecode/ctcdecode/internal/batchdecoder"
	"github.com/ctcdecode/ctcdecode/internal/scorer"
)

// Server holds the HTTP/WebSocket server state and its decoding dependencies.
type Server struct {
	alphabet    *alphabet.Alphabet
	scorer      *scorer.Scorer
	decoder     *batchdecoder.Decoder
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	rateLimiter *RateLimiter
}

// RateLimitConfig controls the optional per-IP rate limiter.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	BeamSize    int
	CutoffProb  float64
	CutoffTopN  int
	RateLimit   RateLimitConfig
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// HypothesisResult is a single ranked decode hypothesis.
type HypothesisResult struct {
	Text    string  `json:"text"`
	Tokens  []int   `json:"tokens"`
	LogProb float64 `json:"log_prob"`
}

// DecodeRequest carries a single utterance's per-timestep class probabilities,
// probs[t][c] being the probability of class c at timestep t.
type DecodeRequest struct {
	Probs [][]float32 `json:"probs"`
}

// DecodeResponse is the result of decoding a single utterance.
type DecodeResponse struct {
	Success     bool               `json:"success"`
	Hypotheses  []HypothesisResult `json:"hypotheses,omitempty"`
	Error       string             `json:"error,omitempty"`
	ProcessedMs int64              `json:"processed_ms"`
}

// BatchDecodeRequest carries many utterances to decode concurrently.
type BatchDecodeRequest struct {
	Utterances [][][]float32 `json:"utterances"`
	SeqLengths []int         `json:"seq_lengths,omitempty"`
}

// BatchDecodeResponse holds one hypothesis list per utterance, in input
// order.
type BatchDecodeResponse struct {
	Success     bool                 `json:"success"`
	Results     [][]HypothesisResult `json:"results,omitempty"`
	Error       string               `json:"error,omitempty"`
	ProcessedMs int64                `json:"processed_ms"`
}

// NewServer builds a Server around a fixed alphabet and an optional scorer.
func NewServer(cfg Config, alph *alphabet.Alphabet, sc *scorer.Scorer) (*Server, error) {
	if alph == nil {
		return nil, fmt.Errorf("server: alphabet must not be nil")
	}

	dcfg := batchdecoder.DefaultConfig()
	if cfg.BeamSize > 0 {
		dcfg.BeamSize = cfg.BeamSize
	}
	if cfg.CutoffProb > 0 {
		dcfg.CutoffProb = cfg.CutoffProb
	}
	if cfg.CutoffTopN > 0 {
		dcfg.CutoffTopN = cfg.CutoffTopN
	}

	decoder, err := batchdecoder.New(alph, sc, dcfg)
	if err != nil {
		return nil, fmt.Errorf("server: build decoder: %w", err)
	}

	var limiter *RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMinute,
			cfg.RateLimit.RequestsPerHour,
			cfg.RateLimit.MaxRequestsPerDay,
			cfg.RateLimit.MaxDataPerDay,
		)
	}

	corsOrigin := cfg.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}

	return &Server{
		alphabet:    alph,
		scorer:      sc,
		decoder:     decoder,
		corsOrigin:  corsOrigin,
		maxUploadMB: cfg.MaxUploadMB,
		timeoutSec:  cfg.TimeoutSec,
		rateLimiter: limiter,
	}, nil
}

// Close releases server resources. The decoder holds nothing that needs
// explicit release, but this keeps the shutdown path uniform.
func (s *Server) Close() error { return nil }

// SetupRoutes registers the server's HTTP routes on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/v1/decode", s.corsMiddleware(s.rateLimitMiddleware(s.decodeHandler)))
	mux.HandleFunc("/v1/decode/batch", s.corsMiddleware(s.rateLimitMiddleware(s.batchDecodeHandler)))
	mux.HandleFunc("/v1/stream", s.streamHandler)
}
