package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode health response", "error", err)
	}
}

// decodeHandler decodes a single utterance's per-timestep class probabilities.
func (s *Server) decodeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.maxUploadMB > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	}

	var req DecodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeDecodeError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Probs) == 0 {
		s.writeDecodeError(w, "probs must contain at least one timestep", http.StatusBadRequest)
		return
	}

	start := time.Now()
	out, err := s.decoder.DecodeOne(req.Probs)
	duration := time.Since(start)

	if err != nil {
		decodeRequestsTotal.WithLabelValues("http", "error").Inc()
		s.writeDecodeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	decodeRequestsTotal.WithLabelValues("http", "success").Inc()
	decodeDuration.WithLabelValues("http").Observe(duration.Seconds())

	hyps := make([]HypothesisResult, len(out))
	for i, o := range out {
		hyps[i] = HypothesisResult{Text: s.alphabet.LabelsToString(o.Tokens), Tokens: o.Tokens, LogProb: o.Confidence}
		hypothesisLogProb.Observe(o.Confidence)
	}

	w.Header().Set("Content-Type", "application/json")
	response := DecodeResponse{Success: true, Hypotheses: hyps, ProcessedMs: duration.Milliseconds()}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode decode response", "error", err)
	}
}

// batchDecodeHandler decodes many utterances concurrently through the shared
// worker pool.
func (s *Server) batchDecodeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.maxUploadMB > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	}

	var req BatchDecodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBatchDecodeError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Utterances) == 0 {
		s.writeBatchDecodeError(w, "utterances must not be empty", http.StatusBadRequest)
		return
	}

	seqLengths := req.SeqLengths
	if seqLengths == nil {
		seqLengths = make([]int, len(req.Utterances))
		for i, u := range req.Utterances {
			seqLengths[i] = len(u)
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout())
	defer cancel()

	start := time.Now()
	out, err := s.decoder.DecodeBatch(ctx, req.Utterances, seqLengths)
	duration := time.Since(start)

	if err != nil {
		decodeRequestsTotal.WithLabelValues("batch", "error").Inc()
		s.writeBatchDecodeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	decodeRequestsTotal.WithLabelValues("batch", "success").Add(float64(len(req.Utterances)))
	decodeDuration.WithLabelValues("batch").Observe(duration.Seconds())

	results := make([][]HypothesisResult, len(out))
	for i, hyps := range out {
		results[i] = make([]HypothesisResult, len(hyps))
		for j, o := range hyps {
			results[i][j] = HypothesisResult{Text: s.alphabet.LabelsToString(o.Tokens), Tokens: o.Tokens, LogProb: o.Confidence}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	response := BatchDecodeResponse{Success: true, Results: results, ProcessedMs: duration.Milliseconds()}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode batch decode response", "error", err)
	}
}

func (s *Server) requestTimeout() time.Duration {
	if s.timeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.timeoutSec) * time.Second
}

func (s *Server) writeDecodeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(DecodeResponse{Success: false, Error: message}); err != nil {
		slog.Error("failed to encode decode error response", "error", err)
	}
}

func (s *Server) writeBatchDecodeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(BatchDecodeResponse{Success: false, Error: message}); err != nil {
		slog.Error("failed to encode batch decode error response", "error", err)
	}
}
