package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ctcdecode/ctcdecode/internal/alphabet"
	"github.com/ctcdecode/ctcdecode/internal/scorer"
	"github.com/ctcdecode/ctcdecode/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve CTC decoding over HTTP and WebSocket",
	Long: `Serve starts an HTTP server exposing the decoder:

  POST /v1/decode        - decode one utterance
  POST /v1/decode/batch  - decode many utterances concurrently
  GET  /v1/stream        - decode per-timestep frames over a WebSocket
  GET  /health            - health check

Examples:
  ctcdecode serve
  ctcdecode serve --port 8080 --alphabet chars.txt
  ctcdecode serve --lm-path lm.arpa --alpha 0.5 --beta 1.0 --rate-limit-enabled`,
	SilenceUsage: true,
	RunE:         runServeCommand,
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	alphabetPath := flagOverrideString(cmd, "alphabet", cfg.Alphabet.Path)
	if alphabetPath == "" {
		return fmt.Errorf("serve: --alphabet (or alphabet.path in config) is required")
	}

	host := flagOverrideString(cmd, "host", cfg.Server.Host)
	port := flagOverrideInt(cmd, "port", cfg.Server.Port)
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
	}

	corsOrigin, _ := cmd.Flags().GetString("cors-origin")
	maxUploadMB, _ := cmd.Flags().GetInt("max-upload-size")
	timeout, _ := cmd.Flags().GetInt("timeout")
	shutdownTimeout, _ := cmd.Flags().GetInt("shutdown-timeout")

	beamSize := flagOverrideInt(cmd, "beam-size", cfg.Decoder.BeamSize)
	cutoffProb := flagOverrideFloat64(cmd, "cutoff-prob", cfg.Decoder.CutoffProb)
	cutoffTopN := flagOverrideInt(cmd, "cutoff-top-n", cfg.Decoder.CutoffTopN)
	lmPath := flagOverrideString(cmd, "lm-path", cfg.Scorer.LMPath)
	dictPath := flagOverrideString(cmd, "dict-path", cfg.Scorer.DictPath)
	alpha := flagOverrideFloat64(cmd, "alpha", cfg.Scorer.Alpha)
	beta := flagOverrideFloat64(cmd, "beta", cfg.Scorer.Beta)

	rateLimitEnabled, _ := cmd.Flags().GetBool("rate-limit-enabled")
	requestsPerMinute, _ := cmd.Flags().GetInt("requests-per-minute")
	requestsPerHour, _ := cmd.Flags().GetInt("requests-per-hour")
	maxRequestsPerDay, _ := cmd.Flags().GetInt("max-requests-per-day")
	maxDataPerDay, _ := cmd.Flags().GetInt64("max-data-per-day")

	alph, err := alphabet.Load(alphabetPath)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	var sc *scorer.Scorer
	if lmPath != "" {
		sc, err = scorer.Load(alpha, beta, lmPath, dictPath, alph)
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverConfig := server.Config{
		Host:        host,
		Port:        port,
		CORSOrigin:  corsOrigin,
		MaxUploadMB: int64(maxUploadMB),
		TimeoutSec:  timeout,
		BeamSize:    beamSize,
		CutoffProb:  cutoffProb,
		CutoffTopN:  cutoffTopN,
		RateLimit: server.RateLimitConfig{
			Enabled:           rateLimitEnabled,
			RequestsPerMinute: requestsPerMinute,
			RequestsPerHour:   requestsPerHour,
			MaxRequestsPerDay: maxRequestsPerDay,
			MaxDataPerDay:     maxDataPerDay,
		},
	}

	srv, err := server.NewServer(serverConfig, alph, sc)
	if err != nil {
		return fmt.Errorf("serve: build server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(timeout) * time.Second,
		WriteTimeout:      time.Duration(timeout) * time.Second,
	}

	go func() {
		slog.Info("starting decode server", "host", host, "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	} else {
		slog.Info("http server shutdown completed")
	}

	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "127.0.0.1", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origin")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum request body size in MB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")

	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable per-client rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 5000, "maximum requests per day per client")
	serveCmd.Flags().Int64("max-data-per-day", 100*1024*1024, "maximum bytes decoded per day per client")
}
