package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctcdecode_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ctcdecode_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	decodeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctcdecode_decode_requests_total",
			Help: "Total number of decode requests",
		},
		[]string{"type", "status"}, // type: http, batch, websocket
	)

	decodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ctcdecode_decode_duration_seconds",
			Help:    "Decode request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"type"},
	)

	hypothesisLogProb = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ctcdecode_hypothesis_log_prob",
			Help:    "Log-probability of the top decoded hypothesis",
			Buckets: []float64{-1000, -500, -100, -50, -20, -10, -5, -1, 0},
		},
	)

	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctcdecode_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, requests, data
	)

	requestPayloadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ctcdecode_request_payload_bytes",
			Help:    "Size of decode request bodies in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024},
		},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ctcdecode_websocket_active_connections",
			Help: "Number of active WebSocket streaming connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctcdecode_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)

	websocketFramesDecoded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ctcdecode_websocket_frames_decoded_total",
			Help: "Total number of per-timestep probability frames consumed over WebSocket streams",
		},
	)
)
