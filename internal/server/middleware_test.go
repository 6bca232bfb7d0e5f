package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORSMiddlewareSetsHeadersAndCallsNext(t *testing.T) {
	tests := []struct {
		name           string
		corsOrigin     string
		method         string
		expectedStatus int
		shouldCallNext bool
	}{
		{name: "GET request", corsOrigin: "*", method: http.MethodGet, expectedStatus: http.StatusOK, shouldCallNext: true},
		{name: "OPTIONS preflight", corsOrigin: "*", method: http.MethodOptions, expectedStatus: http.StatusOK, shouldCallNext: false},
		{name: "specific origin", corsOrigin: "https://example.com", method: http.MethodPost, expectedStatus: http.StatusOK, shouldCallNext: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{corsOrigin: tt.corsOrigin}

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			handler := s.corsMiddleware(next)
			req := httptest.NewRequest(tt.method, "/test", nil)
			w := httptest.NewRecorder()

			handler(w, req)

			assert.Equal(t, tt.corsOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.shouldCallNext, called)
		})
	}
}

func TestRateLimitMiddlewareSkipsWhenDisabled(t *testing.T) {
	s := &Server{}
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	handler := s.rateLimitMiddleware(next)
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	handler(w, req)
	assert.True(t, called)
}

func TestRateLimitMiddlewareBlocksOverLimit(t *testing.T) {
	s := &Server{rateLimiter: NewRateLimiter(1, 0, 0, 0)}
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ })
	handler := s.rateLimitMiddleware(next)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	w1 := httptest.NewRecorder()
	handler(w1, req)
	assert.Equal(t, http.StatusOK, w1.Code)
	assert.Equal(t, 1, calls)

	w2 := httptest.NewRecorder()
	handler(w2, req)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
	assert.Equal(t, 1, calls)
}

func TestGetClientIPPrefersForwardedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.2")

	assert.Equal(t, "203.0.113.5", getClientIP(req))
}

func TestGetClientIPFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "198.51.100.7:5555"

	assert.Equal(t, "198.51.100.7", getClientIP(req))
}
