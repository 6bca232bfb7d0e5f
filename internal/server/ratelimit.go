package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter tracks per-client request rates and daily data quotas, keyed
// by client IP.
type RateLimiter struct {
	mu sync.RWMutex

	requestsPerMinute int
	requestsPerHour   int
	maxRequestsPerDay int
	maxDataPerDay     int64

	usage map[string]*clientUsage
}

// clientUsage tracks usage counters for one client.
type clientUsage struct {
	requestsLastMinute int
	requestsLastHour   int
	requestsToday      int
	dataToday          int64
	lastRequestTime    time.Time
	dayStartTime       time.Time
}

// NewRateLimiter builds a RateLimiter. A zero limit disables that particular
// check.
func NewRateLimiter(requestsPerMinute, requestsPerHour, maxRequestsPerDay int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		maxRequestsPerDay: maxRequestsPerDay,
		maxDataPerDay:     maxDataPerDay,
		usage:             make(map[string]*clientUsage),
	}
}

// CheckRateLimit reports whether a request of dataSize bytes from clientID is
// allowed, and records it if so.
func (rl *RateLimiter) CheckRateLimit(clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	u := rl.getOrCreate(clientID, now)
	rl.resetIfNeeded(u, now)

	if err := rl.checkRates(u, now); err != nil {
		return err
	}
	if err := rl.checkQuotas(u, dataSize, now); err != nil {
		return err
	}

	u.requestsLastMinute++
	u.requestsLastHour++
	u.requestsToday++
	u.dataToday += dataSize
	u.lastRequestTime = now
	return nil
}

func (rl *RateLimiter) resetIfNeeded(u *clientUsage, now time.Time) {
	if now.Day() != u.dayStartTime.Day() || now.Month() != u.dayStartTime.Month() {
		u.requestsToday = 0
		u.dataToday = 0
		u.dayStartTime = now
	}
	if now.Sub(u.lastRequestTime) >= time.Minute {
		u.requestsLastMinute = 0
	}
	if now.Sub(u.lastRequestTime) >= time.Hour {
		u.requestsLastHour = 0
	}
}

func (rl *RateLimiter) checkRates(u *clientUsage, now time.Time) error {
	if rl.requestsPerMinute > 0 && u.requestsLastMinute >= rl.requestsPerMinute {
		return &RateLimitError{Type: "minute", Limit: rl.requestsPerMinute, RetryAfter: time.Minute - now.Sub(u.lastRequestTime)}
	}
	if rl.requestsPerHour > 0 && u.requestsLastHour >= rl.requestsPerHour {
		return &RateLimitError{Type: "hour", Limit: rl.requestsPerHour, RetryAfter: time.Hour - now.Sub(u.lastRequestTime)}
	}
	return nil
}

func (rl *RateLimiter) checkQuotas(u *clientUsage, dataSize int64, now time.Time) error {
	resets := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	if rl.maxRequestsPerDay > 0 && u.requestsToday >= rl.maxRequestsPerDay {
		return &QuotaExceededError{Type: "requests", Limit: int64(rl.maxRequestsPerDay), Used: int64(u.requestsToday), Resets: resets}
	}
	if rl.maxDataPerDay > 0 && u.dataToday+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{Type: "data", Limit: rl.maxDataPerDay, Used: u.dataToday, Resets: resets}
	}
	return nil
}

func (rl *RateLimiter) getOrCreate(clientID string, now time.Time) *clientUsage {
	u, ok := rl.usage[clientID]
	if !ok {
		u = &clientUsage{lastRequestTime: now, dayStartTime: now}
		rl.usage[clientID] = u
	}
	return u
}

// Usage returns a snapshot of a client's current counters.
func (rl *RateLimiter) Usage(clientID string) (requestsToday int, dataToday int64) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if u, ok := rl.usage[clientID]; ok {
		return u.requestsToday, u.dataToday
	}
	return 0, 0
}

// RateLimitError reports a per-minute or per-hour request rate violation.
type RateLimitError struct {
	Type       string
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError reports a daily request-count or data-volume violation.
type QuotaExceededError struct {
	Type   string
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)", e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
