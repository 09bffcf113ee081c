// Package ratelimit implements Qualys API rate and concurrency limit tracking
// and request gating. It monitors the X-RateLimit-* and X-Concurrency-Limit-*
// response headers so that clients sharing one API account back off before
// the server starts answering 409.
package ratelimit

import (
	"fmt"
	"time"
)

// Redis key layout for rate limit state. State is per API account because
// Qualys meters calls per user, not per client instance.
const (
	redisKeyPrefix = "qualys:rate_limit"

	fieldCallsRemaining    = "calls_remaining"
	fieldCallsLimit        = "calls_limit"
	fieldWaitUntil         = "wait_until"
	fieldConcurrencyLimit  = "concurrency_limit"
	fieldConcurrencyActive = "concurrency_running"
	fieldLastUpdate        = "last_update"
)

// RedisKey returns the Redis key holding one state field for username.
func RedisKey(username, field string) string {
	if username == "" {
		username = "default"
	}
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, username, field)
}

// Thresholds for rate limit decisions.
const (
	// CallsThresholdCritical blocks requests when calls remaining falls below
	// this value and the server asked us to wait.
	CallsThresholdCritical = 1

	// CallsThresholdWarning applies throttling when calls remaining falls below this value.
	CallsThresholdWarning = 10

	// CallsThresholdHealthy indicates normal operation.
	CallsThresholdHealthy = 50
)

// RateLimitState represents the current Qualys rate limit state of an account.
// This state is shared across all client instances via Redis.
type RateLimitState struct {
	// CallsRemaining is the number of calls left in the current window.
	// Extracted from the X-RateLimit-Remaining header.
	CallsRemaining int `json:"calls_remaining"`

	// CallsLimit is the size of the window. From X-RateLimit-Limit.
	CallsLimit int `json:"calls_limit"`

	// WaitUntil is when calls are allowed again.
	// Calculated from the X-RateLimit-ToWait-Sec header.
	WaitUntil time.Time `json:"wait_until"`

	// ConcurrencyLimit is the number of parallel calls allowed.
	// From X-Concurrency-Limit-Limit.
	ConcurrencyLimit int `json:"concurrency_limit"`

	// ConcurrencyRunning is the number of calls in flight when the response was sent.
	// From X-Concurrency-Limit-Running.
	ConcurrencyRunning int `json:"concurrency_running"`

	// LastUpdate is the timestamp when this state was last updated.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy indicates whether the account is far from its limits.
	// True when CallsRemaining >= CallsThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked until WaitUntil.
func (s *RateLimitState) NeedsCriticalBlock() bool {
	return s.CallsRemaining < CallsThresholdCritical && s.TimeUntilReset() > 0
}

// NeedsThrottling returns true if requests should be throttled due to the warning threshold
// or a saturated concurrency limit.
func (s *RateLimitState) NeedsThrottling() bool {
	if s.NeedsCriticalBlock() {
		return false
	}
	if s.ConcurrencyLimit > 0 && s.ConcurrencyRunning >= s.ConcurrencyLimit {
		return true
	}
	return s.CallsRemaining < CallsThresholdWarning
}

// TimeUntilReset returns the duration until calls are allowed again.
// Returns 0 if the wait time has already passed.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	duration := time.Until(s.WaitUntil)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on current CallsRemaining.
func (s *RateLimitState) UpdateHealth() {
	s.IsHealthy = s.CallsRemaining >= CallsThresholdHealthy
}
