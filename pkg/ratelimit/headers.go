package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Qualys rate limit response headers.
const (
	HeaderLimit              = "X-RateLimit-Limit"
	HeaderWindow             = "X-RateLimit-Window-Sec"
	HeaderRemaining          = "X-RateLimit-Remaining"
	HeaderToWait             = "X-RateLimit-ToWait-Sec"
	HeaderConcurrencyLimit   = "X-Concurrency-Limit-Limit"
	HeaderConcurrencyRunning = "X-Concurrency-Limit-Running"
)

// ParseHeaders builds a state from response headers. ok is false when the
// response carries no rate limit headers (e.g. v1 endpoints).
func ParseHeaders(h http.Header, now time.Time) (state *RateLimitState, ok bool, err error) {
	remainStr := h.Get(HeaderRemaining)
	if remainStr == "" {
		return nil, false, nil
	}

	state = &RateLimitState{LastUpdate: now, WaitUntil: now}

	if state.CallsRemaining, err = strconv.Atoi(remainStr); err != nil {
		return nil, false, fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}
	if state.CallsLimit, err = optionalInt(h, HeaderLimit); err != nil {
		return nil, false, err
	}
	toWait, err := optionalInt(h, HeaderToWait)
	if err != nil {
		return nil, false, err
	}
	state.WaitUntil = now.Add(time.Duration(toWait) * time.Second)

	if state.ConcurrencyLimit, err = optionalInt(h, HeaderConcurrencyLimit); err != nil {
		return nil, false, err
	}
	if state.ConcurrencyRunning, err = optionalInt(h, HeaderConcurrencyRunning); err != nil {
		return nil, false, err
	}

	state.UpdateHealth()
	return state, true, nil
}

// WindowTTL returns how long a state derived from h stays meaningful.
func WindowTTL(h http.Header) time.Duration {
	if sec, err := strconv.Atoi(h.Get(HeaderWindow)); err == nil && sec > 0 {
		return time.Duration(sec) * time.Second
	}
	return time.Hour
}

func optionalInt(h http.Header, name string) (int, error) {
	v := h.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s header: %w", name, err)
	}
	return n, nil
}
