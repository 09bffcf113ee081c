package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	qualysCallsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qualys_rate_limit_calls_remaining",
		Help: "Number of API calls remaining in the current Qualys rate limit window",
	})

	qualysRateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qualys_rate_limit_blocks_total",
		Help: "Total number of requests blocked because the rate limit was exhausted",
	})

	qualysRateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qualys_rate_limit_throttles_total",
		Help: "Total number of requests throttled near the rate or concurrency limit",
	})
)

// DefaultThrottleDelay is the pause applied to requests in the warning state.
const DefaultThrottleDelay = time.Second

// Tracker monitors Qualys rate limits for one API account and gates requests.
type Tracker struct {
	redis    *redis.Client
	username string
	logger   zerolog.Logger

	// ThrottleDelay is the pause applied in the warning state.
	ThrottleDelay time.Duration
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, username string, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:         redisClient,
		username:      username,
		logger:        logger,
		ThrottleDelay: DefaultThrottleDelay,
	}
}

func (t *Tracker) key(field string) string {
	return RedisKey(t.username, field)
}

// GetState retrieves the current rate limit state from Redis.
// Returns a default healthy state if no data exists in Redis.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	fields := []string{
		fieldCallsRemaining, fieldCallsLimit, fieldWaitUntil,
		fieldConcurrencyLimit, fieldConcurrencyActive, fieldLastUpdate,
	}
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = t.key(f)
	}

	vals, err := t.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	// If no state exists in Redis, return default healthy state
	if vals[0] == nil {
		t.logger.Debug().Msg("No rate limit state in Redis, returning default healthy state")
		now := time.Now()
		return &RateLimitState{
			CallsRemaining: CallsThresholdHealthy * 2, // Assume healthy until we get real data
			WaitUntil:      now,
			LastUpdate:     now,
			IsHealthy:      true,
		}, nil
	}

	ints := make([]int64, len(vals))
	for i, v := range vals {
		s, _ := v.(string)
		if s == "" {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", fields[i], err)
		}
		ints[i] = n
	}

	state := &RateLimitState{
		CallsRemaining:     int(ints[0]),
		CallsLimit:         int(ints[1]),
		WaitUntil:          time.Unix(ints[2], 0),
		ConcurrencyLimit:   int(ints[3]),
		ConcurrencyRunning: int(ints[4]),
		LastUpdate:         time.Unix(ints[5], 0),
	}
	state.UpdateHealth()

	return state, nil
}

// UpdateFromHeaders parses Qualys rate limit headers and updates Redis state.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	state, ok, err := ParseHeaders(headers, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		// Header not present - v1 endpoints and some errors omit it
		return nil
	}

	ttl := WindowTTL(headers)
	if wait := state.TimeUntilReset(); wait > ttl {
		ttl = wait
	}

	// Store in Redis atomically
	pipe := t.redis.TxPipeline()
	pipe.Set(ctx, t.key(fieldCallsRemaining), state.CallsRemaining, ttl)
	pipe.Set(ctx, t.key(fieldCallsLimit), state.CallsLimit, ttl)
	pipe.Set(ctx, t.key(fieldWaitUntil), state.WaitUntil.Unix(), ttl)
	pipe.Set(ctx, t.key(fieldConcurrencyLimit), state.ConcurrencyLimit, ttl)
	pipe.Set(ctx, t.key(fieldConcurrencyActive), state.ConcurrencyRunning, ttl)
	pipe.Set(ctx, t.key(fieldLastUpdate), state.LastUpdate.Unix(), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	qualysCallsRemaining.Set(float64(state.CallsRemaining))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("calls_remaining", state.CallsRemaining).
			Time("wait_until", state.WaitUntil).
			Msg("Qualys rate limit exhausted - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("calls_remaining", state.CallsRemaining).
			Int("concurrency_running", state.ConcurrencyRunning).
			Int("concurrency_limit", state.ConcurrencyLimit).
			Msg("Qualys rate limit warning - requests will be throttled")
	default:
		t.logger.Debug().
			Int("calls_remaining", state.CallsRemaining).
			Bool("is_healthy", state.IsHealthy).
			Msg("Qualys rate limit state updated")
	}

	return nil
}

// ShouldAllowRequest checks if a request should be allowed based on current rate limit state.
// Returns false and the time to wait if the request should be blocked.
// Returns true but may pause first if in warning state.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, time.Duration, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		wait := state.TimeUntilReset()
		t.logger.Error().
			Int("calls_remaining", state.CallsRemaining).
			Dur("wait_duration", wait).
			Msg("Qualys rate limit exhausted - blocking request")

		qualysRateLimitBlocksTotal.Inc()
		return false, wait, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("calls_remaining", state.CallsRemaining).
			Msg("Qualys rate limit warning - throttling request")

		qualysRateLimitThrottlesTotal.Inc()
		select {
		case <-ctx.Done():
			return false, 0, ctx.Err()
		case <-time.After(t.ThrottleDelay):
		}
	}

	return true, 0, nil
}

// Reset removes the stored state for the account.
func (t *Tracker) Reset(ctx context.Context) error {
	err := t.redis.Del(ctx,
		t.key(fieldCallsRemaining), t.key(fieldCallsLimit), t.key(fieldWaitUntil),
		t.key(fieldConcurrencyLimit), t.key(fieldConcurrencyActive), t.key(fieldLastUpdate),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("reset rate limit state: %w", err)
	}
	return nil
}
