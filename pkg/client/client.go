// Package client provides the Qualys XML API client: an HTTP transport with
// rate limit tracking, response caching and retry, plus the response parsing
// and result classification used by the endpoint wrappers.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/qualys-api-client/pkg/cache"
	"github.com/Sternrassler/qualys-api-client/pkg/logging"
	"github.com/Sternrassler/qualys-api-client/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for Qualys client operations.
var (
	qualysRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qualys_requests_total",
		Help: "Total Qualys requests by endpoint and status",
	}, []string{"endpoint", "status"})

	qualysRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qualys_request_duration_seconds",
		Help:    "Time to response headers by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"endpoint"})

	qualysErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qualys_errors_total",
		Help: "Total Qualys errors by class",
	}, []string{"class"})
)

// DefaultRequestedWith is sent as X-Requested-With, which Qualys requires on
// every API call.
const DefaultRequestedWith = "qualys-api-client (go)"

// Transport issues requests against the Qualys API.
type Transport interface {
	// Request returns the full response body.
	Request(ctx context.Context, endpoint string, params url.Values) ([]byte, error)

	// StreamRequest returns the response body for incremental reading. The
	// caller must close it.
	StreamRequest(ctx context.Context, endpoint string, params url.Values) (io.ReadCloser, error)
}

// Client is the Qualys HTTP client. It implements Transport.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the platform API server, e.g. "https://qualysapi.qualys.com"
	BaseURL string

	// Credentials for HTTP basic auth
	Username string
	Password string

	// Redis enables the response cache and shared rate limit state (optional)
	Redis *redis.Client

	// Caching
	CacheTTL          time.Duration // Lifetime of cached list/fetch responses
	MaxCacheEntrySize int           // Larger bodies are streamed but not cached

	// Timeout bounds the wait for response headers. Bodies may stream longer.
	Timeout time.Duration

	// RequestedWith is the X-Requested-With header value
	RequestedWith string

	// Retry selects backoff per error class (nil = RetryConfigForErrorClass)
	Retry RetryPolicy
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, username, password string) Config {
	return Config{
		BaseURL:           baseURL,
		Username:          username,
		Password:          password,
		CacheTTL:          cache.DefaultTTL,
		MaxCacheEntrySize: cache.DefaultMaxEntrySize,
		Timeout:           5 * time.Minute,
		RequestedWith:     DefaultRequestedWith,
		Retry:             RetryConfigForErrorClass,
	}
}

// New creates a new Qualys client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	if cfg.RequestedWith == "" {
		cfg.RequestedWith = DefaultRequestedWith
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}

	logger := logging.NewLogger("qualys-client")

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout

	c := &Client{
		httpClient: &http.Client{Transport: transport},
		baseURL:    base,
		config:     cfg,
		logger:     logger,
	}

	if cfg.Redis != nil {
		c.rateLimiter = ratelimit.NewTracker(cfg.Redis, cfg.Username, logger)
		c.cache = cache.NewManager(cfg.Redis, cfg.CacheTTL)
	}

	return c, nil
}

// Request performs a request and reads the whole body.
func (c *Client) Request(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	body, err := c.StreamRequest(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return data, nil
}

// StreamRequest performs a request with rate limiting, caching and retry.
//
// Client errors carrying an XML document are returned as a body, not an
// error, so the SIMPLE_RETURN inside can be classified by the caller.
func (c *Client) StreamRequest(ctx context.Context, endpoint string, params url.Values) (io.ReadCloser, error) {
	logger := c.logger.With().
		Str("request_id", uuid.NewString()).
		Str("endpoint", endpoint).
		Str("action", params.Get("action")).
		Logger()

	// Step 1: Check Cache
	cacheable := c.cache != nil && cache.Cacheable(params)
	cacheKey := cache.CacheKey{Endpoint: endpoint, Params: params, Username: c.config.Username}
	if cacheable {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			logger.Debug().Dur("ttl", entry.TTL()).Msg("Serving cached response")
			qualysRequestsTotal.WithLabelValues(endpoint, "cached").Inc()
			return entry.Body(), nil
		case !errors.Is(err, cache.ErrCacheMiss):
			logger.Warn().Err(err).Msg("Cache get error")
		}
	}

	// Step 2: Execute HTTP Request with Retry Logic
	var resp *http.Response
	retryErr := retryWithBackoff(ctx, c.config.Retry, func() (ErrorClass, error) {
		r, class, err := c.attempt(ctx, endpoint, params, logger)
		if err != nil {
			qualysErrorsTotal.WithLabelValues(string(class)).Inc()
			return class, err
		}
		resp = r
		return "", nil
	})
	if retryErr != nil {
		logger.Error().Err(retryErr).Msg("Qualys request failed")
		return nil, retryErr
	}

	qualysRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	logger.Debug().Int("status_code", resp.StatusCode).Msg("Qualys response received")

	// Step 3: Cache the body once it has been read completely
	if cacheable && resp.StatusCode == http.StatusOK {
		status := resp.StatusCode
		return cache.NewRecorder(resp.Body, c.config.MaxCacheEntrySize, func(data []byte) {
			entry := cache.NewEntry(data, status, c.cache.TTL())
			if err := c.cache.Set(context.WithoutCancel(ctx), cacheKey, entry); err != nil {
				logger.Warn().Err(err).Msg("Failed to cache response")
				return
			}
			logger.Debug().Int("bytes", len(data)).Msg("Cached response")
		}), nil
	}

	return resp.Body, nil
}

// attempt issues one HTTP request. A non-nil error comes with its class.
func (c *Client) attempt(ctx context.Context, endpoint string, params url.Values, logger zerolog.Logger) (*http.Response, ErrorClass, error) {
	// Step 1: Check Rate Limit
	if c.rateLimiter != nil {
		allowed, wait, err := c.rateLimiter.ShouldAllowRequest(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			logger.Error().Err(err).Msg("Rate limit check failed")
			return nil, "", fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			qualysRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
			return nil, ErrorClassRateLimit, &QualysError{
				ErrorClass: ErrorClassRateLimit,
				Message:    fmt.Sprintf("blocked locally, window resets in %s", wait.Round(time.Second)),
				Err:        ErrRateLimited,
			}
		}
	}

	// Step 2: Build the request; the body must be fresh per attempt
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(endpoint), strings.NewReader(params.Encode()))
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.config.Username, c.config.Password)
	req.Header.Set("X-Requested-With", c.config.RequestedWith)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	qualysRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	// Handle network errors
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		logger.Warn().Err(err).Msg("HTTP request failed")
		qualysRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, ErrorClassNetwork, &QualysError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}

	// Update Rate Limit from headers
	if c.rateLimiter != nil {
		if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
			logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}
	}

	if resp.StatusCode < 400 {
		return resp, "", nil
	}

	// Handle HTTP errors
	class := classifyStatus(resp.StatusCode)
	logger.Warn().
		Int("status_code", resp.StatusCode).
		Str("error_class", string(class)).
		Msg("Qualys request error")

	if class == ErrorClassClient && isXML(resp.Header) {
		return resp, "", nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	resp.Body.Close()
	qualysRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	qErr := &QualysError{
		StatusCode: resp.StatusCode,
		ErrorClass: class,
		Message:    resp.Status,
	}
	if class == ErrorClassRateLimit {
		qErr.Err = ErrRateLimited
	} else if s := strings.TrimSpace(string(snippet)); s != "" {
		qErr.Err = errors.New(s)
	}
	return nil, class, qErr
}

// endpointURL resolves an endpoint against the base URL. v2 endpoints are
// absolute paths; v1 script names live under /msp/.
func (c *Client) endpointURL(endpoint string) string {
	path := endpoint
	if !strings.HasPrefix(path, "/") {
		path = "/msp/" + path
	}
	return c.baseURL.String() + path
}

// classifyStatus categorizes an HTTP status for retry and observability.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusConflict, status == http.StatusTooManyRequests:
		// 409 is Qualys' concurrency limit, 429 the call budget
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

func isXML(h http.Header) bool {
	return strings.Contains(strings.ToLower(h.Get("Content-Type")), "xml")
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Cache returns the cache manager, or nil without Redis.
func (c *Client) Cache() *cache.Manager {
	return c.cache
}

// RateLimiter returns the rate limit tracker, or nil without Redis.
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.rateLimiter
}
