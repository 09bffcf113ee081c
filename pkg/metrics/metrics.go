// Package metrics provides the Prometheus registry and HTTP exposition for
// the Qualys client. All metrics are defined in their respective packages
// (client, cache, ratelimit, importbuf, pagination) to maintain modularity
// and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the default Prometheus registry used by the Qualys client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - qualys_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status ("cached", "rate_limited", "network_error" for non-HTTP outcomes)
//   - qualys_request_duration_seconds{endpoint} (Histogram): Time to response headers
//   - qualys_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - qualys_retries_total{error_class} (Counter): Retry attempts by error class
//   - qualys_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - qualys_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - qualys_rate_limit_calls_remaining (Gauge): Calls left in the current window
//   - qualys_rate_limit_blocks_total (Counter): Requests blocked on an exhausted budget
//   - qualys_rate_limit_throttles_total (Counter): Requests delayed near the limits
//
// Cache Metrics (pkg/cache):
//   - qualys_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - qualys_cache_misses_total (Counter): Cache misses
//   - qualys_cache_size_bytes{layer="redis"} (Gauge): Size of the last stored entry
//   - qualys_cache_skipped_total{reason} (Counter): Responses not cached (too_large, incomplete)
//   - qualys_cache_errors_total{operation} (Counter): Cache operation errors
//
// Import Metrics (pkg/importbuf):
//   - qualys_import_objects_total{kind} (Counter): Objects added to import buffers
//   - qualys_import_consumer_errors_total (Counter): Consumer failures
//   - qualys_import_outstanding (Gauge): Objects handed to consumers and not yet done
//
// Pagination Metrics (pkg/pagination):
//   - qualys_pagination_pages_total (Counter): Pages requested
//   - qualys_pagination_stops_total{reason} (Counter): Runs ended by reason
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(qualys_cache_hits_total[5m])) /
//   (sum(rate(qualys_cache_hits_total[5m])) + sum(rate(qualys_cache_misses_total[5m])))
//
//   # Call Budget Running Low
//   qualys_rate_limit_calls_remaining < 10
//
//   # Malformed cursors
//   increase(qualys_pagination_stops_total{reason="malformed_cursor"}[1h]) > 0
//
//   # P95 Time To Headers
//   histogram_quantile(0.95, rate(qualys_request_duration_seconds_bucket[5m]))
