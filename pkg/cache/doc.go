// Package cache provides a Redis-backed response cache for read-only Qualys
// API calls.
//
// Qualys does not send caching headers, so every entry lives for a fixed TTL
// chosen by the caller. Only read actions (list, search, fetch) are cached;
// launch, add, edit and delete actions always go to the server.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient, 10*time.Minute)
//
//	key := cache.CacheKey{
//		Endpoint: "/api/2.0/fo/asset/group/",
//		Params:   url.Values{"action": {"list"}},
//		Username: "acme_ab12",
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from Qualys
//	}
//
// # Streaming Responses
//
// Large responses are parsed while they download. NewRecorder wraps the
// response body and hands the complete payload to a callback once the
// stream has been read to EOF, so the parser never waits for the cache:
//
//	body = cache.NewRecorder(resp.Body, maxBytes, func(data []byte) {
//		_ = manager.Set(ctx, key, cache.NewEntry(data, resp.StatusCode, manager.TTL()))
//	})
//
// Bodies larger than maxBytes are passed through but not cached.
//
// # Metrics
//
//   - qualys_cache_hits_total{layer="redis"} - Cache hits
//   - qualys_cache_misses_total - Cache misses
//   - qualys_cache_size_bytes{layer="redis"} - Bytes written to the cache
//   - qualys_cache_skipped_total{reason} - Responses not cached
//   - qualys_cache_errors_total{operation} - Cache operation errors
package cache
