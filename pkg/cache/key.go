package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// cacheableActions are the read-only values of the action parameter.
var cacheableActions = map[string]bool{
	"list":   true,
	"search": true,
	"fetch":  true,
}

// CacheKey represents a unique identifier for a cached Qualys response.
type CacheKey struct {
	// Endpoint is the API path (e.g., "/api/2.0/fo/asset/host/" or "asset_group_list.php")
	Endpoint string

	// Params are the request parameters (e.g., {"action": "list", "ids": "1-100"})
	Params url.Values

	// Username scopes the entry to the API account; results depend on user permissions
	Username string
}

// String generates a deterministic cache key string.
// Format: qualys:endpoint:param1=val1:param2=val2,val3:user=name
// Names and values are query-escaped, so separators inside a value cannot
// collide with the separators between values and params.
//
// Example:
//
//	qualys:api/2.0/fo/asset/group:action=list:ids=1,2:user=acme_ab12
func (k CacheKey) String() string {
	parts := []string{"qualys"}

	// Add endpoint (normalize path)
	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Add params (sorted for determinism)
	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			vals := make([]string, len(k.Params[key]))
			for i, v := range k.Params[key] {
				vals[i] = url.QueryEscape(v)
			}
			parts = append(parts, fmt.Sprintf("%s=%s", url.QueryEscape(key), strings.Join(vals, ",")))
		}
	}

	if k.Username != "" {
		parts = append(parts, "user="+url.QueryEscape(k.Username))
	}

	return strings.Join(parts, ":")
}

// Cacheable reports whether a request with these parameters only reads
// data. Requests without an action (most v1 endpoints) are treated as reads.
func Cacheable(params url.Values) bool {
	action := strings.ToLower(params.Get("action"))
	if action == "" {
		return true
	}
	return cacheableActions[action]
}
