// Package testutil provides testing utilities for the Qualys client.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock Qualys endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Request is a request received by the mock.
type Request struct {
	Path   string
	Form   url.Values
	Header http.Header
}

// MockQualys is a configurable mock Qualys API server for testing.
//
// Requests without X-Requested-With are rejected the way the platform
// does. When credentials are set, basic auth is enforced as well.
type MockQualys struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	username string
	password string

	// Tracking
	requests []Request
}

// NewMockQualys creates a new mock Qualys server.
func NewMockQualys() *MockQualys {
	mock := &MockQualys{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()

		mock.mu.Lock()
		mock.requests = append(mock.requests, Request{
			Path:   r.URL.Path,
			Form:   r.Form,
			Header: r.Header.Clone(),
		})
		handler, exists := mock.handlers[r.URL.Path]
		user, pass := mock.username, mock.password
		mock.mu.Unlock()

		if r.Header.Get("X-Requested-With") == "" {
			writeSimpleReturn(w, http.StatusBadRequest, "1990", "X-Requested-With header is required")
			return
		}
		if user != "" {
			if u, p, ok := r.BasicAuth(); !ok || u != user || p != pass {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte("Unauthorized"))
				return
			}
		}

		if exists {
			handler(w, r)
			return
		}

		// Default handler
		writeSimpleReturn(w, http.StatusNotFound, "1904", "unknown endpoint "+r.URL.Path)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockQualys) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockQualys) Close() {
	m.server.Close()
}

// Reset clears the recorded requests.
func (m *MockQualys) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetCredentials enables basic auth checks.
func (m *MockQualys) SetCredentials(username, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.username, m.password = username, password
}

// SetHandler sets a custom handler for a specific path.
func (m *MockQualys) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockQualys) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetSequence answers successive requests to path with resps in order.
// The last response repeats.
func (m *MockQualys) SetSequence(path string, resps ...MockResponse) {
	var (
		mu   sync.Mutex
		next int
	)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := resps[next]
		if next < len(resps)-1 {
			next++
		}
		mu.Unlock()
		writeResponse(w, resp)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockQualys) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Requests returns a copy of the recorded requests.
func (m *MockQualys) Requests() []Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Request(nil), m.requests...)
}

// LastRequest returns the most recent request, or the zero Request.
func (m *MockQualys) LastRequest() Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return Request{}
	}
	return m.requests[len(m.requests)-1]
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	// Add delay if specified
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func writeSimpleReturn(w http.ResponseWriter, status int, code, text string) {
	writeResponse(w, NewSimpleReturnResponse(status, code, text))
}

// rateLimitHeaders returns healthy Qualys rate limit headers.
func rateLimitHeaders(remaining int) map[string]string {
	return map[string]string{
		"X-RateLimit-Limit":           "300",
		"X-RateLimit-Window-Sec":      "3600",
		"X-RateLimit-Remaining":       fmt.Sprint(remaining),
		"X-RateLimit-ToWait-Sec":      "0",
		"X-Concurrency-Limit-Limit":   "2",
		"X-Concurrency-Limit-Running": "0",
		"Content-Type":                "text/xml;charset=UTF-8",
	}
}

// NewXMLResponse creates a 200 OK response with healthy rate limit headers.
func NewXMLResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    rateLimitHeaders(295),
	}
}

// NewSimpleReturnResponse creates a SIMPLE_RETURN error document.
func NewSimpleReturnResponse(status int, code, text string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       SimpleReturnXML(code, text),
		Headers:    map[string]string{"Content-Type": "text/xml;charset=UTF-8"},
	}
}

// NewExhaustedResponse creates a 409 response with an exhausted call budget.
func NewExhaustedResponse(waitSec int) MockResponse {
	headers := rateLimitHeaders(0)
	headers["X-RateLimit-ToWait-Sec"] = fmt.Sprint(waitSec)
	return MockResponse{
		StatusCode: http.StatusConflict,
		Body:       SimpleReturnXML("1965", "This API cannot be run again for another few seconds."),
		Headers:    headers,
	}
}

// NewConcurrencyLimitResponse creates a 409 concurrency limit response.
func NewConcurrencyLimitResponse() MockResponse {
	headers := rateLimitHeaders(250)
	headers["X-Concurrency-Limit-Running"] = "2"
	return MockResponse{
		StatusCode: http.StatusConflict,
		Body:       SimpleReturnXML("1960", "Concurrency limit of 2 reached."),
		Headers:    headers,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "Internal Server Error",
		Headers:    map[string]string{"Content-Type": "text/plain"},
	}
}

// SimpleReturnXML renders a SIMPLE_RETURN document.
func SimpleReturnXML(code, text string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" ?>
<!DOCTYPE SIMPLE_RETURN SYSTEM "https://qualysapi.qualys.com/api/2.0/simple_return.dtd">
<SIMPLE_RETURN>
  <RESPONSE>
    <DATETIME>2024-01-01T00:00:00Z</DATETIME>
    <CODE>%s</CODE>
    <TEXT>%s</TEXT>
  </RESPONSE>
</SIMPLE_RETURN>`, code, text)
}

// HostListXML renders a host list page. nextIDMin > 0 adds the truncation
// WARNING pointing at the next page.
func HostListXML(baseURL string, ids []int, nextIDMin int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" ?>
<HOST_LIST_OUTPUT>
  <RESPONSE>
    <DATETIME>2024-01-01T00:00:00Z</DATETIME>
    <HOST_LIST>
`)
	for _, id := range ids {
		fmt.Fprintf(&b, "      <HOST><ID>%d</ID><IP>10.0.%d.%d</IP><TRACKING_METHOD>IP</TRACKING_METHOD></HOST>\n",
			id, id/256%256, id%256)
	}
	b.WriteString("    </HOST_LIST>\n")
	if nextIDMin > 0 {
		fmt.Fprintf(&b, `    <WARNING>
      <CODE>1980</CODE>
      <TEXT>%d record limit exceeded. Use URL to get next batch of results.</TEXT>
      <URL><![CDATA[%s/api/2.0/fo/asset/host/?action=list&truncation_limit=%d&id_min=%d]]></URL>
    </WARNING>
`, len(ids), baseURL, len(ids), nextIDMin)
	}
	b.WriteString("  </RESPONSE>\n</HOST_LIST_OUTPUT>\n")
	return b.String()
}

// HostListPager serves the host list in pages, honouring id_min and
// truncation_limit from the request, over hosts with ids 1..total.
func HostListPager(baseURL func() string, total int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idMin := atoiDefault(r.Form.Get("id_min"), 1)
		limit := atoiDefault(r.Form.Get("truncation_limit"), 1000)

		var ids []int
		for id := idMin; id <= total && len(ids) < limit; id++ {
			ids = append(ids, id)
		}
		next := 0
		if len(ids) > 0 && ids[len(ids)-1] < total {
			next = ids[len(ids)-1] + 1
		}
		writeResponse(w, NewXMLResponse(HostListXML(baseURL(), ids, next)))
	}
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
