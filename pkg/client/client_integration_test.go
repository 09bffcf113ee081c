//go:build integration

package client

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/Sternrassler/qualys-api-client/internal/testutil"
	"github.com/Sternrassler/qualys-api-client/pkg/cache"
	"github.com/Sternrassler/qualys-api-client/pkg/importbuf"
	"github.com/Sternrassler/qualys-api-client/pkg/objects"
	"github.com/Sternrassler/qualys-api-client/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func newIntegrationClient(t *testing.T, rdb *redis.Client, mock *testutil.MockQualys) *Client {
	t.Helper()
	cfg := DefaultConfig(mock.URL(), testUser, testPass)
	cfg.Redis = rdb
	cfg.Retry = fastPolicy
	cfg.CacheTTL = 2 * time.Second

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestIntegration_FullRequestFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	rdb, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockQualys()
	defer mock.Close()
	mock.SetResponse(EndpointHostList, testutil.NewXMLResponse(testutil.HostListXML(mock.URL(), []int{1, 2, 3}, 0)))

	c := newIntegrationClient(t, rdb, mock)
	api := NewAPI(c)
	ctx := context.Background()

	// Step 1: First request goes to the server and is cached
	results, err := api.HostListQuery(ctx, nil)
	if err != nil {
		t.Fatalf("HostListQuery() error = %v", err)
	}
	if n := len(Only[*objects.Host](results)); n != 3 {
		t.Errorf("expected 3 hosts, got %d", n)
	}

	// Step 2: Second request is served from the cache
	results, err = api.HostListQuery(ctx, nil)
	if err != nil {
		t.Fatalf("cached HostListQuery() error = %v", err)
	}
	if n := len(Only[*objects.Host](results)); n != 3 {
		t.Errorf("expected 3 cached hosts, got %d", n)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("expected 1 server request, got %d", mock.GetRequestCount())
	}

	// Step 3: Rate limit state was recorded from the headers
	state, err := c.RateLimiter().GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.CallsRemaining != 295 {
		t.Errorf("CallsRemaining = %d, want 295", state.CallsRemaining)
	}
}

func TestIntegration_RateLimitIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	rdb, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockQualys()
	defer mock.Close()
	mock.SetSequence(EndpointHostList,
		testutil.NewExhaustedResponse(60),
		testutil.NewXMLResponse(`<HOST_LIST_OUTPUT/>`),
	)

	c := newIntegrationClient(t, rdb, mock)

	// The 409 stores an exhausted budget; retries are then blocked locally
	_, err := c.Request(context.Background(), EndpointHostList, url.Values{"action": {"list"}})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("expected 1 server request, got %d", mock.GetRequestCount())
	}

	if err := c.RateLimiter().Reset(context.Background()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if _, err := c.Request(context.Background(), EndpointHostList, url.Values{"action": {"list"}}); err != nil {
		t.Errorf("request after reset failed: %v", err)
	}
}

func TestIntegration_PaginatedImport(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	rdb, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockQualys()
	defer mock.Close()
	mock.SetHandler(EndpointHostList, testutil.HostListPager(mock.URL, 50))

	c := newIntegrationClient(t, rdb, mock)

	var hosts int
	consumer := importbuf.ConsumerFunc(func(_ context.Context, obj objects.Object) error {
		if _, ok := obj.(*objects.Host); ok {
			hosts++
		}
		return nil
	})

	res, err := NewAPI(c).IterateHostList(context.Background(), nil,
		pagination.Config{PageSize: 20}, WithConsumer(consumer, 0))
	if err != nil {
		t.Fatalf("IterateHostList() error = %v", err)
	}
	if res.Pages != 3 || hosts != 50 {
		t.Errorf("got %d pages and %d hosts, want 3 and 50", res.Pages, hosts)
	}
}

func TestIntegration_CacheExpiration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	rdb, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockQualys()
	defer mock.Close()
	mock.SetResponse(EndpointKnowledgeBase, testutil.NewXMLResponse(`<KNOWLEDGE_BASE_VULN_LIST_OUTPUT/>`))

	c := newIntegrationClient(t, rdb, mock)
	ctx := context.Background()
	params := url.Values{"action": {"list"}}

	if _, err := c.Request(ctx, EndpointKnowledgeBase, params); err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	key := cache.CacheKey{Endpoint: EndpointKnowledgeBase, Params: params, Username: testUser}
	if _, err := c.Cache().Get(ctx, key); err != nil {
		t.Fatalf("expected cache entry, got %v", err)
	}

	time.Sleep(3 * time.Second)

	if _, err := c.Cache().Get(ctx, key); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss after TTL, got %v", err)
	}
	if _, err := c.Request(ctx, EndpointKnowledgeBase, params); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("expected 2 server requests, got %d", mock.GetRequestCount())
	}
}
