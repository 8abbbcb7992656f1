package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedApp(store CounterStore) *fiber.App {
	app := fiber.New()
	app.Use(RateLimit(store))
	ok := func(c *fiber.Ctx) error { return c.SendString("ok") }
	app.Get("/posts", ok)
	app.Get("/health", ok)
	app.Get("/api/health", ok)
	app.Get("/metrics", ok)
	return app
}

func newRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisCounterStore) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisCounterStore(rdb)
}

func hit(t *testing.T, app *fiber.App, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestRateLimit_AnonymousCeiling(t *testing.T) {
	app := newLimitedApp(NewMemoryCounterStore())

	for i := 0; i < AnonymousLimit; i++ {
		resp := hit(t, app, "")
		require.Equal(t, fiber.StatusOK, resp.StatusCode, "request %d", i+1)
		_ = resp.Body.Close()
	}

	resp := hit(t, app, "")
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, false, body["isAuthenticated"])
	assert.Equal(t, float64(1), body["cooldownMinutes"])
	// Anonymous callers get nudged toward logging in.
	assert.NotEmpty(t, body["hint"])
}

func TestRateLimit_AuthenticatedCeilingIsHigher(t *testing.T) {
	app := newLimitedApp(NewMemoryCounterStore())

	// Well past the anonymous ceiling but under the authenticated one.
	for i := 0; i < AnonymousLimit+10; i++ {
		resp := hit(t, app, "some-long-bearer-token")
		require.Equal(t, fiber.StatusOK, resp.StatusCode, "request %d", i+1)
		_ = resp.Body.Close()
	}
}

func TestRateLimit_AuthenticatedOverCeiling(t *testing.T) {
	app := newLimitedApp(NewMemoryCounterStore())

	for i := 0; i < AuthenticatedLimit; i++ {
		resp := hit(t, app, "another-bearer-token")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	}

	resp := hit(t, app, "another-bearer-token")
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["isAuthenticated"])
	_, hasHint := body["hint"]
	assert.False(t, hasHint)
}

func TestRateLimit_TokensAreIndependent(t *testing.T) {
	app := newLimitedApp(NewMemoryCounterStore())

	for i := 0; i < AuthenticatedLimit; i++ {
		resp := hit(t, app, "token-one-aaaaaaa")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	}

	resp := hit(t, app, "token-two-bbbbbbb")
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRateLimit_HealthAndMetricsExempt(t *testing.T) {
	app := newLimitedApp(NewMemoryCounterStore())

	for _, path := range []string{"/health", "/api/health", "/metrics"} {
		for i := 0; i < AnonymousLimit+5; i++ {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
			_ = resp.Body.Close()
		}
	}
}

func TestRateLimit_NilStoreFailsOpen(t *testing.T) {
	app := newLimitedApp(nil)

	for i := 0; i < AnonymousLimit+5; i++ {
		resp := hit(t, app, "")
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	}
}

func TestRedisCounterStore_CountsWithinWindow(t *testing.T) {
	_, store := newRedisStore(t)
	ctx := context.Background()

	cnt, reset, err := store.Incr(ctx, "rl:anon:10.0.0.1", RateLimitWindow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cnt)
	assert.Greater(t, reset, time.Duration(0))
	assert.LessOrEqual(t, reset, RateLimitWindow)

	cnt, _, err = store.Incr(ctx, "rl:anon:10.0.0.1", RateLimitWindow)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cnt)

	// Distinct keys count independently.
	cnt, _, err = store.Incr(ctx, "rl:anon:10.0.0.2", RateLimitWindow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cnt)
}

func TestRedisCounterStore_WindowExpiry(t *testing.T) {
	mr, store := newRedisStore(t)
	ctx := context.Background()

	cnt, _, err := store.Incr(ctx, "rl:auth:tokenpref", RateLimitWindow)
	require.NoError(t, err)
	require.Equal(t, int64(1), cnt)
	cnt, _, err = store.Incr(ctx, "rl:auth:tokenpref", RateLimitWindow)
	require.NoError(t, err)
	require.Equal(t, int64(2), cnt)

	mr.FastForward(RateLimitWindow + time.Second)

	cnt, _, err = store.Incr(ctx, "rl:auth:tokenpref", RateLimitWindow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cnt)
}

func TestRateLimit_RedisStoreEnforcesAndFailsOpen(t *testing.T) {
	mr, store := newRedisStore(t)
	app := newLimitedApp(store)

	for i := 0; i < AnonymousLimit; i++ {
		resp := hit(t, app, "")
		require.Equal(t, fiber.StatusOK, resp.StatusCode, "request %d", i+1)
		_ = resp.Body.Close()
	}

	resp := hit(t, app, "")
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	_ = resp.Body.Close()

	// A dead Redis must never take the API down with it.
	mr.Close()
	resp = hit(t, app, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestMemoryCounterStore_WindowReset(t *testing.T) {
	store := NewMemoryCounterStore()
	ctx := context.Background()

	cnt, reset, err := store.Incr(ctx, "k", 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cnt)
	assert.LessOrEqual(t, reset, 20*time.Millisecond)

	cnt, _, err = store.Incr(ctx, "k", 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cnt)

	time.Sleep(30 * time.Millisecond)

	cnt, _, err = store.Incr(ctx, "k", 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cnt)
}
