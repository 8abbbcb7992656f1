package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"whisperwall/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The collector registers with the global Prometheus registry, so it is
// created exactly once for the package's tests.
func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	s.metrics = middleware.InitMetrics("whisperwall-test")

	app := fiber.New()
	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	// Generate some traffic for the collector to record.
	status, _ := doJSON(t, app, jsonRequest(t, "GET", "/api/posts/", nil, ""))
	require.Equal(t, fiber.StatusOK, status)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "http_requests_total")
}
