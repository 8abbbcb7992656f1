package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"whisperwall/cache"
	"whisperwall/config"
	"whisperwall/database"
	"whisperwall/middleware"
	"whisperwall/models"
	"whisperwall/repository"
	"whisperwall/tracker"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestServer builds a Server against an in-memory sqlite database
// with the full route table mounted. The cache degrades to a no-op and
// the rate limiter is not installed so tests exercise handlers directly.
func newTestServer(t *testing.T) (*Server, *fiber.App) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	s := &Server{
		config:      &config.Config{JWTSecret: "test-secret-key"},
		db:          db,
		cache:       &cache.Cache{},
		userRepo:    repository.NewUserRepository(db),
		postRepo:    repository.NewPostRepository(db),
		commentRepo: repository.NewCommentRepository(db),
		views:       tracker.New(tracker.DefaultWindow, tracker.DefaultMaxAge),
		limiter:     middleware.NewMemoryCounterStore(),
	}

	app := fiber.New()
	s.SetupRoutes(app)
	return s, app
}

// jsonRequest builds a request with a JSON body and optional bearer token.
func jsonRequest(t *testing.T, method, target string, body any, token string) *http.Request {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// doJSON runs the request and decodes the response body into a map.
func doJSON(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

// registerUser creates an account through the API and returns its token
// and ID. The account starts unverified.
func registerUser(t *testing.T, app *fiber.App, username string) (string, uint) {
	t.Helper()

	status, body := doJSON(t, app, jsonRequest(t, "POST", "/api/auth/register", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	}, ""))
	require.Equal(t, fiber.StatusCreated, status)

	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	user := body["user"].(map[string]any)
	return token, uint(user["id"].(float64))
}

func verifyUser(t *testing.T, s *Server, id uint) {
	t.Helper()
	require.NoError(t, s.db.Model(&models.User{}).Where("id = ?", id).
		Update("is_verified", true).Error)
}

func makeAdmin(t *testing.T, s *Server, id uint) {
	t.Helper()
	require.NoError(t, s.db.Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]any{"is_admin": true, "is_verified": true}).Error)
}
