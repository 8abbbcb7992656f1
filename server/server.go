// Package server contains the HTTP handlers and route wiring for the
// Whisperwall API.
package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strconv"
	"strings"
	"time"

	"whisperwall/cache"
	"whisperwall/config"
	"whisperwall/database"
	"whisperwall/middleware"
	"whisperwall/models"
	"whisperwall/repository"
	"whisperwall/tracker"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config      *config.Config
	db          *gorm.DB
	cache       *cache.Cache
	userRepo    repository.UserRepository
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	views       *tracker.ViewTracker
	limiter     middleware.CounterStore
	metrics     *fiberprometheus.FiberPrometheus
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}

	redisCache := cache.Connect(cfg.RedisURL)

	var limiter middleware.CounterStore
	if rdb := redisCache.Client(); rdb != nil {
		limiter = middleware.NewRedisCounterStore(rdb)
	} else {
		limiter = middleware.NewMemoryCounterStore()
	}

	return &Server{
		config:      cfg,
		db:          db,
		cache:       redisCache,
		userRepo:    repository.NewUserRepository(db),
		postRepo:    repository.NewPostRepository(db),
		commentRepo: repository.NewCommentRepository(db),
		views:       tracker.New(tracker.DefaultWindow, tracker.DefaultMaxAge),
		limiter:     limiter,
		metrics:     middleware.InitMetrics("whisperwall-api"),
	}, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Request ID for tracing
	app.Use(requestid.New())

	// Prometheus request metrics
	if s.metrics != nil {
		app.Use(middleware.MetricsMiddleware(s.metrics))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware
	app.Use(middleware.StructuredLogger())

	// Differentiated rate limiting (higher ceiling for authenticated callers)
	app.Use(middleware.RateLimit(s.limiter))

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://127.0.0.1:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Session-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)

	// Prometheus scrape endpoint. Exempt from rate limiting like /health.
	if s.metrics != nil {
		s.metrics.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/health", s.HealthCheck)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", s.Register)
	auth.Post("/login", s.Login)
	auth.Get("/verify", s.AuthRequired(), s.Verify)

	// Post routes. Reads are public (with optional identity for
	// personalized like state); writes need a verified account.
	posts := api.Group("/posts")
	posts.Get("/", s.OptionalAuth(), s.GetPosts)
	posts.Post("/", s.AuthRequired(), s.RequireVerified(), s.CreatePost)
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", s.AuthRequired(), s.RequireVerified(), s.CreateComment)
	posts.Post("/:id/like", s.AuthRequired(), s.RequireVerified(), s.LikePost)
	posts.Get("/:id", s.OptionalAuth(), s.GetPost)

	// Admin routes
	admin := api.Group("/admin", s.AuthRequired(), s.RequireAdmin())
	admin.Get("/stats", s.AdminStats)
	admin.Get("/users", s.AdminListUsers)
	admin.Get("/users/pending", s.AdminListPendingUsers)
	admin.Post("/users/:id/verify", s.AdminVerifyUser)
	admin.Post("/users/:id/unverify", s.AdminUnverifyUser)
	admin.Post("/users/:id/block", s.AdminBlockUser)
	admin.Post("/users/:id/unblock", s.AdminUnblockUser)
	admin.Put("/users/:id/role", s.AdminUpdateUserRole)
	admin.Delete("/users/:id", s.AdminDeleteUser)
	admin.Get("/posts", s.AdminListPosts)
	// Define specific /posts routes BEFORE the generic /posts/:id route
	admin.Post("/posts/bulk-deanonymize", s.AdminBulkDeanonymize)
	admin.Get("/posts/:id/deanonymize", s.AdminDeanonymizePost)
	admin.Put("/posts/:id/status", s.AdminUpdatePostStatus)
	admin.Post("/posts/:id/hide", s.AdminHidePost)
	admin.Post("/posts/:id/unhide", s.AdminUnhidePost)
	admin.Delete("/posts/:id", s.AdminDeletePost)
	admin.Get("/posts/:id", s.AdminGetPost)
	admin.Get("/comments", s.AdminListComments)
	admin.Get("/comments/:id/deanonymize", s.AdminDeanonymizeComment)
	admin.Delete("/comments/:id", s.AdminDeleteComment)
	admin.Get("/surveillance/security-stats", s.AdminSecurityStats)

	// 404 for unknown API endpoints
	app.Use(func(c *fiber.Ctx) error {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Endpoint", c.Path()))
	})
}

// HealthCheck handles health check requests. Exempt from rate limiting.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if rdb := s.cache.Client(); rdb != nil {
		if err := rdb.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"success": status == fiber.StatusOK,
		"message": "Whisperwall API is running",
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// parseToken validates the bearer token and returns the user ID it
// encodes.
func (s *Server) parseToken(tokenString string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, models.NewUnauthorizedError("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, models.NewUnauthorizedError("Invalid token claims")
	}

	if issuer, issuerOk := claims["iss"].(string); !issuerOk || issuer != "whisperwall-api" {
		return 0, models.NewUnauthorizedError("Invalid token issuer")
	}
	if audience, audienceOk := claims["aud"].(string); !audienceOk || audience != "whisperwall-client" {
		return 0, models.NewUnauthorizedError("Invalid token audience")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, models.NewUnauthorizedError("Invalid subject claim")
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return 0, models.NewUnauthorizedError("Invalid user ID in token")
	}

	return uint(userID), nil
}

// AuthRequired resolves the caller's identity from the bearer token and
// re-reads the account from the store, so role flags are always current.
// A blocked account is rejected with the banned flag before any other
// gate runs.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerTokenFrom(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		userID, err := s.parseToken(tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}

		user, err := s.userRepo.GetByID(c.Context(), userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		if user.IsBlocked {
			return models.RespondWithError(c, fiber.StatusForbidden, models.NewBannedError())
		}

		c.Locals("user", user)
		c.Locals("userID", user.ID)
		return c.Next()
	}
}

// RequireVerified gates write operations behind admin verification. The
// distinguished flag tells clients the account still has read access.
func (s *Server) RequireVerified() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := c.Locals("user").(*models.User)
		if !user.IsVerified {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewVerificationRequiredError())
		}
		return c.Next()
	}
}

// RequireAdmin gates the moderation surface.
func (s *Server) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := c.Locals("user").(*models.User)
		if !user.IsAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Administrator privileges required"))
		}
		return c.Next()
	}
}

// OptionalAuth resolves identity if a valid token is present but never
// rejects anonymous callers. Blocked accounts are treated as anonymous.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerTokenFrom(c)
		if tokenString == "" {
			return c.Next()
		}

		userID, err := s.parseToken(tokenString)
		if err != nil {
			return c.Next()
		}

		user, err := s.userRepo.GetByID(c.Context(), userID)
		if err != nil || user.IsBlocked {
			return c.Next()
		}

		c.Locals("user", user)
		c.Locals("userID", user.ID)
		return c.Next()
	}
}

func bearerTokenFrom(c *fiber.Ctx) string {
	parts := strings.Split(c.Get("Authorization"), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// currentUser returns the resolved user when OptionalAuth or
// AuthRequired stored one.
func currentUser(c *fiber.Ctx) (*models.User, bool) {
	user, ok := c.Locals("user").(*models.User)
	return user, ok
}

// sessionIDFrom identifies anonymous actors for view and like
// de-duplication.
func sessionIDFrom(c *fiber.Ctx) string {
	if sid := c.Get("X-Session-ID"); sid != "" {
		return sid
	}
	return "unknown"
}

// likerIdentity derives the identity signal a like or like-status check
// is keyed by.
func likerIdentity(c *fiber.Ctx) repository.LikerIdentity {
	if user, ok := currentUser(c); ok {
		id := user.ID
		return repository.LikerIdentity{UserID: &id}
	}
	return repository.LikerIdentity{
		SessionID: sessionIDFrom(c),
		IPAddress: c.IP(),
	}
}

// browserFingerprint derives the stored fingerprint from request headers.
func browserFingerprint(userAgent, ipAddress, language string) string {
	sum := sha256.Sum256([]byte(userAgent + ipAddress + language))
	return hex.EncodeToString(sum[:])[:32]
}

// App builds the Fiber application with middleware and routes wired.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Whisperwall API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if err := s.cache.Close(); err != nil {
		log.Printf("error closing redis: %v", err)
	}

	log.Println("Server shutdown complete")
	return nil
}
