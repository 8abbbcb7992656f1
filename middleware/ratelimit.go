package middleware

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Rate limit policy: one fixed window, with a materially higher ceiling
// for authenticated callers. The key is a token prefix when a bearer
// credential is present, else the client IP.
const (
	RateLimitWindow    = 1 * time.Minute
	AuthenticatedLimit = 200
	AnonymousLimit     = 30
)

// CounterStore counts requests per key within a fixed window. Incr
// returns the updated count and the time remaining until the window
// resets.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, reset time.Duration, err error)
}

// RedisCounterStore backs the limiter with Redis INCR + EXPIRE.
type RedisCounterStore struct {
	rdb *redis.Client
}

// NewRedisCounterStore wraps a Redis client as a CounterStore.
func NewRedisCounterStore(rdb *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb}
}

func (s *RedisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	cnt, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if cnt == 1 {
		s.rdb.Expire(ctx, key, window)
	}
	ttl, err := s.rdb.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return cnt, ttl, nil
}

type memoryCounter struct {
	count   int64
	resetAt time.Time
}

// MemoryCounterStore is an in-process CounterStore used when Redis is
// unavailable and in tests.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
}

// NewMemoryCounterStore creates an empty in-process counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{counters: make(map[string]*memoryCounter)}
}

func (s *MemoryCounterStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.counters[key]
	if !ok || now.After(entry.resetAt) {
		entry = &memoryCounter{resetAt: now.Add(window)}
		s.counters[key] = entry
	}
	entry.count++
	return entry.count, time.Until(entry.resetAt), nil
}

// bearerToken extracts the raw token from the Authorization header.
func bearerToken(c *fiber.Ctx) string {
	parts := strings.Split(c.Get("Authorization"), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// RateLimit enforces the per-caller request ceiling for the window.
// Health checks are exempt. Store errors fail open: throttling is a
// policy, not a correctness requirement.
func RateLimit(store CounterStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if store == nil {
			return c.Next()
		}
		// Probes and scrapers are never throttled.
		if path := c.Path(); path == "/health" || path == "/api/health" || path == "/metrics" {
			return c.Next()
		}

		token := bearerToken(c)
		limit := AnonymousLimit
		key := "rl:anon:" + c.IP()
		if token != "" {
			limit = AuthenticatedLimit
			prefix := token
			if len(prefix) > 10 {
				prefix = prefix[:10]
			}
			key = "rl:auth:" + prefix
		}

		cnt, reset, err := store.Incr(c.Context(), key, RateLimitWindow)
		if err != nil {
			return c.Next()
		}

		if cnt > int64(limit) {
			retryAfter := int(reset.Round(time.Second).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set("Retry-After", strconv.Itoa(retryAfter))

			body := fiber.Map{
				"success":           false,
				"message":           "Too many requests, please try again in a minute",
				"isAuthenticated":   token != "",
				"cooldownMinutes":   1,
				"retryAfterSeconds": retryAfter,
			}
			if token == "" {
				body["hint"] = "Log in to get a higher request limit"
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(body)
		}

		return c.Next()
	}
}
