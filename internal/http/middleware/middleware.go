package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"
	"github.com/rs/xid"

	"stlquote/internal/config"
	"stlquote/internal/domain"
	"stlquote/internal/infra/logging"
)

const apiKeyLocal = "api_key"

// TokenStore is the view of the API token cache the middleware needs.
type TokenStore interface {
	Ready() bool
	Validate(token string) bool
	RateLimit(token string) int
}

// NewStore returns Redis-backed limiter storage when addr is set and
// reachable, in-memory storage otherwise.
func NewStore(addr string, db int) (store fiber.Storage) {
	store = memoryStorage.New()
	if addr == "" {
		return store
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Redis limiter store init panicked, falling back to memory", "panic", r)
		}
	}()
	store = redisStorage.New(redisStorage.Config{
		Addrs:    []string{addr},
		Database: db,
	})
	logging.Info("Using Redis for rate limiting", "addr", addr, "db", db)
	return store
}

func tooManyRequests(c *fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"detail": "Too many requests"})
}

// LimiterCache keeps one limiter per distinct token limit so all tokens with
// the same limit share a handler.
type LimiterCache struct {
	mu       sync.RWMutex
	handlers map[int]fiber.Handler
}

func NewLimiterCache() *LimiterCache {
	return &LimiterCache{handlers: make(map[int]fiber.Handler)}
}

func (lc *LimiterCache) get(limit int, build func() fiber.Handler) fiber.Handler {
	lc.mu.RLock()
	h, ok := lc.handlers[limit]
	lc.mu.RUnlock()
	if ok {
		return h
	}
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if h, ok := lc.handlers[limit]; ok {
		return h
	}
	h = build()
	lc.handlers[limit] = h
	return h
}

// TokenRateLimit applies each token's own limit per interval.
func TokenRateLimit(interval time.Duration, tokens TokenStore, store fiber.Storage, cache *LimiterCache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals(apiKeyLocal).(string)
		if !ok || token == "" {
			return c.Next()
		}
		limit := tokens.RateLimit(token)
		if limit <= 0 {
			return c.Next()
		}
		h := cache.get(limit, func() fiber.Handler {
			return limiter.New(limiter.Config{
				Max:               limit,
				Expiration:        interval,
				LimiterMiddleware: limiter.SlidingWindow{},
				Storage:           store,
				KeyGenerator: func(c *fiber.Ctx) string {
					t, _ := c.Locals(apiKeyLocal).(string)
					return "token:" + t
				},
				LimitReached: func(c *fiber.Ctx) error {
					logging.Warn("Rate limit exceeded", "mode", "token", "path", c.Path())
					return tooManyRequests(c)
				},
			})
		})
		return h(c)
	}
}

func clientKey(c *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(c.IP() + c.Get(fiber.HeaderUserAgent)))
	return hex.EncodeToString(sum[:])
}

// UserRateLimit limits unauthenticated callers by IP and user agent.
// Requests carrying an API key skip it; token limits apply to them instead.
func UserRateLimit(limit int, interval time.Duration, store fiber.Storage) fiber.Handler {
	userLimiter := limiter.New(limiter.Config{
		Max:               limit,
		Expiration:        interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           store,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "user:" + clientKey(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			logging.Warn("Rate limit exceeded", "mode", "user", "client", clientKey(c), "path", c.Path())
			return tooManyRequests(c)
		},
	})
	return func(c *fiber.Ctx) error {
		if token, ok := c.Locals(apiKeyLocal).(string); ok && token != "" {
			return c.Next()
		}
		return userLimiter(c)
	}
}

// KeyAuth validates X-API-Key. Unless required is set, requests without the
// header pass through as public traffic.
func KeyAuth(tokens TokenStore, required bool) fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:X-API-Key",
		ContextKey: apiKeyLocal,
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if !tokens.Ready() {
				return false, domain.ErrTokenStoreNotReady
			}
			if !tokens.Validate(key) {
				return false, domain.ErrInvalidAPIKey
			}
			return true, nil
		},
		Next: func(c *fiber.Ctx) bool {
			if c.Method() == fiber.MethodOptions {
				return true
			}
			return !required && c.Get("X-API-Key") == ""
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// keyauth can call ErrorHandler with a nil error.
			status := fiber.StatusUnauthorized
			if err == nil {
				err = fiber.ErrUnauthorized
			}
			if errors.Is(err, domain.ErrTokenStoreNotReady) {
				status = fiber.StatusServiceUnavailable
			}
			return c.Status(status).JSON(fiber.Map{"detail": err.Error()})
		},
	})
}

// Register attaches the global middleware chain. tokens may be nil when auth
// is disabled.
func Register(app *fiber.App, cfg config.Config, tokens TokenStore) {
	app.Use(fiberrecover.New())

	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowMethods: "GET,POST,HEAD,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-API-Key",
	}))

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New(healthcheck.Config{
		LivenessEndpoint:  "/ops/health",
		ReadinessEndpoint: "/ops/ready",
	}))

	app.Use(func(c *fiber.Ctx) error {
		logging.Info("Incoming request", "method", c.Method(), "path", c.Path(),
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID))
		return c.Next()
	})

	auth := tokens != nil && cfg.Auth.Enabled
	tokenLimits := auth && cfg.RateLimiter.EnableTokenRateLimiter
	userLimits := cfg.RateLimiter.EnableUserLimiter && cfg.RateLimiter.UserLimit > 0

	var store fiber.Storage
	if tokenLimits || userLimits {
		store = NewStore(cfg.Cache.RedisHost, cfg.Cache.RateLimitDB)
	}

	if auth {
		app.Use(KeyAuth(tokens, cfg.Auth.Required))
	}
	if tokenLimits {
		app.Use(TokenRateLimit(cfg.RateLimiter.Interval, tokens, store, NewLimiterCache()))
	}
	if userLimits {
		app.Use(UserRateLimit(cfg.RateLimiter.UserLimit, cfg.RateLimiter.Interval, store))
	}
}
