package middleware

import (
	"strconv"
	"time"

	"memorymaze/backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimit describes a fixed window limit applied per account.
type RateLimit struct {
	Name    string
	Max     int
	Window  time.Duration
	Message string
}

var (
	ChatLimit = RateLimit{
		Name:    "chat",
		Max:     10,
		Window:  time.Minute,
		Message: "Too many AI requests from this account. Please wait a minute before trying again.",
	}
	RecommendationsLimit = RateLimit{
		Name:    "recommendations",
		Max:     5,
		Window:  5 * time.Minute,
		Message: "Too many recommendation requests. Please wait a few minutes before trying again.",
	}
)

// RateLimiter limits requests per authenticated email. It must run after
// AuthMiddleware. Counters live in storage, so a shared Redis store limits
// across instances.
func RateLimiter(rl RateLimit, storage fiber.Storage) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        rl.Max,
		Expiration: rl.Window,
		Storage:    storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			email := CurrentEmail(c)
			if email == "" {
				email = "anonymous"
			}
			return "ratelimit:" + rl.Name + ":" + email
		},
		LimitReached: func(c *fiber.Ctx) error {
			retryAfter, err := strconv.Atoi(c.GetRespHeader(fiber.HeaderRetryAfter))
			if err != nil || retryAfter <= 0 {
				retryAfter = int(rl.Window / time.Second)
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(utils.ErrorResponse{
				Error:      rl.Message,
				RetryAfter: &retryAfter,
			})
		},
	})
}
