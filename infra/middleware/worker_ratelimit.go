package middleware

import (
	"strconv"

	"mailparser_server/pkg/apperr"
	"mailparser_server/pkg/ratelimit"

	"github.com/gofiber/fiber/v2"
)

// RateLimit rejects clients that exceed the limiter's window, keyed by IP.
func RateLimit(limiter *ratelimit.SlidingWindowLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, wait := limiter.Allow(c.Context(), "api:"+c.IP())
		if ok {
			return c.Next()
		}
		secs := int(wait.Seconds())
		if secs < 1 {
			secs = 1
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
		return apperr.RateLimited(wait)
	}
}
