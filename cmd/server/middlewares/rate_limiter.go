package middlewares

import (
	"strings"
	"time"

	"fido/cmd/server/handlers/httperr"
	"fido/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus"
)

// RateLimit configures BuildRateLimiter.
type RateLimit struct {
	// Max requests per client IP within Window. Zero or less disables limiting.
	Max    int
	Window time.Duration
	// SkipPrefixes lists path prefixes that are never limited.
	SkipPrefixes []string
	// Rejected, when set, counts requests answered with 429.
	Rejected prometheus.Counter
}

// BuildRateLimiter returns a per-IP sliding window limiter answering
// ErrTooManyRequests (the limiter sets Retry-After). A disabled limit yields a
// pass-through handler so routes can mount it unconditionally.
func BuildRateLimiter(rl RateLimit) fiber.Handler {
	if rl.Max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return limiter.New(limiter.Config{
		Max:               rl.Max,
		Expiration:        rl.Window,
		LimiterMiddleware: limiter.SlidingWindow{},
		Next: func(c *fiber.Ctx) bool {
			for _, p := range rl.SkipPrefixes {
				if strings.HasPrefix(c.Path(), p) {
					return true
				}
			}
			return false
		},
		LimitReached: func(c *fiber.Ctx) error {
			if rl.Rejected != nil {
				rl.Rejected.Inc()
			}
			logger.L().Debug("request rate limited", "ip", c.IP(), "path", c.Path())
			return httperr.Fail(httperr.ErrTooManyRequests)
		},
	})
}
