package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"document-service/internal/logger"
	"document-service/internal/metrics"

	"github.com/gofiber/fiber/v3"
)

// Counter is a fixed-window hit counter.
type Counter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

type RateLimiter struct {
	counter Counter
	prefix  string
	limit   int
	window  time.Duration
	log     *logger.Logger
}

func NewRateLimiter(counter Counter, prefix string, limit int, window time.Duration, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.NewNop()
	}
	return &RateLimiter{
		counter: counter,
		prefix:  prefix,
		limit:   limit,
		window:  window,
		log:     log.With("component", "rate_limiter"),
	}
}

// ByUserOrIP keys requests by X-User-ID, falling back to the client IP.
func ByUserOrIP(c fiber.Ctx) string {
	if userID := c.Get("X-User-ID"); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.IP()
}

// Handler rejects requests over the limit with 429. When the counter is
// unreachable the request is let through and the failure logged.
func (r *RateLimiter) Handler(keyFunc func(c fiber.Ctx) string) fiber.Handler {
	return func(c fiber.Ctx) error {
		key := fmt.Sprintf("%s:%s", r.prefix, keyFunc(c))
		count, err := r.counter.IncrWindow(c.Context(), key, r.window)
		if err != nil {
			r.log.Warn("Rate limiter unavailable, allowing request", "key", key, "error", err)
			return c.Next()
		}
		if count > int64(r.limit) {
			metrics.RateLimitedTotal.Inc()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(r.window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
