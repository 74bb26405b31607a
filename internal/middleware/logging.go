package middleware

import (
	"errors"
	"time"

	"document-service/internal/logger"

	"github.com/gofiber/fiber/v3"
)

// RequestLogger logs one line per request after the handler chain ran.
func RequestLogger(log *logger.Logger) fiber.Handler {
	log = log.With("component", "http")
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		kv := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.IP(),
		}
		if status >= fiber.StatusInternalServerError {
			log.Error("Request failed", append(kv, "error", err)...)
		} else {
			log.Debug("Request handled", kv...)
		}
		return err
	}
}
