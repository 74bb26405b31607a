package handlers

import (
	"document-service/internal/metrics"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
)

func RegisterHealthRoutes(app *fiber.App) {
	app.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("Document Service is healthy")
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
}
