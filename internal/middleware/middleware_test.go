package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"document-service/internal/logger"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCounter struct {
	counts map[string]int64
	err    error
}

func (m *memCounter) IncrWindow(_ context.Context, key string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.counts[key]++
	return m.counts[key], nil
}

func newLimitedApp(counter Counter, limit int) *fiber.App {
	app := fiber.New()
	limiter := NewRateLimiter(counter, "upload", limit, time.Minute, logger.NewNop())
	app.Post("/upload", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	}, limiter.Handler(ByUserOrIP))
	return app
}

func TestRateLimiterRejectsOverLimit(t *testing.T) {
	counter := &memCounter{counts: map[string]int64{}}
	app := newLimitedApp(counter, 2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		req.Header.Set("X-User-ID", "user-1")
		resp, err := app.Test(req)
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{201, 201, 429}, codes)
	assert.EqualValues(t, 3, counter.counts["upload:user:user-1"])

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.Header.Set("X-User-ID", "user-2")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestRateLimiterFailsOpen(t *testing.T) {
	app := newLimitedApp(&memCounter{err: errors.New("redis down")}, 1)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/upload", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	app := fiber.New()
	app.Use(RequestLogger(logger.NewNop()))
	app.Get("/ok", func(c fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
