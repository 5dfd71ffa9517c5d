package utils

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"memorymaze/backend/apperr"
	"memorymaze/backend/config"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret", JWTTTL: time.Hour}
	token, err := GenerateJWTToken("reader@example.com", cfg)
	require.NoError(t, err)

	email, err := ParseJWTToken(token, cfg)
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", email)

	_, err = ParseJWTToken(token, &config.Config{JWTSecret: "other"})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "Invalid token. Please login again.", e.Message)
}

func TestJWTExpired(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret", JWTTTL: -time.Minute}
	token, err := GenerateJWTToken("reader@example.com", cfg)
	require.NoError(t, err)

	_, err = ParseJWTToken(token, cfg)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindUnauthorized, e.Kind)
	assert.Equal(t, "Token expired. Please login again.", e.Message)
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(NopLogger(), true)})
	app.Get("/typed", func(c *fiber.Ctx) error { return apperr.NotFound("Story not found") })
	app.Get("/limited", func(c *fiber.Ctx) error { return apperr.RateLimited("slow down", 60) })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("disk on fire") })
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.ErrMethodNotAllowed })

	cases := []struct {
		path   string
		status int
		body   ErrorResponse
	}{
		{"/typed", http.StatusNotFound, ErrorResponse{Error: "Story not found"}},
		{"/limited", http.StatusTooManyRequests, ErrorResponse{Error: "slow down", RetryAfter: intPtr(60)}},
		{"/boom", http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", Details: "disk on fire"}},
		{"/fiber", http.StatusMethodNotAllowed, ErrorResponse{Error: "Method Not Allowed"}},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tc.path, nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)

			raw, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			want, err := json.Marshal(tc.body)
			require.NoError(t, err)
			assert.JSONEq(t, string(want), string(raw))
		})
	}
}

func TestErrorHandlerHidesDetailsInProduction(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(NopLogger(), false)})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("disk on fire") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Internal server error"}`, string(raw))
}

func TestRedaction(t *testing.T) {
	kv := redact([]interface{}{"email", "a@example.com", "password", "hunter2", "Authorization", "Bearer x"})
	assert.Equal(t, []interface{}{"email", "a@example.com", "password", "[REDACTED]", "Authorization", "[REDACTED]"}, kv)
}

func intPtr(n int) *int { return &n }
