package middleware

import (
	"time"

	"memorymaze/backend/utils"

	"github.com/gofiber/fiber/v2"
)

// LoggingMiddleware logs every request once it has been answered. Handler
// errors are rendered here through the app error handler so the logged
// status is the one the client gets.
func LoggingMiddleware(logger *utils.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		fields := []interface{}{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start).String(),
			"ip", c.IP(),
		}
		if email := CurrentEmail(c); email != "" {
			fields = append(fields, "user", email)
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("Request", fields...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("Request", fields...)
		default:
			logger.Info("Request", fields...)
		}
		return nil
	}
}
