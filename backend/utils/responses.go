package utils

import (
	"errors"

	"memorymaze/backend/apperr"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error      string      `json:"error"`
	RetryAfter *int        `json:"retryAfter,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// Error writes an error body with the given status.
func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(ErrorResponse{Error: message})
}

// Created sends 201 Created
func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}

// NewErrorHandler builds the app-wide fiber error handler. Typed errors keep
// their message and status; anything else is logged and answered with a
// generic 500. In development the cause is echoed back as details.
func NewErrorHandler(log *Logger, development bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return Error(c, fe.Code, fe.Message)
		}

		e, ok := apperr.As(err)
		if !ok {
			e = apperr.Internal(err)
		}
		status := apperr.Status(e.Kind)
		body := ErrorResponse{Error: e.Message}
		if e.Kind == apperr.KindRateLimited && e.RetryAfter > 0 {
			retryAfter := e.RetryAfter
			body.RetryAfter = &retryAfter
		}
		if status >= fiber.StatusInternalServerError {
			log.Error("Request failed",
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"error", err,
			)
			if development && e.Err != nil {
				body.Details = e.Err.Error()
			}
		}
		return c.Status(status).JSON(body)
	}
}
