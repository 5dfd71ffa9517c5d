package middleware

import (
	"errors"

	"memorymaze/backend/apperr"
	"memorymaze/backend/config"
	"memorymaze/backend/storage"
	"memorymaze/backend/utils"

	"github.com/gofiber/fiber/v2"
)

const emailKey = "email"

// AuthMiddleware requires a valid bearer token and stores its email claim
// for the handlers.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		email, err := utils.ExtractEmailFromToken(c, cfg)
		if err != nil {
			return err
		}
		c.Locals(emailKey, email)
		return c.Next()
	}
}

// AdminMiddleware looks the caller's role up on every request, so a demoted
// admin loses access without a new token.
func AdminMiddleware(users storage.Users) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := users.GetUser(c.UserContext(), CurrentEmail(c))
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			return apperr.Forbidden("Admin access required")
		}
		if err != nil {
			return apperr.Internal(err)
		}
		if !u.IsAdmin() {
			return apperr.Forbidden("Admin access required")
		}
		return c.Next()
	}
}

// CurrentEmail returns the email AuthMiddleware stored, or "".
func CurrentEmail(c *fiber.Ctx) string {
	email, _ := c.Locals(emailKey).(string)
	return email
}
