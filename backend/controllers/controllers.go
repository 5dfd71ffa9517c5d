// Package controllers binds HTTP requests to the services. Handlers decode,
// call one service method and shape the JSON reply; failures are returned
// to the app error handler as typed errors.
package controllers

import (
	"net/url"

	"memorymaze/backend/apperr"

	"github.com/gofiber/fiber/v2"
)

const msgInvalidRequest = "Invalid request data"

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Validation(msgInvalidRequest)
	}
	return nil
}

// pathParam returns a decoded route parameter. Emails arrive
// percent-encoded.
func pathParam(c *fiber.Ctx, name string) string {
	raw := c.Params(name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
