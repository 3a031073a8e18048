package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/bmetallica/netcatalog/internal/neterr"
)

// ErrorResponse is the sanitized body every non-2xx response carries.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HandleError logs the detailed error server-side and returns a
// sanitized, typed-error-aware response to the client: neterr.Error
// values map to their proper status code, anything else falls back to
// the caller's default message and status.
func HandleError(c *fiber.Ctx, defaultStatus int, err error, defaultMessage string) error {
	log.Error().Err(err).Str("path", c.Path()).Msg("request failed")

	status := defaultStatus
	message := defaultMessage
	code := ""

	var netErr *neterr.Error
	if errors.As(err, &netErr) {
		status = neterr.HTTPStatus(err)
		message = netErr.Message
		code = string(netErr.Kind)
	}

	return c.Status(status).JSON(ErrorResponse{Error: message, Code: code})
}
