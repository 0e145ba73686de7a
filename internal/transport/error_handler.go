package transport

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/kursadbilgin/tutor-notifier/internal/observability"
	"go.uber.org/zap"
)

const internalErrorMessage = "internal server error"

// StatusCode maps an error returned by a handler to an HTTP status.
func StatusCode(err error) int {
	var fiberErr *fiber.Error
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNoRecipient),
		errors.Is(err, domain.ErrMissingTemplate),
		errors.Is(err, domain.ErrUnsupportedChannel):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders handler errors as {"error": "..."}. Server errors are
// logged with their cause and answered with a generic message.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		code := StatusCode(err)
		reqLogger := observability.WithContextLogger(logger, c.UserContext())

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		}

		message := err.Error()
		if code >= fiber.StatusInternalServerError {
			reqLogger.Error("request error", fields...)
			var fiberErr *fiber.Error
			if !errors.As(err, &fiberErr) {
				message = internalErrorMessage
			}
		} else {
			reqLogger.Warn("request rejected", fields...)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}
}
