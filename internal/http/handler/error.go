package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"datalocator/internal/http/middleware"
	"datalocator/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "NOT_FOUND", "ACCESS_DENIED", "INTERNAL_ERROR")
// - message: human-readable safe message
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return writeErrorPayload(c, status, errorEnvelope{Code: code, Message: message})
}

func writeErrorPayload(c *fiber.Ctx, status int, env errorEnvelope) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error:     env,
	}
	return c.Status(status).JSON(res)
}

// writeLocatorError maps the locator error taxonomy onto HTTP responses.
// Messages carry the resolved address so callers can tell which bucket or
// region was refused.
func writeLocatorError(c *fiber.Ctx, err error) error {
	var opErr *service.OpError
	msg := "internal server error"
	if errors.As(err, &opErr) {
		msg = opErr.Error()
	}

	switch {
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", msg)
	case errors.Is(err, service.ErrAccessDenied):
		return writeError(c, fiber.StatusForbidden, "ACCESS_DENIED", msg)
	case errors.Is(err, service.ErrTimeout) && errors.Is(err, service.ErrTransfer):
		return writeErrorPayload(c, fiber.StatusGatewayTimeout, errorEnvelope{Code: "TIMEOUT", Message: msg, Retryable: true})
	case errors.Is(err, service.ErrTransfer):
		return writeErrorPayload(c, fiber.StatusBadGateway, errorEnvelope{Code: "TRANSFER_ERROR", Message: msg, Retryable: true})
	case errors.Is(err, service.ErrResolution):
		return writeError(c, fiber.StatusUnprocessableEntity, "RESOLUTION_ERROR", msg)
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
