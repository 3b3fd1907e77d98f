package response

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/storylinez/storylinez-go/pkg/apierr"
)

// Error codes
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeRateLimited     = "RATE_LIMITED"
	CodeUpstreamError   = "UPSTREAM_ERROR"
	CodeServiceError    = "SERVICE_ERROR"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// FromError maps an error from the platform client onto a status and code.
func FromError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return Error(c, fe.Code, CodeServiceError, fe.Message, nil)
	}

	msg := apierr.MessageOf(err)
	switch apierr.KindOf(err) {
	case apierr.KindValidation:
		return ValidationError(c, msg, nil)
	case apierr.KindAuth:
		return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, msg, nil)
	case apierr.KindNotFound:
		return NotFound(c, msg)
	case apierr.KindRateLimit:
		return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, msg, nil)
	case apierr.KindServer, apierr.KindNetwork, apierr.KindTimeout, apierr.KindRemoteJob:
		return Error(c, fiber.StatusBadGateway, CodeUpstreamError, msg, nil)
	}
	return ServiceError(c, err.Error())
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, CodeConflict, message, nil)
}

func RateLimited(c *fiber.Ctx) error {
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded", nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

func Accepted(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}
