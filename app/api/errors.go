package api

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"wellrag/pkg/logging"
)

// ErrorHandler maps handler errors onto JSON responses.
func ErrorHandler(logger *logging.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(c *fiber.Ctx, err error) error {
		var apiErr Error
		if errors.As(err, &apiErr) {
			return c.Status(apiErr.Code).JSON(apiErr)
		}

		var valErr ValidationError
		if errors.As(err, &valErr) {
			return c.Status(valErr.Status).JSON(valErr)
		}

		code := fiber.StatusInternalServerError
		msg := "internal server error"
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
			msg = fiberErr.Message
		}

		logger.Error("request failed", "method", c.Method(), "path", c.Path(), "code", code, "error", err)
		return c.Status(code).JSON(NewError(code, msg))
	}
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

func ErrInvalidID() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid id given",
	}
}

func ErrUnsupportedMedia(ext string) Error {
	return Error{
		Code:    fiber.StatusUnsupportedMediaType,
		Message: fmt.Sprintf("unsupported file type %q", ext),
	}
}
