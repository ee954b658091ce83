package serverutils

import (
	"errors"
	"fmt"

	"testcase-workflow-be/internal/service"
	"testcase-workflow-be/pkg/backend"

	"github.com/gofiber/fiber/v2"
	"github.com/moogar0880/problems"
)

// ErrorHandlerMiddleware turns errors returned by downstream handlers into
// RFC 7807 problem documents.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return WriteProblem(ctx, err)
	}
}

func WriteProblem(ctx *fiber.Ctx, err error) error {
	status, kind, detail := classify(err)

	problem := problems.NewStatusProblem(status).
		WithInstance(ctx.Path()).
		WithType(kind).
		WithDetail(detail)

	return ctx.Status(status).JSON(problem, problems.ProblemMediaType)
}

func classify(err error) (int, string, string) {
	var validationErr *ValidationError
	var fiberErr *fiber.Error

	switch {
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest, "validation_error", err.Error()
	case service.IsValidationError(err):
		return fiber.StatusBadRequest, "validation_error", err.Error()
	case service.IsNotFoundError(err):
		return fiber.StatusNotFound, "not_found", err.Error()
	case service.IsConflictError(err):
		return fiber.StatusConflict, "conflict", err.Error()
	case backend.IsTransportError(err):
		return fiber.StatusGatewayTimeout, "backend_unreachable", err.Error()
	case errors.As(err, &fiberErr):
		return fiberErr.Code, "http_error", fiberErr.Message
	}

	if apiErr, ok := backend.AsAPIError(err); ok {
		return fiber.StatusBadGateway, "backend_error", fmt.Sprintf("backend responded %d: %s", apiErr.Status, apiErr.Message)
	}
	return fiber.StatusInternalServerError, "internal_error", err.Error()
}
