package serverutils

import (
	"errors"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/repository/contract"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware turns errors returned by controllers into JSON
// responses with a status matching the error.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := StatusFor(err)
		return ctx.Status(code).JSON(Response[any]{
			Success: false,
			Code:    code,
			Message: err.Error(),
		})
	}
}

func StatusFor(err error) int {
	var fiberErr *fiber.Error
	var validationErr *ValidationError
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest
	case errors.Is(err, contract.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, contract.ErrVersionConflict), errors.Is(err, entity.ErrIllegalTransition),
		errors.Is(err, entity.ErrNoOpenEdition), errors.Is(err, entity.ErrEditionPublished):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}
