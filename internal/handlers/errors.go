package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/unibox-backend/internal/services"
	"github.com/Ananth-NQI/unibox-backend/internal/storage"
)

// respondError writes err as {"error": msg} with the matching status
func respondError(c *fiber.Ctx, err error) error {
	status, msg := classify(err)
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
	})
}

func classify(err error) (int, string) {
	var validation *services.ValidationError
	var normalization *services.NormalizationError
	var fiberErr *fiber.Error

	switch {
	case errors.As(err, &validation):
		return fiber.StatusBadRequest, validation.Error()
	case errors.As(err, &normalization):
		return fiber.StatusBadRequest, normalization.Error()
	case services.IsMissingAddress(err), errors.Is(err, services.ErrUnsupportedChannel):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, storage.ErrNotFound):
		return fiber.StatusNotFound, "Not found"
	case errors.Is(err, services.ErrForbidden):
		return fiber.StatusForbidden, "Access denied"
	case errors.Is(err, storage.ErrDuplicateContact):
		return fiber.StatusConflict, storage.ErrDuplicateContact.Error()
	case errors.Is(err, storage.ErrConflict), errors.Is(err, services.ErrBatchInProgress):
		return fiber.StatusConflict, err.Error()
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message
	default:
		return fiber.StatusInternalServerError, "Internal server error"
	}
}

// ErrorHandler is the app-wide fallback for errors returned by handlers
func ErrorHandler(c *fiber.Ctx, err error) error {
	return respondError(c, err)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}
