package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/unibox-backend/internal/services"
)

// ScheduledHandler exposes the scheduled-send processor to the cron caller
type ScheduledHandler struct {
	processor *services.ScheduledProcessor
}

func NewScheduledHandler(processor *services.ScheduledProcessor) *ScheduledHandler {
	return &ScheduledHandler{
		processor: processor,
	}
}

// Process sends every due message in one batch
func (h *ScheduledHandler) Process(c *fiber.Ctx) error {
	result, err := h.processor.ProcessDue(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// Status reports queue depth and recent outcomes
func (h *ScheduledHandler) Status(c *fiber.Ctx) error {
	status, err := h.processor.Status(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    status,
	})
}
