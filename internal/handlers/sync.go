package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/unibox-backend/internal/services"
)

// SyncHandler pulls the shared mailbox on demand
type SyncHandler struct {
	sync *services.EmailSyncService
}

// NewSyncHandler creates a new sync handler. sync may be nil when no
// inbound mailbox is configured.
func NewSyncHandler(sync *services.EmailSyncService) *SyncHandler {
	return &SyncHandler{
		sync: sync,
	}
}

func (h *SyncHandler) SyncEmails(c *fiber.Ctx) error {
	if h.sync == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Email sync is not configured",
		})
	}

	var req struct {
		Folder string `json:"folder"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	result, err := h.sync.Sync(c.UserContext(), req.Folder)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}
