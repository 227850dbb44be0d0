package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/unibox-backend/internal/middleware"
	"github.com/Ananth-NQI/unibox-backend/internal/services"
)

// MessageHandler handles operator sends
type MessageHandler struct {
	dispatcher *services.Dispatcher
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(dispatcher *services.Dispatcher) *MessageHandler {
	return &MessageHandler{
		dispatcher: dispatcher,
	}
}

// Send delivers or schedules a message to a contact
func (h *MessageHandler) Send(c *fiber.Ctx) error {
	var req services.SendRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.SenderID = middleware.UserID(c)

	result, err := h.dispatcher.Send(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return respondSend(c, result)
}

// respondSend maps the send outcome onto 200 sent, 202 scheduled, 502 failed
func respondSend(c *fiber.Ctx, result *services.SendResult) error {
	status := fiber.StatusOK
	switch result.Status {
	case services.SendStatusScheduled:
		status = fiber.StatusAccepted
	case services.SendStatusFailed:
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(result)
}
