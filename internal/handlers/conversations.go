package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/unibox-backend/internal/middleware"
	"github.com/Ananth-NQI/unibox-backend/internal/models"
	"github.com/Ananth-NQI/unibox-backend/internal/services"
)

// ConversationHandler handles the inbox views
type ConversationHandler struct {
	conversations *services.ConversationReconciler
	dispatcher    *services.Dispatcher
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversations *services.ConversationReconciler, dispatcher *services.Dispatcher) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		dispatcher:    dispatcher,
	}
}

// List returns conversations, or search hits when ?search= is given
func (h *ConversationHandler) List(c *fiber.Ctx) error {
	if query := c.Query("search"); query != "" {
		results, err := h.conversations.Search(c.UserContext(), query, c.QueryInt("limit", 20))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"conversations": results,
			"count":         len(results),
		})
	}

	list, err := h.conversations.List(c.UserContext(), models.ConversationFilter{
		Status:  models.ConversationStatus(c.Query("status")),
		Channel: models.Channel(c.Query("channel")),
		Limit:   c.QueryInt("limit", 50),
		Offset:  c.QueryInt("offset", 0),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

// Get returns one conversation with a page of its messages
func (h *ConversationHandler) Get(c *fiber.Ctx) error {
	conv, err := h.conversations.Details(c.UserContext(), c.Params("id"),
		c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(conv)
}

// MarkRead resets the unread counter
func (h *ConversationHandler) MarkRead(c *fiber.Ctx) error {
	if err := h.conversations.MarkAsRead(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
	})
}

// Reply answers on the conversation's channel
func (h *ConversationHandler) Reply(c *fiber.Ctx) error {
	var req services.ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := h.dispatcher.Reply(c.UserContext(), c.Params("id"), middleware.UserID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return respondSend(c, result)
}

// UpdateStatus archives, snoozes or reactivates a conversation
func (h *ConversationHandler) UpdateStatus(c *fiber.Ctx) error {
	var req struct {
		Status models.ConversationStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	conv, err := h.conversations.SetStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(conv)
}
