package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/unibox-backend/internal/services"
)

const emptyTwiML = "<Response></Response>"

// WebhookHandler receives provider callbacks for inbound messages
type WebhookHandler struct {
	inbound *services.InboundService
	logger  *slog.Logger
	now     func() time.Time
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(inbound *services.InboundService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		inbound: inbound,
		logger:  logger,
		now:     time.Now,
	}
}

// HandleTwilio processes incoming SMS and WhatsApp messages. Twilio retries
// on anything but 200, so failures are logged and acknowledged anyway.
func (h *WebhookHandler) HandleTwilio(c *fiber.Ctx) error {
	params := make(map[string]string)
	c.Request().PostArgs().VisitAll(func(key, value []byte) {
		params[string(key)] = string(value)
	})

	evt, err := services.NormalizeTwilio(params, h.now())
	if err != nil {
		h.logger.Warn("dropping twilio webhook", "error", err)
		return twiml(c)
	}

	result, err := h.inbound.Process(c.UserContext(), evt)
	if err != nil {
		h.logger.Error("failed to process twilio webhook",
			"channel", evt.Channel, "external_id", evt.ExternalID, "error", err)
		return twiml(c)
	}

	h.logger.Info("twilio message received",
		"channel", evt.Channel, "message_id", result.Message.ID, "duplicate", result.Duplicate)
	return twiml(c)
}

// HandleEmail processes the email provider's JSON callback
func (h *WebhookHandler) HandleEmail(c *fiber.Ctx) error {
	var payload services.EmailWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "Invalid webhook payload")
	}

	// Unparseable events are acknowledged so the provider does not retry them.
	evt, err := services.NormalizeEmail(payload, h.now())
	if err != nil {
		h.logger.Warn("dropping email webhook", "message_id", payload.MessageID, "error", err)
		return c.JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	result, err := h.inbound.Process(c.UserContext(), evt)
	if err != nil {
		var validation *services.ValidationError
		if errors.As(err, &validation) {
			return respondError(c, err)
		}
		h.logger.Error("failed to process email webhook", "external_id", evt.ExternalID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process email",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

func twiml(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/xml")
	return c.Status(fiber.StatusOK).SendString(emptyTwiML)
}
