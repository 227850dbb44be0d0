package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/unibox-backend/internal/config"
	"github.com/Ananth-NQI/unibox-backend/internal/handlers"
	"github.com/Ananth-NQI/unibox-backend/internal/middleware"
)

// Handlers bundles every HTTP handler the router mounts
type Handlers struct {
	Health        *handlers.HealthHandler
	Webhooks      *handlers.WebhookHandler
	Messages      *handlers.MessageHandler
	Conversations *handlers.ConversationHandler
	Contacts      *handlers.ContactHandler
	Notes         *handlers.NoteHandler
	Scheduled     *handlers.ScheduledHandler
	Sync          *handlers.SyncHandler
	Attachments   *handlers.AttachmentHandler
	Analytics     *handlers.AnalyticsHandler
	Realtime      *handlers.RealtimeHandler
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, h Handlers, cfg *config.Config, logger *slog.Logger) {
	development := cfg.Server.Environment == "development"

	app.Get("/", h.Health.Status)
	app.Get("/health", h.Health.Check)

	api := app.Group("/api")

	// ========== WEBHOOK ROUTES ==========
	webhooks := api.Group("/webhooks")
	if cfg.WebhookValidationEnabled() {
		webhooks.Post("/twilio",
			middleware.ValidateTwilioSignature(cfg.Twilio.AuthToken, cfg.Security.PublicBaseURL, logger),
			h.Webhooks.HandleTwilio)
	} else {
		logger.Warn("twilio webhook signature validation disabled", "environment", cfg.Server.Environment)
		webhooks.Post("/twilio", h.Webhooks.HandleTwilio)
	}
	webhooks.Post("/email", middleware.ValidateEmailSignature(cfg.Email.WebhookSecret), h.Webhooks.HandleEmail)

	// ========== SCHEDULER ROUTES ==========
	scheduled := api.Group("/scheduled-messages", middleware.RequireCronSecret(cfg.Security.CronSecret, development))
	scheduled.Post("/process", h.Scheduled.Process)
	scheduled.Get("/process", h.Scheduled.Status)

	// ========== OPERATOR ROUTES ==========
	auth := middleware.RequireUser(cfg.Security.JWTSecret, development)

	api.Post("/messages/send", auth, h.Messages.Send)

	conversations := api.Group("/conversations", auth)
	conversations.Get("/", h.Conversations.List)
	conversations.Get("/updates", h.Realtime.Stream)
	conversations.Get("/:id", h.Conversations.Get)
	conversations.Patch("/:id", h.Conversations.UpdateStatus)
	conversations.Post("/:id/read", h.Conversations.MarkRead)
	conversations.Post("/:id/reply", h.Conversations.Reply)

	contacts := api.Group("/contacts", auth)
	contacts.Get("/", h.Contacts.List)
	contacts.Post("/", h.Contacts.Create)
	contacts.Get("/:id", h.Contacts.Get)
	contacts.Put("/:id", h.Contacts.Update)
	contacts.Delete("/:id", h.Contacts.Delete)

	notes := api.Group("/notes", auth)
	notes.Get("/", h.Notes.List)
	notes.Post("/", h.Notes.Create)
	notes.Get("/:id", h.Notes.Get)
	notes.Put("/:id", h.Notes.Update)
	notes.Delete("/:id", h.Notes.Delete)

	api.Post("/sync/emails", auth, h.Sync.SyncEmails)
	api.Post("/attachments", auth, h.Attachments.Upload)
	api.Get("/analytics/metrics", auth, h.Analytics.GetMetrics)
}
