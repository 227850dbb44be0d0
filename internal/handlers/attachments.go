package handlers

import (
	"context"
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
)

// maxAttachmentSize caps a single upload
const maxAttachmentSize = 25 << 20

// Uploader stores an attachment and returns its public descriptor
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, size int64, body io.Reader) (*models.AttachmentInput, error)
}

// AttachmentHandler accepts file uploads for outbound messages
type AttachmentHandler struct {
	uploader Uploader
	logger   *slog.Logger
}

// NewAttachmentHandler creates a new attachment handler. uploader may be nil
// when no bucket is configured.
func NewAttachmentHandler(uploader Uploader, logger *slog.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		uploader: uploader,
		logger:   logger,
	}
}

// Upload stores the multipart "file" field
func (h *AttachmentHandler) Upload(c *fiber.Ctx) error {
	if h.uploader == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Attachment storage is not configured",
		})
	}

	header, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}
	if header.Size > maxAttachmentSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "File too large",
		})
	}

	file, err := header.Open()
	if err != nil {
		return badRequest(c, "Unreadable file")
	}
	defer file.Close()

	contentType := header.Header.Get(fiber.HeaderContentType)
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}

	attachment, err := h.uploader.Upload(c.UserContext(), header.Filename, contentType, header.Size, file)
	if err != nil {
		h.logger.Error("attachment upload failed", "filename", header.Filename, "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to store attachment",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(attachment)
}
