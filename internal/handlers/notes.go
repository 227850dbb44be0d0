package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/unibox-backend/internal/middleware"
	"github.com/Ananth-NQI/unibox-backend/internal/services"
)

// NoteHandler handles team notes on contacts
type NoteHandler struct {
	notes *services.NoteService
}

// NewNoteHandler creates a new note handler
func NewNoteHandler(notes *services.NoteService) *NoteHandler {
	return &NoteHandler{
		notes: notes,
	}
}

func viewer(c *fiber.Ctx) services.Viewer {
	return services.Viewer{UserID: middleware.UserID(c), IsAdmin: middleware.IsAdmin(c)}
}

func (h *NoteHandler) List(c *fiber.Ctx) error {
	contactID := c.Query("contactId")
	if contactID == "" {
		return badRequest(c, "contactId is required")
	}

	list, err := h.notes.List(c.UserContext(), viewer(c), contactID, c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

func (h *NoteHandler) Create(c *fiber.Ctx) error {
	var in services.NoteInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}

	note, err := h.notes.Create(c.UserContext(), viewer(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(note)
}

func (h *NoteHandler) Get(c *fiber.Ctx) error {
	note, err := h.notes.Get(c.UserContext(), viewer(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(note)
}

func (h *NoteHandler) Update(c *fiber.Ctx) error {
	var in services.NoteInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}

	note, err := h.notes.Update(c.UserContext(), viewer(c), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(note)
}

func (h *NoteHandler) Delete(c *fiber.Ctx) error {
	if err := h.notes.Delete(c.UserContext(), viewer(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
	})
}
