package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
	"github.com/Ananth-NQI/unibox-backend/internal/services"
)

// ContactHandler handles contact management
type ContactHandler struct {
	contacts *services.ContactService
}

// NewContactHandler creates a new contact handler
func NewContactHandler(contacts *services.ContactService) *ContactHandler {
	return &ContactHandler{
		contacts: contacts,
	}
}

// List returns active contacts, filtered by ?search= and ?tags=a,b
func (h *ContactHandler) List(c *fiber.Ctx) error {
	filter := models.ContactFilter{
		Search: c.Query("search"),
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	if tags := c.Query("tags"); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				filter.Tags = append(filter.Tags, tag)
			}
		}
	}

	list, err := h.contacts.List(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

// Create adds a contact by hand
func (h *ContactHandler) Create(c *fiber.Ctx) error {
	var in services.ContactInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}

	contact, err := h.contacts.Create(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(contact)
}

// Get retrieves a single contact by ID
func (h *ContactHandler) Get(c *fiber.Ctx) error {
	contact, err := h.contacts.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(contact)
}

// Update applies the fields present in the body
func (h *ContactHandler) Update(c *fiber.Ctx) error {
	var in services.ContactInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}

	contact, err := h.contacts.Update(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(contact)
}

// Delete deactivates a contact; its history is kept
func (h *ContactHandler) Delete(c *fiber.Ctx) error {
	if err := h.contacts.Deactivate(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
	})
}
