package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	Version string
	store   Pinger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, store Pinger) *HealthHandler {
	return &HealthHandler{
		Version: version,
		store:   store,
	}
}

// Status describes the service without touching dependencies
func (h *HealthHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "OK",
		"service": "UniBox Backend",
		"version": h.Version,
	})
}

// Check returns the health status of the service, 503 when the store is down
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "UNAVAILABLE",
			"service":  "UniBox Backend",
			"version":  h.Version,
			"database": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status":   "OK",
		"service":  "UniBox Backend",
		"version":  h.Version,
		"database": "connected",
	})
}
