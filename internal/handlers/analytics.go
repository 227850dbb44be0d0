package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
	"github.com/Ananth-NQI/unibox-backend/internal/services"
)

type AnalyticsHandler struct {
	analytics *services.AnalyticsService
}

func NewAnalyticsHandler(analytics *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
	}
}

// GetMetrics returns daily message counts, ?from= and ?to= as YYYY-MM-DD or RFC 3339
func (h *AnalyticsHandler) GetMetrics(c *fiber.Ctx) error {
	filter := models.MetricsFilter{Channel: models.Channel(c.Query("channel"))}

	var err error
	if filter.From, err = parseDate(c.Query("from")); err != nil {
		return badRequest(c, "Invalid from date")
	}
	if filter.To, err = parseDate(c.Query("to")); err != nil {
		return badRequest(c, "Invalid to date")
	}

	report, err := h.analytics.Metrics(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
