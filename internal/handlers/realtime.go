package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/Ananth-NQI/unibox-backend/internal/middleware"
	"github.com/Ananth-NQI/unibox-backend/internal/realtime"
)

// RealtimeHandler streams inbox events as server-sent events
type RealtimeHandler struct {
	hub       *realtime.Hub
	heartbeat time.Duration
	logger    *slog.Logger
}

func NewRealtimeHandler(hub *realtime.Hub, logger *slog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		hub:       hub,
		heartbeat: 25 * time.Second,
		logger:    logger,
	}
}

// Stream holds the connection open until the client goes away. A failed
// write is the only disconnect signal fasthttp gives a stream writer.
func (h *RealtimeHandler) Stream(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	streamID, events, cancel := h.hub.Subscribe(userID, realtime.DefaultBufferSize)
	log := h.logger.With("user_id", userID, "stream_id", streamID)
	log.Debug("realtime stream opened")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer func() {
			cancel()
			log.Debug("realtime stream closed")
		}()

		fmt.Fprintf(w, "event: connected\ndata: {\"streamId\":%q}\n\n", streamID)
		if err := w.Flush(); err != nil {
			return
		}

		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case evt, ok := <-events:
				if !ok {
					return
				}
				data, err := json.Marshal(evt)
				if err != nil {
					log.Error("failed to encode realtime event", "error", err)
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))
	return nil
}
