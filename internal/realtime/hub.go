// Package realtime fans inbox events out to connected clients.
package realtime

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
)

// DefaultBufferSize is the default per-subscriber channel buffer
const DefaultBufferSize = 64

// EventType identifies the kind of inbox event
type EventType string

const (
	// EventNewMessage is published after an inbound message is persisted
	EventNewMessage EventType = "new_message"
)

// Event is the payload delivered to subscribers
type Event struct {
	Type         EventType            `json:"type"`
	Message      *models.Message      `json:"message,omitempty"`
	Conversation *models.Conversation `json:"conversation,omitempty"`
	Contact      *models.Contact      `json:"contact,omitempty"`
}

// Publisher accepts events for delivery. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Hub is an in-process pub/sub dispatcher keyed by user ID. It only reaches
// clients connected to this process; RedisBroker bridges processes.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]map[string]chan Event
}

var _ Publisher = (*Hub)(nil)

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{streams: map[string]map[string]chan Event{}}
}

// Publish broadcasts evt to every subscriber. Slow subscribers miss the
// event instead of blocking the caller.
func (h *Hub) Publish(ctx context.Context, evt Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, streams := range h.streams {
		for _, ch := range streams {
			select {
			case ch <- evt:
			default:
			}
		}
	}
	return nil
}

// Subscribe registers a stream for userID. It returns the stream ID, the
// event channel and a cancel func that is safe to call more than once.
func (h *Hub) Subscribe(userID string, buffer int) (string, <-chan Event, func()) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		ch := make(chan Event)
		close(ch)
		return "", ch, func() {}
	}
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}

	streamID := uuid.NewString()
	ch := make(chan Event, buffer)

	h.mu.Lock()
	streams, ok := h.streams[userID]
	if !ok {
		streams = map[string]chan Event{}
		h.streams[userID] = streams
	}
	streams[streamID] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			streams := h.streams[userID]
			if current, ok := streams[streamID]; ok {
				delete(streams, streamID)
				close(current)
			}
			if len(streams) == 0 {
				delete(h.streams, userID)
			}
		})
	}
	return streamID, ch, cancel
}

// Subscribers returns the number of open streams
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, streams := range h.streams {
		n += len(streams)
	}
	return n
}
