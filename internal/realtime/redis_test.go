package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/unibox-backend/internal/logger"
	"github.com/Ananth-NQI/unibox-backend/internal/models"
)

func TestRedisBrokerRelaysIntoHub(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hub := NewHub()
	_, events, cancelSub := hub.Subscribe("agent-1", 4)
	defer cancelSub()

	broker := NewRedisBroker(client, "unibox:events", hub, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- broker.Run(ctx) }()

	select {
	case <-broker.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("relay never subscribed")
	}

	evt := Event{
		Type:    EventNewMessage,
		Message: &models.Message{ID: "m-42", Content: "hello"},
		Contact: &models.Contact{ID: "c-1"},
	}
	require.NoError(t, broker.Publish(ctx, evt))

	select {
	case got := <-events:
		assert.Equal(t, EventNewMessage, got.Type)
		require.NotNil(t, got.Message)
		assert.Equal(t, "m-42", got.Message.ID)
		assert.Equal(t, "hello", got.Message.Content)
		assert.Equal(t, "c-1", got.Contact.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not relayed")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestRedisBrokerPublishFailsWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	broker := NewRedisBroker(client, "unibox:events", NewHub(), logger.Discard())
	err := broker.Publish(context.Background(), Event{Type: EventNewMessage})
	assert.Error(t, err)
}
