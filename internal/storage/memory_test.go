package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
)

func strPtr(s string) *string { return &s }

func TestMemoryFindOrCreateContactIsAtomic(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			match, err := store.FindOrCreateContact(ctx, models.ChannelSMS, "+15550001111",
				&models.Contact{Phone: strPtr("+15550001111"), IsActive: true})
			if !assert.NoError(t, err) {
				return
			}
			ids[i] = match.Contact.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	_, total, err := store.ListContacts(ctx, models.ContactFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestMemoryCreateContactRejectsDuplicates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.CreateContact(ctx, &models.Contact{Email: strPtr("a@example.com"), IsActive: true}))
	err := store.CreateContact(ctx, &models.Contact{Email: strPtr("a@example.com"), IsActive: true})
	assert.ErrorIs(t, err, ErrDuplicateContact)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemoryConversationPerContactAndChannel(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	contact := &models.Contact{Phone: strPtr("+15550002222"), IsActive: true}
	require.NoError(t, store.CreateContact(ctx, contact))

	first, created, err := store.FindOrCreateConversation(ctx, contact.ID, models.ChannelSMS, time.Now())
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := store.FindOrCreateConversation(ctx, contact.ID, models.ChannelSMS, time.Now())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	other, created, err := store.FindOrCreateConversation(ctx, contact.ID, models.ChannelWhatsApp, time.Now())
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)

	_, _, err = store.FindOrCreateConversation(ctx, "no-such-contact", models.ChannelSMS, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryInsertMessageDeduplicatesExternalID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	msg := func() *models.Message {
		return &models.Message{
			ConversationID: "conv-1",
			Content:        "hi",
			Channel:        models.ChannelSMS,
			Direction:      models.DirectionInbound,
			Status:         models.MessageStatusDelivered,
			ExternalID:     strPtr("SM1"),
		}
	}

	inserted, err := store.InsertMessage(ctx, msg())
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.InsertMessage(ctx, msg())
	require.NoError(t, err)
	assert.False(t, inserted)

	// The same provider id on another channel is a different message
	whatsapp := msg()
	whatsapp.Channel = models.ChannelWhatsApp
	inserted, err = store.InsertMessage(ctx, whatsapp)
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestMemoryScheduledTransitions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	past, future := now.Add(-time.Minute), now.Add(time.Hour)

	due := &models.Message{ConversationID: "c", Content: "due", Channel: models.ChannelSMS,
		Direction: models.DirectionOutbound, Status: models.MessageStatusScheduled, ScheduledFor: &past}
	later := &models.Message{ConversationID: "c", Content: "later", Channel: models.ChannelSMS,
		Direction: models.DirectionOutbound, Status: models.MessageStatusScheduled, ScheduledFor: &future}
	for _, m := range []*models.Message{due, later} {
		_, err := store.InsertMessage(ctx, m)
		require.NoError(t, err)
	}

	list, err := store.DueScheduledMessages(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, due.ID, list[0].ID)

	dueCount, futureCount, err := store.CountScheduledMessages(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dueCount)
	assert.Equal(t, int64(1), futureCount)

	require.NoError(t, store.CompleteScheduledMessage(ctx, due.ID, "SM9", now))
	assert.ErrorIs(t, store.CompleteScheduledMessage(ctx, due.ID, "SM9", now), ErrNotScheduled)
	assert.ErrorIs(t, store.FailScheduledMessage(ctx, due.ID, map[string]interface{}{"error": "x"}), ErrNotScheduled)
	assert.ErrorIs(t, store.CompleteScheduledMessage(ctx, "missing", "", now), ErrNotFound)

	sent, err := store.FindMessageByExternalID(ctx, models.ChannelSMS, "SM9")
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusSent, sent.Status)

	require.NoError(t, store.FailScheduledMessage(ctx, later.ID, map[string]interface{}{"error": "boom"}))
	failed, err := store.GetMessage(ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusFailed, failed.Status)
	assert.Equal(t, "boom", failed.Metadata["error"])
}

func TestMemoryDailyMetricsAccumulate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.IncrementDailyMetrics(ctx, day, models.ChannelEmail, models.DirectionInbound))
		}()
	}
	wg.Wait()
	require.NoError(t, store.IncrementDailyMetrics(ctx, day, models.ChannelEmail, models.DirectionOutbound))

	rows, err := store.ListDailyMetrics(ctx, models.MetricsFilter{From: day, To: day})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(10), rows[0].MessagesReceived)
	assert.Equal(t, int64(1), rows[0].MessagesSent)
}
