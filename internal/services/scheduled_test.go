package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/unibox-backend/internal/logger"
	"github.com/Ananth-NQI/unibox-backend/internal/models"
)

func scheduleMessage(t *testing.T, env *testEnv, contact *models.Contact, channel models.Channel, content string, at time.Time) *models.Message {
	t.Helper()
	ctx := context.Background()
	conv, err := env.conversations.Resolve(ctx, contact.ID, channel, time.Now())
	require.NoError(t, err)
	msg, err := env.ledger.AppendOutbound(ctx, OutboundRecord{
		ConversationID: conv.ID,
		Content:        content,
		Channel:        channel,
		Status:         models.MessageStatusScheduled,
		Subject:        "Scheduled",
		ScheduledFor:   &at,
	})
	require.NoError(t, err)
	return msg
}

func TestProcessDueSendsOnlyDueMessages(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	sender := &mockSender{}
	env.senders.Register(models.ChannelSMS, sender)
	contact := env.createContact(t, &models.Contact{Phone: strPtr("+15551110000")})

	due := scheduleMessage(t, env, contact, models.ChannelSMS, "due", time.Now().Add(-time.Minute))
	future := scheduleMessage(t, env, contact, models.ChannelSMS, "future", time.Now().Add(time.Hour))

	sender.On("Send", mock.Anything, Delivery{To: "+15551110000", Content: "due", Subject: "Scheduled"}).
		Return("SM-sched-1", nil).Once()

	result, err := env.processor.ProcessDue(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.ProcessedCount)
	require.Len(t, result.Results, 1)
	assert.Equal(t, ProcessOutcome{
		MessageID: due.ID,
		Status:    OutcomeSent,
		Channel:   models.ChannelSMS,
		Recipient: "+15551110000",
	}, result.Results[0])

	sent, err := env.store.GetMessage(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusSent, sent.Status)
	assert.Equal(t, "SM-sched-1", *sent.ExternalID)
	assert.NotNil(t, sent.DeliveredAt)

	pending, err := env.store.GetMessage(ctx, future.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusScheduled, pending.Status)

	assert.Equal(t, int64(1), env.metricsFor(t, time.Now(), models.ChannelSMS).MessagesSent)

	// Nothing left to do on a second run.
	result, err = env.processor.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.ProcessedCount)
	sender.AssertExpectations(t)
}

func TestProcessDueFailuresMergeMetadata(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.Anything).Return("", errors.New("carrier rejected"))
	env.senders.Register(models.ChannelSMS, sender)

	withPhone := env.createContact(t, &models.Contact{Phone: strPtr("+15551112222")})
	emailOnly := env.createContact(t, &models.Contact{Email: strPtr("only@mail.com")})

	rejected := scheduleMessage(t, env, withPhone, models.ChannelSMS, "a", time.Now().Add(-2*time.Minute))
	noPhone := scheduleMessage(t, env, emailOnly, models.ChannelSMS, "b", time.Now().Add(-time.Minute))

	result, err := env.processor.ProcessDue(ctx)
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	assert.Equal(t, rejected.ID, result.Results[0].MessageID)
	assert.Equal(t, OutcomeFailed, result.Results[0].Status)
	assert.Equal(t, "carrier rejected", result.Results[0].Error)
	assert.Equal(t, noPhone.ID, result.Results[1].MessageID)
	assert.Equal(t, OutcomeFailed, result.Results[1].Status)
	assert.Equal(t, ErrNoPhoneNumber.Error(), result.Results[1].Error)

	failed, err := env.store.GetMessage(ctx, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusFailed, failed.Status)
	assert.Equal(t, "carrier rejected", failed.Metadata["error"])
	assert.NotEmpty(t, failed.Metadata["failedAt"])
	assert.Equal(t, "Scheduled", failed.Metadata["subject"])

	assert.Zero(t, env.metricsFor(t, time.Now(), models.ChannelSMS).MessagesSent)
}

func TestProcessDueSingleBatchAtATime(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	lease, ok, err := env.locker.TryAcquire(ctx, scheduledLockName, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = env.processor.ProcessDue(ctx)
	assert.ErrorIs(t, err, ErrBatchInProgress)

	require.NoError(t, lease.Release(ctx))
	_, err = env.processor.ProcessDue(ctx)
	assert.NoError(t, err)
}

func TestProcessDueRespectsBatchSize(t *testing.T) {
	env := newTestEnv(t, nil)
	env.processor.batchSize = 2
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.Anything).Return("", nil)
	env.senders.Register(models.ChannelSMS, sender)
	contact := env.createContact(t, &models.Contact{Phone: strPtr("+15551113333")})

	for i := 0; i < 3; i++ {
		scheduleMessage(t, env, contact, models.ChannelSMS, "m", time.Now().Add(-time.Duration(i+1)*time.Minute))
	}

	result, err := env.processor.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.ProcessedCount)

	status, err := env.processor.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.PendingMessages)
	assert.Zero(t, status.FutureMessages)
	assert.Len(t, status.RecentProcessed, 2)
}

func TestProcessDueParksMessageWhenCompletionIsNotRecorded(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.Anything).Return("SM-sched-9", nil).Once()
	env.senders.Register(models.ChannelSMS, sender)
	contact := env.createContact(t, &models.Contact{Phone: strPtr("+15551113333")})
	due := scheduleMessage(t, env, contact, models.ChannelSMS, "due", time.Now().Add(-time.Minute))

	faulty := &faultyStore{MemoryStore: env.store, completeErr: errors.New("connection reset")}
	processor := NewScheduledProcessor(faulty, env.conversations, env.ledger, env.senders, env.locker, 50, time.Minute, logger.Discard())

	result, err := processor.ProcessDue(ctx)
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, OutcomeFailed, result.Results[0].Status)
	assert.Contains(t, result.Results[0].Error, "connection reset")

	parked, err := env.store.GetMessage(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusFailed, parked.Status)
	assert.Equal(t, "SM-sched-9", parked.Metadata["externalId"])
	assert.NotEmpty(t, parked.Metadata["failedAt"])

	// A second tick must not deliver it again.
	result, err = processor.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.ProcessedCount)
	sender.AssertExpectations(t)
}
