package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/unibox-backend/internal/lock"
	"github.com/Ananth-NQI/unibox-backend/internal/logger"
	"github.com/Ananth-NQI/unibox-backend/internal/models"
	"github.com/Ananth-NQI/unibox-backend/internal/realtime"
	"github.com/Ananth-NQI/unibox-backend/internal/storage"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, d Delivery) (string, error) {
	args := m.Called(ctx, d)
	return args.String(0), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, evt realtime.Event) error {
	return m.Called(ctx, evt).Error(0)
}

type panicSender struct{}

func (panicSender) Send(ctx context.Context, d Delivery) (string, error) {
	panic("provider exploded")
}

// faultyStore fails selected writes on top of a working MemoryStore
type faultyStore struct {
	*storage.MemoryStore
	conversationErr error
	completeErr     error
}

func (f *faultyStore) FindOrCreateConversation(ctx context.Context, contactID string, channel models.Channel, at time.Time) (*models.Conversation, bool, error) {
	if f.conversationErr != nil {
		return nil, false, f.conversationErr
	}
	return f.MemoryStore.FindOrCreateConversation(ctx, contactID, channel, at)
}

func (f *faultyStore) CompleteScheduledMessage(ctx context.Context, id, externalID string, deliveredAt time.Time) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	return f.MemoryStore.CompleteScheduledMessage(ctx, id, externalID, deliveredAt)
}

type testEnv struct {
	store         *storage.MemoryStore
	contacts      *ContactService
	conversations *ConversationReconciler
	ledger        *MessageLedger
	inbound       *InboundService
	senders       *SenderRegistry
	dispatcher    *Dispatcher
	processor     *ScheduledProcessor
	locker        *lock.LocalLocker
	publisher     realtime.Publisher
}

func newTestEnv(t *testing.T, publisher realtime.Publisher) *testEnv {
	t.Helper()
	if publisher == nil {
		publisher = realtime.NewHub()
	}
	log := logger.Discard()
	store := storage.NewMemoryStore()
	contacts := NewContactService(store, log)
	conversations := NewConversationReconciler(store)
	ledger := NewMessageLedger(store, log)
	senders := NewSenderRegistry()
	locker := lock.NewLocalLocker()
	return &testEnv{
		store:         store,
		contacts:      contacts,
		conversations: conversations,
		ledger:        ledger,
		inbound:       NewInboundService(contacts, conversations, ledger, publisher, log),
		senders:       senders,
		dispatcher:    NewDispatcher(store, conversations, ledger, senders, log),
		processor:     NewScheduledProcessor(store, conversations, ledger, senders, locker, 50, time.Minute, log),
		locker:        locker,
		publisher:     publisher,
	}
}

func (e *testEnv) createContact(t *testing.T, c *models.Contact) *models.Contact {
	t.Helper()
	c.IsActive = true
	require.NoError(t, e.store.CreateContact(context.Background(), c))
	return c
}

func (e *testEnv) metricsFor(t *testing.T, day time.Time, channel models.Channel) *models.DailyMetrics {
	t.Helper()
	rows, err := e.store.ListDailyMetrics(context.Background(), models.MetricsFilter{From: day, To: day, Channel: channel})
	require.NoError(t, err)
	if len(rows) == 0 {
		return &models.DailyMetrics{}
	}
	require.Len(t, rows, 1)
	return rows[0]
}

func strPtr(s string) *string { return &s }
