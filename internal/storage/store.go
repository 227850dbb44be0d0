package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a unique constraint
	ErrConflict = errors.New("record already exists")
	// ErrDuplicateContact is returned when an email, phone or WhatsApp number is already taken
	ErrDuplicateContact = fmt.Errorf("contact with this email or phone already exists: %w", ErrConflict)
	// ErrNotScheduled is returned when a scheduled transition finds the message already moved on
	ErrNotScheduled = errors.New("message is no longer scheduled")
)

// ContactMatch is the outcome of an atomic find-or-create
type ContactMatch struct {
	Contact *models.Contact
	Created bool
	// Candidates is how many existing contacts matched the address
	Candidates int
}

// MessageFilter pages through a conversation's messages in chronological order
type MessageFilter struct {
	ConversationID string
	Limit          int
	Offset         int
}

// Store defines the interface for storage operations.
//
// Every method that decides between "existing" and "new" is atomic in the
// implementation, never read-then-write in callers.
type Store interface {
	// Contact operations
	FindOrCreateContact(ctx context.Context, channel models.Channel, address string, seed *models.Contact) (*ContactMatch, error)
	CreateContact(ctx context.Context, contact *models.Contact) error
	GetContact(ctx context.Context, id string) (*models.Contact, error)
	UpdateContact(ctx context.Context, contact *models.Contact) error
	DeactivateContact(ctx context.Context, id string) error
	ListContacts(ctx context.Context, filter models.ContactFilter) ([]*models.Contact, int64, error)

	// Conversation operations
	FindOrCreateConversation(ctx context.Context, contactID string, channel models.Channel, at time.Time) (*models.Conversation, bool, error)
	RecordConversationActivity(ctx context.Context, id string, at time.Time, inbound bool) (*models.Conversation, error)
	MarkConversationRead(ctx context.Context, id string) error
	SetConversationStatus(ctx context.Context, id string, status models.ConversationStatus) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context, filter models.ConversationFilter) ([]*models.Conversation, int64, error)
	SearchConversations(ctx context.Context, query string, limit int) ([]*models.Conversation, error)

	// Message operations
	InsertMessage(ctx context.Context, msg *models.Message) (bool, error)
	FindMessageByExternalID(ctx context.Context, channel models.Channel, externalID string) (*models.Message, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, filter MessageFilter) ([]*models.Message, error)

	// Scheduled message operations
	DueScheduledMessages(ctx context.Context, now time.Time, limit int) ([]*models.Message, error)
	CompleteScheduledMessage(ctx context.Context, id, externalID string, deliveredAt time.Time) error
	FailScheduledMessage(ctx context.Context, id string, patch map[string]interface{}) error
	CountScheduledMessages(ctx context.Context, now time.Time) (due int64, future int64, err error)
	RecentlyProcessedMessages(ctx context.Context, since time.Time, limit int) ([]*models.Message, error)

	// Metrics operations
	IncrementDailyMetrics(ctx context.Context, day time.Time, channel models.Channel, direction models.Direction) error
	ListDailyMetrics(ctx context.Context, filter models.MetricsFilter) ([]*models.DailyMetrics, error)

	// Note operations
	CreateNote(ctx context.Context, note *models.Note) error
	GetNote(ctx context.Context, id string) (*models.Note, error)
	UpdateNote(ctx context.Context, note *models.Note) error
	DeleteNote(ctx context.Context, id string) error
	ListNotes(ctx context.Context, filter models.NoteFilter) ([]*models.Note, int64, error)

	Ping(ctx context.Context) error
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
