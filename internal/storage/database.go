package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
)

// DatabaseStore implements Store on PostgreSQL through gorm.
//
// Atomicity comes from the database: an advisory transaction lock plus partial
// unique indexes for contacts, ON CONFLICT for conversations, messages and
// metrics, and SQL-side arithmetic for counters.
type DatabaseStore struct {
	db *gorm.DB
}

var _ Store = (*DatabaseStore)(nil)

// NewDatabaseStore creates a store on an open gorm connection
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (s *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Contact operations

func (s *DatabaseStore) FindOrCreateContact(ctx context.Context, channel models.Channel, address string, seed *models.Contact) (*ContactMatch, error) {
	var match *ContactMatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serializes resolutions of the same address across processes.
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "contact:"+address).Error; err != nil {
			return fmt.Errorf("lock contact address: %w", err)
		}

		q := tx.Model(&models.Contact{})
		switch channel {
		case models.ChannelEmail:
			q = q.Where("email = ?", address)
		case models.ChannelSMS:
			q = q.Where("phone = ?", address)
		case models.ChannelWhatsApp:
			q = q.Where("(phone = ? OR whatsapp_number = ?)", address, address)
		default:
			return fmt.Errorf("unsupported channel %q for contact resolution", channel)
		}

		var candidates []*models.Contact
		if err := q.Order("is_active DESC").Order("created_at ASC").Order("id ASC").Find(&candidates).Error; err != nil {
			return fmt.Errorf("find contacts: %w", err)
		}
		if len(candidates) > 0 {
			match = &ContactMatch{Contact: candidates[0], Candidates: len(candidates)}
			return nil
		}

		if err := tx.Create(seed).Error; err != nil {
			return contactError(err)
		}
		match = &ContactMatch{Contact: seed, Created: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

func (s *DatabaseStore) CreateContact(ctx context.Context, contact *models.Contact) error {
	return contactError(s.db.WithContext(ctx).Create(contact).Error)
}

func (s *DatabaseStore) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	var contact models.Contact
	if err := s.db.WithContext(ctx).First(&contact, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &contact, nil
}

func (s *DatabaseStore) UpdateContact(ctx context.Context, contact *models.Contact) error {
	res := s.db.WithContext(ctx).Model(contact).
		Select("first_name", "last_name", "email", "phone", "whatsapp_number", "tags", "custom_fields", "is_active").
		Updates(contact)
	if res.Error != nil {
		return contactError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) DeactivateContact(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Contact{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) ListContacts(ctx context.Context, filter models.ContactFilter) ([]*models.Contact, int64, error) {
	scope := func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where("is_active = ?", true)
		if search := strings.TrimSpace(filter.Search); search != "" {
			like := "%" + escapeLike(search) + "%"
			tx = tx.Where("(first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ? OR phone ILIKE ?)", like, like, like, like)
		}
		if len(filter.Tags) > 0 {
			tx = tx.Where("tags && ?", pq.StringArray(filter.Tags))
		}
		return tx
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Contact{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}
	var contacts []*models.Contact
	err := s.db.WithContext(ctx).Scopes(scope).
		Order("updated_at DESC").
		Limit(clampLimit(filter.Limit, 50, 200)).
		Offset(max(filter.Offset, 0)).
		Find(&contacts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, total, nil
}

// Conversation operations

func (s *DatabaseStore) FindOrCreateConversation(ctx context.Context, contactID string, channel models.Channel, at time.Time) (*models.Conversation, bool, error) {
	db := s.db.WithContext(ctx)
	conv := &models.Conversation{ContactID: contactID, Channel: channel, LastMessageAt: at}
	res := db.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contact_id"}, {Name: "channel"}},
		DoNothing: true,
	}).Create(conv)
	if res.Error != nil {
		return nil, false, translateError(res.Error)
	}

	var existing models.Conversation
	err := db.Preload("Contact").First(&existing, "contact_id = ? AND channel = ?", contactID, channel).Error
	if err != nil {
		return nil, false, translateError(err)
	}
	return &existing, res.RowsAffected == 1, nil
}

func (s *DatabaseStore) RecordConversationActivity(ctx context.Context, id string, at time.Time, inbound bool) (*models.Conversation, error) {
	updates := map[string]interface{}{"last_message_at": at}
	if inbound {
		updates["unread_count"] = gorm.Expr("unread_count + 1")
	}
	res := s.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("record conversation activity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetConversation(ctx, id)
}

func (s *DatabaseStore) MarkConversationRead(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", id).Update("unread_count", 0)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) SetConversationStatus(ctx context.Context, id string, status models.ConversationStatus) error {
	res := s.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.WithContext(ctx).Preload("Contact").First(&conv, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &conv, nil
}

func (s *DatabaseStore) ListConversations(ctx context.Context, filter models.ConversationFilter) ([]*models.Conversation, int64, error) {
	scope := func(tx *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			tx = tx.Where("status = ?", filter.Status)
		}
		if filter.Channel != "" {
			tx = tx.Where("channel = ?", filter.Channel)
		}
		return tx
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Conversation{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}
	var convs []*models.Conversation
	err := s.db.WithContext(ctx).Scopes(scope).
		Preload("Contact").
		Order("last_message_at DESC").
		Limit(clampLimit(filter.Limit, 50, 200)).
		Offset(max(filter.Offset, 0)).
		Find(&convs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}
	return convs, total, nil
}

func (s *DatabaseStore) SearchConversations(ctx context.Context, query string, limit int) ([]*models.Conversation, error) {
	like := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	var convs []*models.Conversation
	err := s.db.WithContext(ctx).
		Preload("Contact").
		Joins("JOIN contacts ON contacts.id = conversations.contact_id").
		Where(`(contacts.first_name ILIKE ? OR contacts.last_name ILIKE ? OR contacts.email ILIKE ? OR contacts.phone ILIKE ?)
			OR EXISTS (SELECT 1 FROM messages WHERE messages.conversation_id = conversations.id AND messages.content ILIKE ?)`,
			like, like, like, like, like).
		Order("conversations.last_message_at DESC").
		Limit(clampLimit(limit, 20, 100)).
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("search conversations: %w", err)
	}
	return convs, nil
}

// Message operations

// InsertMessage writes msg and its attachments in one transaction. It returns
// false without error when a message with the same (channel, external id)
// already exists.
func (s *DatabaseStore) InsertMessage(ctx context.Context, msg *models.Message) (bool, error) {
	inserted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attachments := msg.Attachments
		res := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(msg)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		inserted = true

		if len(attachments) == 0 {
			return nil
		}
		for i := range attachments {
			attachments[i].MessageID = msg.ID
		}
		if err := tx.Create(&attachments).Error; err != nil {
			return fmt.Errorf("create attachments: %w", err)
		}
		msg.Attachments = attachments
		return nil
	})
	if err != nil {
		return false, translateError(err)
	}
	return inserted, nil
}

func (s *DatabaseStore) FindMessageByExternalID(ctx context.Context, channel models.Channel, externalID string) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).Preload("Attachments").
		First(&msg, "channel = ? AND external_id = ?", channel, externalID).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &msg, nil
}

func (s *DatabaseStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	if err := s.db.WithContext(ctx).Preload("Attachments").First(&msg, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &msg, nil
}

func (s *DatabaseStore) ListMessages(ctx context.Context, filter MessageFilter) ([]*models.Message, error) {
	var msgs []*models.Message
	err := s.db.WithContext(ctx).Preload("Attachments").
		Where("conversation_id = ?", filter.ConversationID).
		Order("created_at ASC").
		Limit(clampLimit(filter.Limit, 50, 500)).
		Offset(max(filter.Offset, 0)).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// Scheduled message operations

func (s *DatabaseStore) DueScheduledMessages(ctx context.Context, now time.Time, limit int) ([]*models.Message, error) {
	var msgs []*models.Message
	err := s.db.WithContext(ctx).Preload("Attachments").
		Where("status = ? AND scheduled_for <= ?", models.MessageStatusScheduled, now).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("select due messages: %w", err)
	}
	return msgs, nil
}

func (s *DatabaseStore) CompleteScheduledMessage(ctx context.Context, id, externalID string, deliveredAt time.Time) error {
	updates := map[string]interface{}{
		"status":       models.MessageStatusSent,
		"delivered_at": deliveredAt,
	}
	if externalID != "" {
		updates["external_id"] = externalID
	}
	return s.transitionScheduled(ctx, id, updates)
}

// FailScheduledMessage merges patch into the existing metadata server-side so
// earlier keys survive.
func (s *DatabaseStore) FailScheduledMessage(ctx context.Context, id string, patch map[string]interface{}) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode metadata patch: %w", err)
	}
	return s.transitionScheduled(ctx, id, map[string]interface{}{
		"status":   models.MessageStatusFailed,
		"metadata": gorm.Expr("COALESCE(metadata, '{}'::jsonb) || ?::jsonb", string(raw)),
	})
}

func (s *DatabaseStore) transitionScheduled(ctx context.Context, id string, updates map[string]interface{}) error {
	db := s.db.WithContext(ctx)
	res := db.Model(&models.Message{}).
		Where("id = ? AND status = ?", id, models.MessageStatusScheduled).
		Updates(updates)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := db.Model(&models.Message{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrNotScheduled
}

func (s *DatabaseStore) CountScheduledMessages(ctx context.Context, now time.Time) (int64, int64, error) {
	db := s.db.WithContext(ctx)
	var due, future int64
	if err := db.Model(&models.Message{}).
		Where("status = ? AND scheduled_for <= ?", models.MessageStatusScheduled, now).
		Count(&due).Error; err != nil {
		return 0, 0, err
	}
	if err := db.Model(&models.Message{}).
		Where("status = ? AND scheduled_for > ?", models.MessageStatusScheduled, now).
		Count(&future).Error; err != nil {
		return 0, 0, err
	}
	return due, future, nil
}

func (s *DatabaseStore) RecentlyProcessedMessages(ctx context.Context, since time.Time, limit int) ([]*models.Message, error) {
	var msgs []*models.Message
	err := s.db.WithContext(ctx).
		Where("scheduled_for IS NOT NULL AND status IN ? AND updated_at >= ?",
			[]models.MessageStatus{models.MessageStatusSent, models.MessageStatusFailed}, since).
		Order("updated_at DESC").
		Limit(clampLimit(limit, 10, 100)).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("recent processed messages: %w", err)
	}
	return msgs, nil
}

// Metrics operations

// IncrementDailyMetrics adds one to the (day, channel) counter for direction.
// The addition happens inside the upsert, never in Go.
func (s *DatabaseStore) IncrementDailyMetrics(ctx context.Context, day time.Time, channel models.Channel, direction models.Direction) error {
	row := models.DailyMetrics{Date: models.DayOf(day), Channel: channel}
	column := "messages_sent"
	if direction == models.DirectionInbound {
		column = "messages_received"
		row.MessagesReceived = 1
	} else {
		row.MessagesSent = 1
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}, {Name: "channel"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			column:       gorm.Expr("daily_metrics." + column + " + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("increment daily metrics: %w", err)
	}
	return nil
}

func (s *DatabaseStore) ListDailyMetrics(ctx context.Context, filter models.MetricsFilter) ([]*models.DailyMetrics, error) {
	q := s.db.WithContext(ctx).
		Where("date BETWEEN ? AND ?", models.DayOf(filter.From), models.DayOf(filter.To))
	if filter.Channel != "" {
		q = q.Where("channel = ?", filter.Channel)
	}
	var rows []*models.DailyMetrics
	if err := q.Order("date ASC").Order("channel ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list daily metrics: %w", err)
	}
	return rows, nil
}

// Note operations

func (s *DatabaseStore) CreateNote(ctx context.Context, note *models.Note) error {
	return translateError(s.db.WithContext(ctx).Create(note).Error)
}

func (s *DatabaseStore) GetNote(ctx context.Context, id string) (*models.Note, error) {
	var note models.Note
	if err := s.db.WithContext(ctx).First(&note, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &note, nil
}

func (s *DatabaseStore) UpdateNote(ctx context.Context, note *models.Note) error {
	res := s.db.WithContext(ctx).Model(note).Select("content", "is_private", "mentions").Updates(note)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) DeleteNote(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Note{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) ListNotes(ctx context.Context, filter models.NoteFilter) ([]*models.Note, int64, error) {
	scope := func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where("contact_id = ?", filter.ContactID)
		if !filter.IsAdmin {
			tx = tx.Where("(is_private = ? OR author_id = ?)", false, filter.ViewerID)
		}
		return tx
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Note{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}
	var notes []*models.Note
	err := s.db.WithContext(ctx).Scopes(scope).
		Order("created_at DESC").
		Limit(clampLimit(filter.Limit, 20, 100)).
		Offset(max(filter.Offset, 0)).
		Find(&notes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}
	return notes, total, nil
}

// translateError maps gorm errors onto the storage sentinels. It relies on
// the connection being opened with TranslateError enabled.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("referenced record missing: %w", ErrNotFound)
	}
	return err
}

func contactError(err error) error {
	err = translateError(err)
	if errors.Is(err, ErrConflict) {
		return ErrDuplicateContact
	}
	return err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
