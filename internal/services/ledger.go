package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
	"github.com/Ananth-NQI/unibox-backend/internal/storage"
)

// MessageLedger persists messages and keeps the daily counters in step with them
type MessageLedger struct {
	store  storage.Store
	logger *slog.Logger
}

func NewMessageLedger(store storage.Store, logger *slog.Logger) *MessageLedger {
	return &MessageLedger{store: store, logger: logger}
}

// FindDuplicate returns the stored message for (channel, externalID), or nil
func (l *MessageLedger) FindDuplicate(ctx context.Context, channel models.Channel, externalID string) (*models.Message, error) {
	if externalID == "" {
		return nil, nil
	}
	msg, err := l.store.FindMessageByExternalID(ctx, channel, externalID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find duplicate: %w", err)
	}
	return msg, nil
}

// AppendInbound records a received message. When the (channel, externalId)
// pair is already stored it returns the existing message with duplicate set,
// and nothing is written.
func (l *MessageLedger) AppendInbound(ctx context.Context, conversationID string, evt *InboundEvent) (*models.Message, bool, error) {
	meta := map[string]interface{}{
		"subject": evt.Subject,
		"from":    evt.From,
		"to":      evt.To,
	}
	for k, v := range evt.Metadata {
		meta[k] = v
	}

	msg := &models.Message{
		ConversationID: conversationID,
		Content:        evt.Content,
		Channel:        evt.Channel,
		Direction:      models.DirectionInbound,
		Status:         models.MessageStatusDelivered,
		ExternalID:     optionalString(evt.ExternalID),
		Metadata:       meta,
		CreatedAt:      evt.Timestamp,
		Attachments:    models.ToAttachments("", evt.Attachments),
	}

	inserted, err := l.store.InsertMessage(ctx, msg)
	if err != nil {
		return nil, false, fmt.Errorf("insert inbound message: %w", err)
	}
	if !inserted {
		existing, err := l.store.FindMessageByExternalID(ctx, evt.Channel, evt.ExternalID)
		if err != nil {
			return nil, true, fmt.Errorf("load duplicate message: %w", err)
		}
		return existing, true, nil
	}

	// The message is already committed; a lost counter must not fail the event.
	if err := l.store.IncrementDailyMetrics(ctx, evt.Timestamp, evt.Channel, models.DirectionInbound); err != nil {
		l.logger.Error("failed to count inbound message", "channel", evt.Channel, "message_id", msg.ID, "error", err)
	}
	return msg, false, nil
}

// OutboundRecord describes the outcome of one send attempt
type OutboundRecord struct {
	ConversationID string
	SenderID       string
	Content        string
	Channel        models.Channel
	Status         models.MessageStatus
	ExternalID     string
	Subject        string
	Error          string
	ScheduledFor   *time.Time
	Attachments    []models.AttachmentInput
	At             time.Time
}

// AppendOutbound persists a SENT, FAILED or SCHEDULED message. Only SENT
// messages count towards messagesSent.
func (l *MessageLedger) AppendOutbound(ctx context.Context, rec OutboundRecord) (*models.Message, error) {
	meta := map[string]interface{}{}
	if rec.Subject != "" {
		meta["subject"] = rec.Subject
	}
	if rec.Error != "" {
		meta["error"] = rec.Error
	}

	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	msg := &models.Message{
		ConversationID: rec.ConversationID,
		SenderID:       optionalString(rec.SenderID),
		Content:        rec.Content,
		Channel:        rec.Channel,
		Direction:      models.DirectionOutbound,
		Status:         rec.Status,
		ExternalID:     optionalString(rec.ExternalID),
		ScheduledFor:   rec.ScheduledFor,
		Metadata:       meta,
		CreatedAt:      at,
		Attachments:    models.ToAttachments("", rec.Attachments),
	}
	if rec.Status == models.MessageStatusSent {
		msg.DeliveredAt = &at
	}

	inserted, err := l.store.InsertMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("insert outbound message: %w", err)
	}
	if !inserted {
		return nil, fmt.Errorf("outbound message %s already recorded: %w", rec.ExternalID, storage.ErrConflict)
	}

	if rec.Status == models.MessageStatusSent {
		if err := l.store.IncrementDailyMetrics(ctx, at, rec.Channel, models.DirectionOutbound); err != nil {
			l.logger.Error("failed to count sent message", "channel", rec.Channel, "message_id", msg.ID, "error", err)
		}
	}
	return msg, nil
}

// RecordScheduledSent counts a scheduled message that went out
func (l *MessageLedger) RecordScheduledSent(ctx context.Context, channel models.Channel, at time.Time) error {
	return l.store.IncrementDailyMetrics(ctx, at, channel, models.DirectionOutbound)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
