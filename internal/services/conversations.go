package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
	"github.com/Ananth-NQI/unibox-backend/internal/storage"
)

// ConversationReconciler keeps one conversation per (contact, channel) and
// maintains its activity time and unread count.
type ConversationReconciler struct {
	store storage.Store
}

func NewConversationReconciler(store storage.Store) *ConversationReconciler {
	return &ConversationReconciler{store: store}
}

// Resolve returns the conversation for (contactID, channel), creating it with
// lastMessageAt = ts and no unread messages if needed.
func (r *ConversationReconciler) Resolve(ctx context.Context, contactID string, channel models.Channel, ts time.Time) (*models.Conversation, error) {
	conv, _, err := r.store.FindOrCreateConversation(ctx, contactID, channel, ts)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}
	return conv, nil
}

// RecordActivity sets lastMessageAt to ts and bumps the unread count for inbound messages
func (r *ConversationReconciler) RecordActivity(ctx context.Context, conversationID string, ts time.Time, inbound bool) (*models.Conversation, error) {
	conv, err := r.store.RecordConversationActivity(ctx, conversationID, ts, inbound)
	if err != nil {
		return nil, fmt.Errorf("record activity: %w", err)
	}
	return conv, nil
}

// Reconcile resolves the conversation and records one message of activity on it
func (r *ConversationReconciler) Reconcile(ctx context.Context, contactID string, channel models.Channel, ts time.Time, inbound bool) (*models.Conversation, error) {
	conv, err := r.Resolve(ctx, contactID, channel, ts)
	if err != nil {
		return nil, err
	}
	return r.RecordActivity(ctx, conv.ID, ts, inbound)
}

// MarkAsRead zeroes the unread count. Calling it twice is harmless.
func (r *ConversationReconciler) MarkAsRead(ctx context.Context, conversationID string) error {
	return r.store.MarkConversationRead(ctx, conversationID)
}

// Search matches contact names and addresses or message content, most recent first
func (r *ConversationReconciler) Search(ctx context.Context, query string, limit int) ([]*models.Conversation, error) {
	if strings.TrimSpace(query) == "" {
		return []*models.Conversation{}, nil
	}
	return r.store.SearchConversations(ctx, query, limit)
}

// ConversationList is one page of conversations
type ConversationList struct {
	Conversations []*models.Conversation `json:"conversations"`
	Total         int64                  `json:"total"`
	HasMore       bool                   `json:"hasMore"`
}

func (r *ConversationReconciler) List(ctx context.Context, filter models.ConversationFilter) (*ConversationList, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", filter.Status)}
	}
	if filter.Channel != "" && !filter.Channel.Valid() {
		return nil, &ValidationError{Field: "channel", Message: fmt.Sprintf("unknown channel %q", filter.Channel)}
	}
	convs, total, err := r.store.ListConversations(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ConversationList{
		Conversations: convs,
		Total:         total,
		HasMore:       int64(max(filter.Offset, 0)+len(convs)) < total,
	}, nil
}

// SetStatus archives, snoozes or reactivates a conversation
func (r *ConversationReconciler) SetStatus(ctx context.Context, conversationID string, status models.ConversationStatus) (*models.Conversation, error) {
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	if err := r.store.SetConversationStatus(ctx, conversationID, status); err != nil {
		return nil, err
	}
	return r.store.GetConversation(ctx, conversationID)
}

// Details returns the conversation with its contact and messages in chronological order
func (r *ConversationReconciler) Details(ctx context.Context, conversationID string, limit, offset int) (*models.Conversation, error) {
	conv, err := r.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	msgs, err := r.store.ListMessages(ctx, storage.MessageFilter{
		ConversationID: conversationID,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		return nil, err
	}
	conv.Messages = make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		conv.Messages = append(conv.Messages, *m)
	}
	return conv, nil
}
