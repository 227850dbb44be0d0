package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
	"github.com/Ananth-NQI/unibox-backend/internal/storage"
)

// SendStatus is the outcome reported to API callers
type SendStatus string

const (
	SendStatusSent      SendStatus = "sent"
	SendStatusFailed    SendStatus = "failed"
	SendStatusScheduled SendStatus = "scheduled"
)

// SendRequest is an operator's request to message a contact
type SendRequest struct {
	ContactID    string                   `json:"contactId"`
	Channel      models.Channel           `json:"channel"`
	Content      string                   `json:"content"`
	Subject      string                   `json:"subject,omitempty"`
	Attachments  []models.AttachmentInput `json:"attachments,omitempty"`
	ScheduledFor *time.Time               `json:"scheduledFor,omitempty"`
	SenderID     string                   `json:"-"`
}

// SendResult describes what happened to a send request
type SendResult struct {
	Message    *models.Message `json:"message"`
	Status     SendStatus      `json:"status"`
	ExternalID string          `json:"externalId,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Dispatcher sends operator messages through the channel senders and records them
type Dispatcher struct {
	store         storage.Store
	conversations *ConversationReconciler
	ledger        *MessageLedger
	senders       *SenderRegistry
	logger        *slog.Logger
	now           func() time.Time
}

func NewDispatcher(store storage.Store, conversations *ConversationReconciler, ledger *MessageLedger, senders *SenderRegistry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:         store,
		conversations: conversations,
		ledger:        ledger,
		senders:       senders,
		logger:        logger,
		now:           time.Now,
	}
}

// Send delivers req now, or records it for later when ScheduledFor is in the
// future. A contact without an address on the channel fails before anything
// is written. Provider failures are recorded as FAILED messages and reported
// in the result, not as an error.
func (d *Dispatcher) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, &ValidationError{Field: "content", Message: "is required"}
	}
	if !req.Channel.Valid() {
		return nil, &ValidationError{Field: "channel", Message: fmt.Sprintf("unsupported channel %q", req.Channel)}
	}
	if req.ContactID == "" {
		return nil, &ValidationError{Field: "contactId", Message: "is required"}
	}

	contact, err := d.store.GetContact(ctx, req.ContactID)
	if err != nil {
		return nil, err
	}
	now := d.now()

	if req.ScheduledFor != nil && req.ScheduledFor.After(now) {
		return d.schedule(ctx, req, now)
	}

	to, err := RecipientAddress(contact, req.Channel)
	if err != nil {
		return nil, err
	}

	// The thread must exist before the provider is called, otherwise a send
	// could succeed with nowhere to record it.
	conv, err := d.conversations.Resolve(ctx, contact.ID, req.Channel, now)
	if err != nil {
		return nil, err
	}

	log := d.logger.With("channel", req.Channel, "contact_id", contact.ID)
	externalID, sendErr := d.senders.Deliver(ctx, req.Channel, Delivery{
		To:          to,
		Content:     req.Content,
		Subject:     req.Subject,
		Attachments: req.Attachments,
	})

	rec := OutboundRecord{
		ConversationID: conv.ID,
		SenderID:       req.SenderID,
		Content:        req.Content,
		Channel:        req.Channel,
		Status:         models.MessageStatusSent,
		ExternalID:     externalID,
		Subject:        req.Subject,
		Attachments:    req.Attachments,
		At:             now,
	}
	if sendErr != nil {
		log.Warn("outbound send failed", "error", sendErr)
		rec.Status = models.MessageStatusFailed
		rec.ExternalID = ""
		rec.Error = sendErr.Error()
	}

	msg, err := d.ledger.AppendOutbound(ctx, rec)
	if err != nil {
		return nil, err
	}
	if _, err := d.conversations.RecordActivity(ctx, conv.ID, now, false); err != nil {
		return nil, err
	}

	if sendErr != nil {
		return &SendResult{Message: msg, Status: SendStatusFailed, Error: sendErr.Error()}, nil
	}
	log.Info("outbound message sent", "message_id", msg.ID, "external_id", externalID)
	return &SendResult{Message: msg, Status: SendStatusSent, ExternalID: externalID}, nil
}

func (d *Dispatcher) schedule(ctx context.Context, req SendRequest, now time.Time) (*SendResult, error) {
	conv, err := d.conversations.Resolve(ctx, req.ContactID, req.Channel, now)
	if err != nil {
		return nil, err
	}
	at := req.ScheduledFor.UTC()
	msg, err := d.ledger.AppendOutbound(ctx, OutboundRecord{
		ConversationID: conv.ID,
		SenderID:       req.SenderID,
		Content:        req.Content,
		Channel:        req.Channel,
		Status:         models.MessageStatusScheduled,
		Subject:        req.Subject,
		ScheduledFor:   &at,
		Attachments:    req.Attachments,
		At:             now,
	})
	if err != nil {
		return nil, err
	}
	d.logger.Info("outbound message scheduled", "message_id", msg.ID, "scheduled_for", at)
	return &SendResult{Message: msg, Status: SendStatusScheduled}, nil
}

// ReplyRequest answers within an existing conversation
type ReplyRequest struct {
	Content      string                   `json:"content"`
	Subject      string                   `json:"subject,omitempty"`
	Attachments  []models.AttachmentInput `json:"attachments,omitempty"`
	ScheduledFor *time.Time               `json:"scheduledFor,omitempty"`
}

// Reply sends on the conversation's own channel to its contact
func (d *Dispatcher) Reply(ctx context.Context, conversationID, senderID string, req ReplyRequest) (*SendResult, error) {
	conv, err := d.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return d.Send(ctx, SendRequest{
		ContactID:    conv.ContactID,
		Channel:      conv.Channel,
		Content:      req.Content,
		Subject:      req.Subject,
		Attachments:  req.Attachments,
		ScheduledFor: req.ScheduledFor,
		SenderID:     senderID,
	})
}
