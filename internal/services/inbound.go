package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
	"github.com/Ananth-NQI/unibox-backend/internal/realtime"
)

// InboundResult is what the webhook handlers report back
type InboundResult struct {
	Message      *models.Message      `json:"message"`
	Conversation *models.Conversation `json:"conversation"`
	Contact      *models.Contact      `json:"contact"`
	Duplicate    bool                 `json:"duplicate"`
}

// InboundService runs a normalized event through contact resolution,
// conversation reconciliation and the ledger, then notifies live clients.
type InboundService struct {
	contacts      *ContactService
	conversations *ConversationReconciler
	ledger        *MessageLedger
	publisher     realtime.Publisher
	logger        *slog.Logger
}

func NewInboundService(contacts *ContactService, conversations *ConversationReconciler, ledger *MessageLedger, publisher realtime.Publisher, logger *slog.Logger) *InboundService {
	return &InboundService{
		contacts:      contacts,
		conversations: conversations,
		ledger:        ledger,
		publisher:     publisher,
		logger:        logger,
	}
}

// Process is safe to call any number of times for the same event. A redelivery
// changes nothing and reports Duplicate.
func (s *InboundService) Process(ctx context.Context, evt *InboundEvent) (*InboundResult, error) {
	log := s.logger.With("channel", evt.Channel, "external_id", evt.ExternalID)

	existing, err := s.ledger.FindDuplicate(ctx, evt.Channel, evt.ExternalID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Info("duplicate inbound message ignored", "message_id", existing.ID)
		return s.duplicateResult(ctx, existing)
	}

	contact, err := s.contacts.ResolveOrCreate(ctx, evt.From, evt.Channel)
	if err != nil {
		return nil, err
	}
	conv, err := s.conversations.Resolve(ctx, contact.ID, evt.Channel, evt.Timestamp)
	if err != nil {
		return nil, err
	}

	msg, duplicate, err := s.ledger.AppendInbound(ctx, conv.ID, evt)
	if err != nil {
		return nil, err
	}
	if duplicate {
		// Lost the race with a concurrent delivery of the same event.
		log.Info("duplicate inbound message ignored", "message_id", msg.ID)
		return &InboundResult{Message: msg, Conversation: conv, Contact: contact, Duplicate: true}, nil
	}

	conv, err = s.conversations.RecordActivity(ctx, conv.ID, evt.Timestamp, true)
	if err != nil {
		return nil, err
	}
	log.Info("inbound message stored", "message_id", msg.ID, "conversation_id", conv.ID)

	s.publish(ctx, realtime.Event{
		Type:         realtime.EventNewMessage,
		Message:      msg,
		Conversation: conv,
		Contact:      contact,
	})
	return &InboundResult{Message: msg, Conversation: conv, Contact: contact}, nil
}

func (s *InboundService) duplicateResult(ctx context.Context, msg *models.Message) (*InboundResult, error) {
	conv, err := s.conversations.store.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation for duplicate: %w", err)
	}
	return &InboundResult{Message: msg, Conversation: conv, Contact: conv.Contact, Duplicate: true}, nil
}

func (s *InboundService) publish(ctx context.Context, evt realtime.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("realtime publish failed", "type", evt.Type, "error", err)
	}
}
