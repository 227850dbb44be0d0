package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ananth-NQI/unibox-backend/internal/lock"
	"github.com/Ananth-NQI/unibox-backend/internal/models"
	"github.com/Ananth-NQI/unibox-backend/internal/storage"
)

const scheduledLockName = "scheduled-messages"

// Outcome values reported per message
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// ProcessOutcome reports what happened to one due message
type ProcessOutcome struct {
	MessageID string         `json:"messageId"`
	Status    string         `json:"status"`
	Channel   models.Channel `json:"channel"`
	Recipient string         `json:"recipient,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// ProcessResult summarizes one batch run
type ProcessResult struct {
	Success        bool             `json:"success"`
	ProcessedCount int              `json:"processedCount"`
	Results        []ProcessOutcome `json:"results"`
}

// ScheduledStatus is a snapshot of the scheduled queue
type ScheduledStatus struct {
	PendingMessages int64             `json:"pendingMessages"`
	FutureMessages  int64             `json:"futureMessages"`
	RecentProcessed []*models.Message `json:"recentProcessed"`
}

// ScheduledProcessor sends scheduled messages once they fall due
type ScheduledProcessor struct {
	store         storage.Store
	conversations *ConversationReconciler
	ledger        *MessageLedger
	senders       *SenderRegistry
	locker        lock.Locker
	batchSize     int
	lockTTL       time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

func NewScheduledProcessor(store storage.Store, conversations *ConversationReconciler, ledger *MessageLedger, senders *SenderRegistry, locker lock.Locker, batchSize int, lockTTL time.Duration, logger *slog.Logger) *ScheduledProcessor {
	if batchSize <= 0 {
		batchSize = 50
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &ScheduledProcessor{
		store:         store,
		conversations: conversations,
		ledger:        ledger,
		senders:       senders,
		locker:        locker,
		batchSize:     batchSize,
		lockTTL:       lockTTL,
		logger:        logger,
		now:           time.Now,
	}
}

// ProcessDue sends up to one batch of due messages, oldest first. Only one
// batch runs at a time; a concurrent call gets ErrBatchInProgress. Each
// message succeeds or fails on its own.
func (p *ScheduledProcessor) ProcessDue(ctx context.Context) (*ProcessResult, error) {
	lease, ok, err := p.locker.TryAcquire(ctx, scheduledLockName, p.lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBatchInProgress
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			p.logger.Warn("failed to release scheduled lock", "error", err)
		}
	}()

	due, err := p.store.DueScheduledMessages(ctx, p.now(), p.batchSize)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{Success: true, Results: make([]ProcessOutcome, 0, len(due))}
	for _, msg := range due {
		result.Results = append(result.Results, p.processOne(ctx, msg))
	}
	result.ProcessedCount = len(result.Results)

	if len(due) > 0 {
		p.logger.Info("processed scheduled messages", "count", result.ProcessedCount)
	}
	return result, nil
}

func (p *ScheduledProcessor) processOne(ctx context.Context, msg *models.Message) ProcessOutcome {
	out := ProcessOutcome{MessageID: msg.ID, Channel: msg.Channel}
	log := p.logger.With("message_id", msg.ID, "channel", msg.Channel)

	conv, err := p.store.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return p.fail(ctx, out, fmt.Sprintf("load conversation: %v", err))
	}
	if conv.Contact == nil {
		return p.fail(ctx, out, "conversation has no contact")
	}
	to, err := RecipientAddress(conv.Contact, msg.Channel)
	if err != nil {
		return p.fail(ctx, out, err.Error())
	}
	out.Recipient = to

	subject, _ := msg.Metadata["subject"].(string)
	externalID, err := p.senders.Deliver(ctx, msg.Channel, Delivery{
		To:          to,
		Content:     msg.Content,
		Subject:     subject,
		Attachments: attachmentInputs(msg.Attachments),
	})
	if err != nil {
		log.Warn("scheduled send failed", "error", err)
		return p.fail(ctx, out, err.Error())
	}

	sentAt := p.now()
	if err := p.store.CompleteScheduledMessage(ctx, msg.ID, externalID, sentAt); err != nil {
		if errors.Is(err, storage.ErrNotScheduled) {
			out.Status = OutcomeSkipped
			return out
		}
		// Leaving the row SCHEDULED would send it again on the next tick.
		log.Error("sent but could not record scheduled message, parking it as failed",
			"external_id", externalID, "error", err)
		return p.failWith(ctx, out, fmt.Sprintf("sent but not recorded: %v", err), map[string]interface{}{
			"externalId": externalID,
		})
	}

	if _, err := p.conversations.RecordActivity(ctx, conv.ID, sentAt, false); err != nil {
		log.Warn("failed to record conversation activity", "conversation_id", conv.ID, "error", err)
	}
	if err := p.ledger.RecordScheduledSent(ctx, msg.Channel, sentAt); err != nil {
		log.Warn("failed to count scheduled message", "error", err)
	}
	out.Status = OutcomeSent
	return out
}

func (p *ScheduledProcessor) fail(ctx context.Context, out ProcessOutcome, reason string) ProcessOutcome {
	return p.failWith(ctx, out, reason, nil)
}

func (p *ScheduledProcessor) failWith(ctx context.Context, out ProcessOutcome, reason string, extra map[string]interface{}) ProcessOutcome {
	patch := map[string]interface{}{
		"error":    reason,
		"failedAt": p.now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		patch[k] = v
	}
	err := p.store.FailScheduledMessage(ctx, out.MessageID, patch)
	switch {
	case errors.Is(err, storage.ErrNotScheduled):
		out.Status = OutcomeSkipped
		return out
	case err != nil:
		p.logger.Error("failed to mark scheduled message failed", "message_id", out.MessageID, "error", err)
	}
	out.Status = OutcomeFailed
	out.Error = reason
	return out
}

// Status counts due and future scheduled messages and lists those processed in the last day
func (p *ScheduledProcessor) Status(ctx context.Context) (*ScheduledStatus, error) {
	now := p.now()
	due, future, err := p.store.CountScheduledMessages(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("count scheduled messages: %w", err)
	}
	recent, err := p.store.RecentlyProcessedMessages(ctx, now.Add(-24*time.Hour), 10)
	if err != nil {
		return nil, err
	}
	return &ScheduledStatus{PendingMessages: due, FutureMessages: future, RecentProcessed: recent}, nil
}

func attachmentInputs(rows []models.MessageAttachment) []models.AttachmentInput {
	if len(rows) == 0 {
		return nil
	}
	out := make([]models.AttachmentInput, 0, len(rows))
	for _, a := range rows {
		out = append(out, models.AttachmentInput{
			Filename:    a.FileName,
			URL:         a.FileURL,
			ContentType: a.FileType,
			Size:        a.FileSize,
		})
	}
	return out
}
