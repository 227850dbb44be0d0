package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
)

// Mailbox lists and loads emails from the shared inbox
type Mailbox interface {
	FetchInbox(ctx context.Context, folder string) ([]InboxEmail, error)
	FetchContent(ctx context.Context, uid int64) (*InboxEmail, error)
}

// SyncResult reports one inbox sync
type SyncResult struct {
	ProcessedCount int               `json:"processedCount"`
	TotalEmails    int               `json:"totalEmails"`
	Messages       []*models.Message `json:"messages"`
}

// EmailSyncService pulls the shared mailbox into the inbox, for deployments
// where the mail provider cannot call the email webhook.
type EmailSyncService struct {
	mailbox Mailbox
	inbound *InboundService
	ledger  *MessageLedger
	logger  *slog.Logger
}

func NewEmailSyncService(mailbox Mailbox, inbound *InboundService, ledger *MessageLedger, logger *slog.Logger) *EmailSyncService {
	return &EmailSyncService{mailbox: mailbox, inbound: inbound, ledger: ledger, logger: logger}
}

// Sync imports every email in folder that is not stored yet. A single bad
// email is logged and skipped.
func (s *EmailSyncService) Sync(ctx context.Context, folder string) (*SyncResult, error) {
	if folder == "" {
		folder = "INBOX"
	}
	emails, err := s.mailbox.FetchInbox(ctx, folder)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{TotalEmails: len(emails), Messages: []*models.Message{}}
	for _, email := range emails {
		log := s.logger.With("uid", email.UID, "external_id", email.MessageID)

		existing, err := s.ledger.FindDuplicate(ctx, models.ChannelEmail, email.MessageID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			continue
		}

		if email.BodyText == bodyPlaceholder {
			full, err := s.mailbox.FetchContent(ctx, email.UID)
			if err != nil {
				log.Warn("could not fetch email body", "error", err)
				email.BodyText = ""
			} else {
				email.BodyText = full.BodyText
				email.BodyHTML = full.BodyHTML
			}
		}

		evt, err := NormalizeInboxEmail(email, time.Now())
		if err != nil {
			log.Warn("skipping email", "error", err)
			continue
		}
		res, err := s.inbound.Process(ctx, evt)
		if err != nil {
			log.Error("failed to import email", "error", err)
			continue
		}
		if !res.Duplicate {
			result.Messages = append(result.Messages, res.Message)
		}
	}
	result.ProcessedCount = len(result.Messages)
	s.logger.Info("email sync finished", "folder", folder, "processed", result.ProcessedCount, "total", result.TotalEmails)
	return result, nil
}
