package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/Ananth-NQI/unibox-backend/internal/config"
)

// SMTPSender sends email through a plain SMTP relay
type SMTPSender struct {
	client   *mail.Client
	fromName string
	from     string
	logger   *slog.Logger
}

func NewSMTPSender(cfg config.EmailConfig, logger *slog.Logger) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.SMTP.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.SMTP.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTP.Username),
			mail.WithPassword(cfg.SMTP.Password),
		)
	}
	client, err := mail.NewClient(cfg.SMTP.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{client: client, fromName: cfg.SenderName, from: cfg.FromAddress, logger: logger}, nil
}

func (s *SMTPSender) Send(ctx context.Context, d Delivery) (string, error) {
	msg, err := s.buildMessage(d)
	if err != nil {
		return "", err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	id := messageID(msg)
	s.logger.Info("email sent via smtp", "to", d.To, "external_id", id)
	return id, nil
}

func (s *SMTPSender) buildMessage(d Delivery) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.from); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(d.To); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(emailSubject(d.Subject))
	msg.SetMessageID()
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextHTML, renderEmailHTML(d.Content, d.Attachments))
	msg.AddAlternativeString(mail.TypeTextPlain, d.Content)
	return msg, nil
}

func messageID(msg *mail.Msg) string {
	ids := msg.GetGenHeader(mail.HeaderMessageID)
	if len(ids) == 0 {
		return ""
	}
	return strings.Trim(ids[0], "<>")
}
