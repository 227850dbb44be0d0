package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/Ananth-NQI/unibox-backend/internal/config"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends email through Amazon SES v2
type SESSender struct {
	client sesAPI
	from   string
	logger *slog.Logger
}

func NewSESSender(awsCfg aws.Config, cfg config.EmailConfig, logger *slog.Logger) *SESSender {
	return newSESSender(sesv2.NewFromConfig(awsCfg), cfg, logger)
}

func newSESSender(client sesAPI, cfg config.EmailConfig, logger *slog.Logger) *SESSender {
	from := (&mail.Address{Name: cfg.SenderName, Address: cfg.FromAddress}).String()
	return &SESSender{client: client, from: from, logger: logger}
}

func (s *SESSender) Send(ctx context.Context, d Delivery) (string, error) {
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{d.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(emailSubject(d.Subject)), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(renderEmailHTML(d.Content, d.Attachments)), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(d.Content), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ses send: %w", err)
	}
	id := aws.ToString(out.MessageId)
	s.logger.Info("email sent via ses", "to", d.To, "external_id", id)
	return id, nil
}
