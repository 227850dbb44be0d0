package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/Ananth-NQI/unibox-backend/internal/config"
	"github.com/Ananth-NQI/unibox-backend/internal/utils"
)

// messageCreator is the part of the Twilio REST client we use
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type TwilioService struct {
	api          messageCreator
	from         string // SMS sender number
	whatsappFrom string // WhatsApp sender, "whatsapp:+1..."
	logger       *slog.Logger
}

// NewTwilioService creates a new Twilio service instance
func NewTwilioService(cfg config.TwilioConfig, logger *slog.Logger) (*TwilioService, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("missing Twilio credentials in environment variables")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return newTwilioService(client.Api, cfg, logger), nil
}

func newTwilioService(api messageCreator, cfg config.TwilioConfig, logger *slog.Logger) *TwilioService {
	whatsappFrom := cfg.WhatsAppNumber
	if whatsappFrom == "" {
		whatsappFrom = cfg.PhoneNumber
	}
	return &TwilioService{
		api:          api,
		from:         cfg.PhoneNumber,
		whatsappFrom: utils.WhatsAppAddress(whatsappFrom),
		logger:       logger,
	}
}

// SMS returns the sender for plain SMS
func (t *TwilioService) SMS() ChannelSender {
	return twilioSender{svc: t}
}

// WhatsApp returns the sender for WhatsApp
func (t *TwilioService) WhatsApp() ChannelSender {
	return twilioSender{svc: t, whatsapp: true}
}

type twilioSender struct {
	svc      *TwilioService
	whatsapp bool
}

func (s twilioSender) Send(ctx context.Context, d Delivery) (string, error) {
	if s.whatsapp {
		return s.svc.sendMessage(ctx, s.svc.whatsappFrom, utils.WhatsAppAddress(d.To), d)
	}
	return s.svc.sendMessage(ctx, s.svc.from, d.To, d)
}

func (t *TwilioService) sendMessage(ctx context.Context, from, to string, d Delivery) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(from)
	params.SetTo(to)
	params.SetBody(d.Content)
	if len(d.Attachments) > 0 {
		urls := make([]string, 0, len(d.Attachments))
		for _, a := range d.Attachments {
			urls = append(urls, a.URL)
		}
		params.SetMediaUrl(urls)
	}

	resp, err := t.api.CreateMessage(params)
	if err != nil {
		t.logger.Error("twilio send failed", "to", to, "error", err)
		return "", fmt.Errorf("twilio: %w", err)
	}
	if resp == nil || resp.Sid == nil {
		return "", fmt.Errorf("twilio: response without message sid")
	}

	t.logger.Info("twilio message sent", "to", to, "sid", *resp.Sid)
	return *resp.Sid, nil
}
