package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/Ananth-NQI/unibox-backend/internal/config"
	"github.com/Ananth-NQI/unibox-backend/internal/logger"
	"github.com/Ananth-NQI/unibox-backend/internal/models"
)

type fakeCreator struct {
	params []*twilioApi.CreateMessageParams
	sid    string
	err    error
}

func (f *fakeCreator) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	sid := f.sid
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioSMSSender(t *testing.T) {
	api := &fakeCreator{sid: "SM-abc"}
	svc := newTwilioService(api, config.TwilioConfig{PhoneNumber: "+15550000001", WhatsAppNumber: "whatsapp:+14155238886"}, logger.Discard())

	sid, err := svc.SMS().Send(context.Background(), Delivery{
		To:          "+15551234567",
		Content:     "hello",
		Attachments: []models.AttachmentInput{{URL: "https://m/1.jpg"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "SM-abc", sid)

	require.Len(t, api.params, 1)
	p := api.params[0]
	assert.Equal(t, "+15550000001", *p.From)
	assert.Equal(t, "+15551234567", *p.To)
	assert.Equal(t, "hello", *p.Body)
	assert.Equal(t, []string{"https://m/1.jpg"}, *p.MediaUrl)
}

func TestTwilioWhatsAppSender(t *testing.T) {
	api := &fakeCreator{sid: "SM-wa"}
	svc := newTwilioService(api, config.TwilioConfig{PhoneNumber: "+15550000001", WhatsAppNumber: "+14155238886"}, logger.Discard())

	_, err := svc.WhatsApp().Send(context.Background(), Delivery{To: "15551234567", Content: "hola"})
	require.NoError(t, err)

	p := api.params[0]
	assert.Equal(t, "whatsapp:+14155238886", *p.From)
	assert.Equal(t, "whatsapp:+15551234567", *p.To)
	assert.Nil(t, p.MediaUrl)
}

func TestTwilioSendError(t *testing.T) {
	api := &fakeCreator{err: errors.New("ApiError 21211: invalid To")}
	svc := newTwilioService(api, config.TwilioConfig{PhoneNumber: "+15550000001"}, logger.Discard())

	_, err := svc.SMS().Send(context.Background(), Delivery{To: "bad", Content: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "21211")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.SMS().Send(ctx, Delivery{To: "+1", Content: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, api.params, 1)
}

func TestNewTwilioServiceRequiresCredentials(t *testing.T) {
	_, err := NewTwilioService(config.TwilioConfig{AccountSID: "AC1"}, logger.Discard())
	assert.Error(t, err)
}
