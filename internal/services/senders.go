package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
)

// Delivery is one outbound message addressed to a single recipient
type Delivery struct {
	To          string
	Content     string
	Subject     string
	Attachments []models.AttachmentInput
}

// ChannelSender hands a delivery to a provider and returns the provider's message id
type ChannelSender interface {
	Send(ctx context.Context, d Delivery) (string, error)
}

// SenderRegistry maps channels to their configured senders
type SenderRegistry struct {
	mu      sync.RWMutex
	senders map[models.Channel]ChannelSender
}

func NewSenderRegistry() *SenderRegistry {
	return &SenderRegistry{senders: map[models.Channel]ChannelSender{}}
}

// Register sets the sender for channel, replacing any previous one
func (r *SenderRegistry) Register(channel models.Channel, sender ChannelSender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[channel] = sender
}

func (r *SenderRegistry) Lookup(channel models.Channel) (ChannelSender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[channel]
	return s, ok
}

// Deliver sends d on channel. A sender panic is returned as an error.
func (r *SenderRegistry) Deliver(ctx context.Context, channel models.Channel, d Delivery) (externalID string, err error) {
	sender, ok := r.Lookup(channel)
	if !ok {
		return "", fmt.Errorf("%s: %w", channel, ErrSenderNotConfigured)
	}
	defer func() {
		if rec := recover(); rec != nil {
			externalID = ""
			err = fmt.Errorf("%s sender panicked: %v", channel, rec)
		}
	}()
	return sender.Send(ctx, d)
}

// RecipientAddress picks the contact address used on channel
func RecipientAddress(contact *models.Contact, channel models.Channel) (string, error) {
	switch channel {
	case models.ChannelSMS:
		if v := deref(contact.Phone); v != "" {
			return v, nil
		}
		return "", ErrNoPhoneNumber
	case models.ChannelWhatsApp:
		if v := deref(contact.WhatsAppNumber); v != "" {
			return v, nil
		}
		if v := deref(contact.Phone); v != "" {
			return v, nil
		}
		return "", ErrNoWhatsAppNumber
	case models.ChannelEmail:
		if v := deref(contact.Email); v != "" {
			return v, nil
		}
		return "", ErrNoEmailAddress
	}
	return "", fmt.Errorf("%s: %w", channel, ErrUnsupportedChannel)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
