package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
	"github.com/Ananth-NQI/unibox-backend/internal/storage"
	"github.com/Ananth-NQI/unibox-backend/internal/utils"
)

// ContactService resolves sender addresses to contacts and manages the contact book
type ContactService struct {
	store  storage.Store
	logger *slog.Logger
}

// NewContactService creates a new contact service
func NewContactService(store storage.Store, logger *slog.Logger) *ContactService {
	return &ContactService{store: store, logger: logger}
}

// ResolveOrCreate returns the contact owning address on channel, creating one
// with a provisional name when none exists. Concurrent calls for the same
// address always observe the same contact.
func (s *ContactService) ResolveOrCreate(ctx context.Context, address string, channel models.Channel) (*models.Contact, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, &ValidationError{Field: "address", Message: "is required"}
	}

	seed := &models.Contact{IsActive: true}
	switch channel {
	case models.ChannelEmail:
		address = strings.ToLower(address)
		seed.Email = &address
		seed.FirstName = provisionalName(utils.EmailDisplayName(address))
	case models.ChannelSMS:
		seed.Phone = &address
		seed.FirstName = provisionalName(utils.PhoneDisplayName(address))
	case models.ChannelWhatsApp:
		seed.WhatsAppNumber = &address
		seed.FirstName = provisionalName(utils.PhoneDisplayName(address))
	default:
		return nil, fmt.Errorf("resolve contact on %s: %w", channel, ErrUnsupportedChannel)
	}

	match, err := s.store.FindOrCreateContact(ctx, channel, address, seed)
	if err != nil {
		return nil, fmt.Errorf("resolve contact: %w", err)
	}
	if match.Candidates > 1 {
		s.logger.Warn("address matches several contacts, using oldest active",
			"channel", channel,
			"candidates", match.Candidates,
			"contact_id", match.Contact.ID)
	}
	if match.Created {
		s.logger.Info("created contact", "channel", channel, "contact_id", match.Contact.ID)
	}
	return match.Contact, nil
}

// provisionalName keeps the whole derived name in FirstName
func provisionalName(name string) *string {
	return &name
}

// ContactInput carries the writable contact fields. Nil fields are left unchanged on update.
type ContactInput struct {
	FirstName      *string                `json:"firstName"`
	LastName       *string                `json:"lastName"`
	Email          *string                `json:"email"`
	Phone          *string                `json:"phone"`
	WhatsAppNumber *string                `json:"whatsappNumber"`
	Tags           []string               `json:"tags"`
	CustomFields   map[string]interface{} `json:"customFields"`
}

// ContactList is one page of contacts
type ContactList struct {
	Contacts []*models.Contact `json:"contacts"`
	Total    int64             `json:"total"`
	HasMore  bool              `json:"hasMore"`
}

func (s *ContactService) Create(ctx context.Context, in ContactInput) (*models.Contact, error) {
	contact := &models.Contact{IsActive: true}
	if err := applyContactInput(contact, in); err != nil {
		return nil, err
	}
	if contact.Email == nil && contact.Phone == nil && contact.WhatsAppNumber == nil {
		return nil, &ValidationError{Message: "at least one of email, phone or whatsappNumber is required"}
	}
	if err := s.store.CreateContact(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *ContactService) Get(ctx context.Context, id string) (*models.Contact, error) {
	return s.store.GetContact(ctx, id)
}

// Update applies a partial update
func (s *ContactService) Update(ctx context.Context, id string, in ContactInput) (*models.Contact, error) {
	contact, err := s.store.GetContact(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyContactInput(contact, in); err != nil {
		return nil, err
	}
	if err := s.store.UpdateContact(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// Deactivate soft-deletes the contact; its conversations and messages remain
func (s *ContactService) Deactivate(ctx context.Context, id string) error {
	return s.store.DeactivateContact(ctx, id)
}

func (s *ContactService) List(ctx context.Context, filter models.ContactFilter) (*ContactList, error) {
	contacts, total, err := s.store.ListContacts(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ContactList{
		Contacts: contacts,
		Total:    total,
		HasMore:  int64(max(filter.Offset, 0)+len(contacts)) < total,
	}, nil
}

func applyContactInput(c *models.Contact, in ContactInput) error {
	if in.FirstName != nil {
		c.FirstName = trimmedOrNil(*in.FirstName)
	}
	if in.LastName != nil {
		c.LastName = trimmedOrNil(*in.LastName)
	}
	if in.Email != nil {
		c.Email = nil
		if raw := strings.TrimSpace(*in.Email); raw != "" {
			email, err := utils.NormalizeEmailAddress(raw)
			if err != nil {
				return &ValidationError{Field: "email", Message: "is not a valid address"}
			}
			c.Email = &email
		}
	}
	if in.Phone != nil {
		c.Phone = trimmedOrNil(*in.Phone)
	}
	if in.WhatsAppNumber != nil {
		c.WhatsAppNumber = trimmedOrNil(utils.StripWhatsAppPrefix(*in.WhatsAppNumber))
	}
	if in.Tags != nil {
		c.Tags = in.Tags
	}
	if in.CustomFields != nil {
		c.CustomFields = in.CustomFields
	}
	return nil
}

func trimmedOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
