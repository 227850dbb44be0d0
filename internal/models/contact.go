package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Contact is a person or organization reachable on one or more channels.
// Contacts are soft-deleted by clearing IsActive so message history stays attributable.
type Contact struct {
	ID             string            `json:"id" gorm:"type:uuid;primaryKey"`
	FirstName      *string           `json:"firstName"`
	LastName       *string           `json:"lastName"`
	Email          *string           `json:"email" gorm:"uniqueIndex:idx_contacts_email,where:email IS NOT NULL"`
	Phone          *string           `json:"phone" gorm:"uniqueIndex:idx_contacts_phone,where:phone IS NOT NULL"`
	WhatsAppNumber *string           `json:"whatsappNumber" gorm:"column:whatsapp_number;uniqueIndex:idx_contacts_whatsapp_number,where:whatsapp_number IS NOT NULL"`
	Tags           pq.StringArray    `json:"tags" gorm:"type:text[]"`
	CustomFields   datatypes.JSONMap `json:"customFields" gorm:"type:jsonb"`
	IsActive       bool              `json:"isActive" gorm:"not null;index"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller has not set one
func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// DisplayName joins the name parts, falling back to the first known address
func (c *Contact) DisplayName() string {
	var parts []string
	if c.FirstName != nil && *c.FirstName != "" {
		parts = append(parts, *c.FirstName)
	}
	if c.LastName != nil && *c.LastName != "" {
		parts = append(parts, *c.LastName)
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	for _, addr := range []*string{c.Email, c.Phone, c.WhatsAppNumber} {
		if addr != nil && *addr != "" {
			return *addr
		}
	}
	return c.ID
}

// ContactFilter narrows contact listings
type ContactFilter struct {
	Search string
	Tags   []string
	Limit  int
	Offset int
}
