package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is the thread between one contact and the inbox over one channel.
// There is at most one conversation per (contact, channel).
type Conversation struct {
	ID            string             `json:"id" gorm:"type:uuid;primaryKey"`
	ContactID     string             `json:"contactId" gorm:"type:uuid;not null;uniqueIndex:idx_conversations_contact_channel"`
	Channel       Channel            `json:"channel" gorm:"type:varchar(20);not null;uniqueIndex:idx_conversations_contact_channel"`
	Status        ConversationStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	LastMessageAt time.Time          `json:"lastMessageAt" gorm:"not null;index"`
	UnreadCount   int                `json:"unreadCount" gorm:"not null;check:unread_count >= 0"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`

	Contact  *Contact  `json:"contact,omitempty" gorm:"foreignKey:ContactID"`
	Messages []Message `json:"messages,omitempty" gorm:"foreignKey:ConversationID"`
}

// BeforeCreate assigns a UUID and default status
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = ConversationStatusActive
	}
	return nil
}

// ConversationFilter narrows conversation listings
type ConversationFilter struct {
	Status  ConversationStatus
	Channel Channel
	Limit   int
	Offset  int
}
