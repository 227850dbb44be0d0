package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Message is one unit of communication within a conversation.
// A non-nil ExternalID is unique per channel; that constraint is what makes
// webhook retries harmless.
type Message struct {
	ID             string            `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID string            `json:"conversationId" gorm:"type:uuid;not null;index"`
	SenderID       *string           `json:"senderId"`
	Content        string            `json:"content" gorm:"type:text;not null"`
	Channel        Channel           `json:"channel" gorm:"type:varchar(20);not null;uniqueIndex:idx_messages_channel_external_id,where:external_id IS NOT NULL"`
	Direction      Direction         `json:"direction" gorm:"type:varchar(10);not null"`
	Status         MessageStatus     `json:"status" gorm:"type:varchar(10);not null;index:idx_messages_status_scheduled_for,priority:1"`
	ExternalID     *string           `json:"externalId" gorm:"uniqueIndex:idx_messages_channel_external_id"`
	ScheduledFor   *time.Time        `json:"scheduledFor" gorm:"index:idx_messages_status_scheduled_for,priority:2"`
	DeliveredAt    *time.Time        `json:"deliveredAt"`
	Metadata       datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	CreatedAt      time.Time         `json:"createdAt" gorm:"index"`
	UpdatedAt      time.Time         `json:"updatedAt"`

	Attachments []MessageAttachment `json:"attachments,omitempty" gorm:"foreignKey:MessageID"`
}

// BeforeCreate assigns a UUID
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// MessageAttachment is a file bound to a message. Immutable once written.
type MessageAttachment struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	MessageID string    `json:"messageId" gorm:"type:uuid;not null;index"`
	FileName  string    `json:"fileName" gorm:"not null"`
	FileURL   string    `json:"fileUrl" gorm:"type:text;not null"`
	FileType  string    `json:"fileType"`
	FileSize  int64     `json:"fileSize"`
	CreatedAt time.Time `json:"createdAt"`
}

// BeforeCreate assigns a UUID
func (a *MessageAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// AttachmentInput describes a file as providers and API callers hand it to us
type AttachmentInput struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// ToAttachments converts descriptors to attachment rows for messageID
func ToAttachments(messageID string, inputs []AttachmentInput) []MessageAttachment {
	if len(inputs) == 0 {
		return nil
	}
	out := make([]MessageAttachment, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, MessageAttachment{
			MessageID: messageID,
			FileName:  in.Filename,
			FileURL:   in.URL,
			FileType:  in.ContentType,
			FileSize:  in.Size,
		})
	}
	return out
}
