package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Note is a team annotation on a contact
type Note struct {
	ID        string         `json:"id" gorm:"type:uuid;primaryKey"`
	ContactID string         `json:"contactId" gorm:"type:uuid;not null;index"`
	AuthorID  string         `json:"authorId" gorm:"not null;index"`
	Content   string         `json:"content" gorm:"type:text;not null"`
	IsPrivate bool           `json:"isPrivate" gorm:"not null"`
	Mentions  pq.StringArray `json:"mentions" gorm:"type:text[]"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (n *Note) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// NoteFilter lists the notes of one contact visible to a viewer
type NoteFilter struct {
	ContactID string
	ViewerID  string
	IsAdmin   bool
	Limit     int
	Offset    int
}
