package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DailyMetrics counts messages per calendar day (UTC) and channel.
// Rows are only ever changed by additive upserts.
type DailyMetrics struct {
	ID               string    `json:"id" gorm:"type:uuid;primaryKey"`
	Date             time.Time `json:"date" gorm:"type:date;not null;uniqueIndex:idx_daily_metrics_date_channel"`
	Channel          Channel   `json:"channel" gorm:"type:varchar(20);not null;uniqueIndex:idx_daily_metrics_date_channel"`
	MessagesSent     int64     `json:"messagesSent" gorm:"not null"`
	MessagesReceived int64     `json:"messagesReceived" gorm:"not null"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a UUID
func (d *DailyMetrics) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// DayOf truncates t to its UTC calendar date
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MetricsFilter selects a date range, optionally for one channel
type MetricsFilter struct {
	From    time.Time
	To      time.Time
	Channel Channel
}
