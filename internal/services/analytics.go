package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
	"github.com/Ananth-NQI/unibox-backend/internal/storage"
)

// ChannelTotals sums daily rows for one channel
type ChannelTotals struct {
	MessagesSent     int64 `json:"messagesSent"`
	MessagesReceived int64 `json:"messagesReceived"`
}

// MetricsReport is the analytics response
type MetricsReport struct {
	From   time.Time                         `json:"from"`
	To     time.Time                         `json:"to"`
	Daily  []*models.DailyMetrics            `json:"daily"`
	Totals map[models.Channel]*ChannelTotals `json:"totals"`
}

type AnalyticsService struct {
	store storage.Store
}

func NewAnalyticsService(store storage.Store) *AnalyticsService {
	return &AnalyticsService{store: store}
}

// Metrics returns daily counters in [from, to], both inclusive days
func (s *AnalyticsService) Metrics(ctx context.Context, filter models.MetricsFilter) (*MetricsReport, error) {
	if filter.Channel != "" && !filter.Channel.Valid() {
		return nil, &ValidationError{Field: "channel", Message: fmt.Sprintf("unknown channel %q", filter.Channel)}
	}
	if filter.To.IsZero() {
		filter.To = time.Now()
	}
	if filter.From.IsZero() {
		filter.From = filter.To.AddDate(0, 0, -29)
	}
	if filter.From.After(filter.To) {
		return nil, &ValidationError{Field: "from", Message: "must not be after to"}
	}

	rows, err := s.store.ListDailyMetrics(ctx, filter)
	if err != nil {
		return nil, err
	}
	report := &MetricsReport{
		From:   models.DayOf(filter.From),
		To:     models.DayOf(filter.To),
		Daily:  rows,
		Totals: map[models.Channel]*ChannelTotals{},
	}
	for _, row := range rows {
		t, ok := report.Totals[row.Channel]
		if !ok {
			t = &ChannelTotals{}
			report.Totals[row.Channel] = t
		}
		t.MessagesSent += row.MessagesSent
		t.MessagesReceived += row.MessagesReceived
	}
	return report, nil
}
