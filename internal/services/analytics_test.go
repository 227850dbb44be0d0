package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
)

func TestAnalyticsTotals(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	day1 := time.Date(2024, 8, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	for _, in := range []struct {
		day time.Time
		ch  models.Channel
		dir models.Direction
	}{
		{day1, models.ChannelSMS, models.DirectionInbound},
		{day1, models.ChannelSMS, models.DirectionOutbound},
		{day2, models.ChannelSMS, models.DirectionInbound},
		{day2, models.ChannelEmail, models.DirectionOutbound},
	} {
		require.NoError(t, env.store.IncrementDailyMetrics(ctx, in.day, in.ch, in.dir))
	}

	svc := NewAnalyticsService(env.store)
	report, err := svc.Metrics(ctx, models.MetricsFilter{From: day1, To: day2})
	require.NoError(t, err)
	assert.Len(t, report.Daily, 3)
	assert.Equal(t, int64(2), report.Totals[models.ChannelSMS].MessagesReceived)
	assert.Equal(t, int64(1), report.Totals[models.ChannelSMS].MessagesSent)
	assert.Equal(t, int64(1), report.Totals[models.ChannelEmail].MessagesSent)

	report, err = svc.Metrics(ctx, models.MetricsFilter{From: day2, To: day2, Channel: models.ChannelEmail})
	require.NoError(t, err)
	assert.Len(t, report.Daily, 1)

	_, err = svc.Metrics(ctx, models.MetricsFilter{From: day2, To: day1})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
