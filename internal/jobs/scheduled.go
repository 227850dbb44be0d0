package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Ananth-NQI/unibox-backend/internal/services"
)

// BatchRunner processes one batch of due scheduled messages
type BatchRunner interface {
	ProcessDue(ctx context.Context) (*services.ProcessResult, error)
}

// ScheduledSendJob triggers the scheduled-send processor on a cron spec
type ScheduledSendJob struct {
	runner  BatchRunner
	cron    *cron.Cron
	timeout time.Duration
	logger  *slog.Logger
}

// NewScheduledSendJob creates the job; the timeout bounds one batch
func NewScheduledSendJob(runner BatchRunner, timeout time.Duration, logger *slog.Logger) *ScheduledSendJob {
	return &ScheduledSendJob{
		runner:  runner,
		cron:    cron.New(),
		timeout: timeout,
		logger:  logger,
	}
}

// Start registers the spec and begins running
func (j *ScheduledSendJob) Start(spec string) error {
	if _, err := j.cron.AddFunc(spec, j.RunOnce); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info("scheduled send job started", "spec", spec)
	return nil
}

// Stop halts the schedule and waits for a running batch to finish
func (j *ScheduledSendJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("scheduled send job stopped")
}

// RunOnce processes one batch. Another replica holding the batch lock is not an error.
func (j *ScheduledSendJob) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.runner.ProcessDue(ctx)
	switch {
	case errors.Is(err, services.ErrBatchInProgress):
		j.logger.Info("scheduled batch skipped, another run holds the lock")
	case err != nil:
		j.logger.Error("scheduled batch failed", "error", err)
	case result.ProcessedCount > 0:
		j.logger.Info("scheduled batch processed", "count", result.ProcessedCount)
	}
}
