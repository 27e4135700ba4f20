package reminder

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Scheduler runs reminders on a fixed interval inside the process.
type Scheduler struct {
	runner Runner
	logger *slog.Logger
}

// NewScheduler creates a new Scheduler
func NewScheduler(runner Runner, logger *slog.Logger) *Scheduler {
	return &Scheduler{runner: runner, logger: logger}
}

// RunOnce runs a single pass and logs its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	res, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Info("Reminder run skipped, another run holds the lock")
	case err != nil:
		s.logger.Error("Reminder run failed",
			"error", err,
			"due_soon_sent", res.DueSoonSent,
			"overdue_sent", res.OverdueSent)
	}
	return res, err
}

// Start runs immediately and then on every tick until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.logger.Info("Reminder scheduler started", "interval", interval.String())
	_, _ = s.RunOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reminder scheduler stopped")
			return
		case <-ticker.C:
			_, _ = s.RunOnce(ctx)
		}
	}
}
