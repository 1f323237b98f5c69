// Package jobs runs the daily batch work.
package jobs

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Job is one named unit of scheduled work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler triggers jobs once a day at a UTC wall-clock time.
type Scheduler struct {
	jobs    []Job
	dailyAt string
	logger  *zap.Logger
	tick    time.Duration
}

// NewScheduler constructs a Scheduler. dailyAt uses the "15:04" layout.
func NewScheduler(dailyAt string, logger *zap.Logger, jobs ...Job) (*Scheduler, error) {
	if _, _, err := parseDailyAt(dailyAt); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{jobs: jobs, dailyAt: dailyAt, logger: logger, tick: time.Minute}, nil
}

// Start begins the scheduler loop and blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || len(s.jobs) == 0 {
		return
	}
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now.UTC()) {
				continue
			}
			_ = s.RunOnce(ctx)
		}
	}
}

// RunOnce runs every job in order. A failed job does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, job := range s.jobs {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		started := time.Now()
		err := job.Run(ctx)
		if err != nil {
			s.logger.Error("scheduled job failed", zap.String("job", job.Name), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		s.logger.Info("scheduled job done", zap.String("job", job.Name), zap.Duration("took", time.Since(started)))
	}
	return errors.Join(errs...)
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
