// Package jobs runs the daemon's periodic maintenance work on cron
// schedules: backend status polling, snapshot refreshing, and stale
// snapshot cleanup.
package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/audiolink/wavebridge/pkg/format"
)

// Scheduler runs named jobs on 6-field cron schedules (with seconds).
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler creates a job scheduler. Panicking jobs are recovered
// and logged rather than taking the daemon down.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cron.DefaultLogger)),
	)
	return &Scheduler{cron: c, logger: logger}
}

// Add registers a job under name with the given cron spec. Job errors
// are logged, not propagated; a periodic job failing once is routine.
func (s *Scheduler) Add(name, spec string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := job(context.Background()); err != nil {
			s.logger.Warn("periodic job failed",
				slog.String("job", name),
				slog.Any("error", err),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling job %q with spec %q: %w", name, spec, err)
	}
	s.logger.Debug("periodic job scheduled",
		slog.String("job", name),
		slog.String("schedule", format.CronDescription(spec)),
	)
	return nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
