package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// JobFunc is the function signature for scheduled jobs
type JobFunc func(ctx context.Context) error

// Config holds scheduler configuration
type Config struct {
	Interval       time.Duration
	Timezone       *time.Location
	RunImmediately bool
	Logger         *slog.Logger
}

// Scheduler runs the refresh job on a fixed interval via gocron.
type Scheduler struct {
	gocronScheduler gocron.Scheduler
	job             gocron.Job
	interval        time.Duration
	runImmediately  bool
	logger          *slog.Logger
}

// NewScheduler creates a scheduler running jobFunc every cfg.Interval.
func NewScheduler(ctx context.Context, cfg Config, jobFunc JobFunc) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	gocronScheduler, err := gocron.NewScheduler(gocron.WithLocation(cfg.Timezone))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	job, err := gocronScheduler.NewJob(
		gocron.DurationJob(cfg.Interval),
		gocron.NewTask(func() {
			if err := jobFunc(ctx); err != nil {
				cfg.Logger.Error("Job execution failed", "error", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduled job: %w", err)
	}

	return &Scheduler{
		gocronScheduler: gocronScheduler,
		job:             job,
		interval:        cfg.Interval,
		runImmediately:  cfg.RunImmediately,
		logger:          cfg.Logger,
	}, nil
}

// Start begins the scheduler, optionally firing the job once immediately.
func (s *Scheduler) Start() error {
	if s.runImmediately {
		s.logger.Info("Executing job immediately before starting scheduler")
		if err := s.job.RunNow(); err != nil {
			s.logger.Error("Immediate execution failed", "error", err)
			// Continue with scheduled execution anyway.
		}
	}

	s.gocronScheduler.Start()

	if nextRun, err := s.NextRun(); err == nil {
		s.logger.Info("Scheduler started",
			"interval", s.interval.String(),
			"next_run", nextRun.Format(time.RFC3339))
	} else {
		s.logger.Info("Scheduler started", "interval", s.interval.String())
	}
	return nil
}

// Stop stops the scheduler gracefully
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.gocronScheduler.Shutdown()
}

// NextRun returns the next scheduled run time
func (s *Scheduler) NextRun() (time.Time, error) {
	nextRun, err := s.job.NextRun()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get next run: %w", err)
	}
	return nextRun, nil
}

// LastRun returns the last run time
func (s *Scheduler) LastRun() (time.Time, error) {
	lastRun, err := s.job.LastRun()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last run: %w", err)
	}
	return lastRun, nil
}

// Interval returns the configured execution interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}
