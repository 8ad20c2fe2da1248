package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/pm-monitor/internal/monitor"
)

const (
	defaultInterval = time.Hour
	defaultTimeout  = 5 * time.Minute
)

// Runner executes one monitoring cycle.
type Runner interface {
	Run(ctx context.Context) (monitor.Report, error)
}

// Config selects when runs happen. A non-empty Cron overrides Interval.
type Config struct {
	Interval time.Duration
	Cron     string
	Timeout  time.Duration
}

// Scheduler periodically runs the monitor.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	cfg       Config
	logger    *slog.Logger
}

// New creates a new Scheduler.
func New(cfg Config, runner Runner, logger *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := gocron.NewScheduler(time.UTC)
	// Never overlap runs; the history file has a single writer.
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		cfg:       cfg,
		logger:    logger.With("component", "scheduler"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// Interval jobs run once immediately; cron jobs wait for their first match.
func (s *Scheduler) Start() error {
	var err error
	if s.cfg.Cron != "" {
		_, err = s.scheduler.Cron(s.cfg.Cron).Do(s.runOnce)
	} else {
		_, err = s.scheduler.Every(s.cfg.Interval).Do(s.runOnce)
	}
	if err != nil {
		return err
	}

	s.logger.Info("scheduler started", "interval", s.cfg.Interval.String(), "cron", s.cfg.Cron)
	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) runOnce() {
	s.logger.Info("running monitor job")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	report, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("monitor job failed", "error", err)
		return
	}
	s.logger.Info("completed monitor job", "run", report.RunID.String(), "failed_documents", report.Failed())
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
