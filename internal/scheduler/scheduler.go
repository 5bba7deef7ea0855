// Package scheduler wires up the cron jobs that periodically run aggregation and deactivate
// postings older than the retention window.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/storage"
)

const (
	DefaultRunSpec   = "@every 6h"
	DefaultSweepSpec = "@daily"
)

// Sweeper deactivates postings scraped before a cutoff.
type Sweeper interface {
	DeactivateStale(ctx context.Context, before time.Time) (int, error)
}

type Config struct {
	RunSpec   string
	SweepSpec string
	Retention time.Duration
	// SkipInitialRun disables the run fired right after Start.
	SkipInitialRun bool
}

// Scheduler wraps robfig/cron and manages the run loop.
type Scheduler struct {
	cron    *cron.Cron
	cfg     Config
	run     func(ctx context.Context) error
	sweeper Sweeper
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a Scheduler. run is called on every tick of RunSpec; sweeper may be nil when
// postings are not persisted.
func New(cfg Config, run func(ctx context.Context) error, sweeper Sweeper, log *zap.Logger) (*Scheduler, error) {
	if run == nil {
		return nil, errors.New("run function is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.RunSpec == "" {
		cfg.RunSpec = DefaultRunSpec
	}
	if cfg.SweepSpec == "" {
		cfg.SweepSpec = DefaultSweepSpec
	}

	cronLog := cronLogger{log.Named("cron").Sugar()}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
		cfg:     cfg,
		run:     run,
		sweeper: sweeper,
		logger:  log,
		now:     time.Now,
	}, nil
}

// Start registers the jobs and starts the scheduler. Unless disabled it also runs once right away
// so postings are collected without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.RunSpec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc %q: %w", s.cfg.RunSpec, err)
	}
	if s.sweeper != nil {
		if _, err := s.cron.AddFunc(s.cfg.SweepSpec, func() { s.sweep(ctx) }); err != nil {
			return fmt.Errorf("cron.AddFunc %q: %w", s.cfg.SweepSpec, err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("run_spec", s.cfg.RunSpec), zap.String("sweep_spec", s.cfg.SweepSpec))

	if !s.cfg.SkipInitialRun {
		go s.runOnce(ctx)
	}
	return nil
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Info("scheduled run started")
	if err := s.run(ctx); err != nil {
		s.logger.Error("scheduled run failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled run finished")
}

func (s *Scheduler) sweep(ctx context.Context) {
	before := storage.StaleBefore(s.now(), s.cfg.Retention)
	n, err := s.sweeper.DeactivateStale(ctx, before)
	if err != nil {
		s.logger.Error("retention sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("retention sweep finished", zap.Int("deactivated", n), zap.Time("before", before))
}

// cronLogger routes cron's own logs through zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
