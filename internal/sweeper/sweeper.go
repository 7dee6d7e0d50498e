// Package sweeper periodically removes clients that have been inactive for
// longer than the retention period.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ClientSweeper removes clients inactive for longer than retention.
type ClientSweeper interface {
	Sweep(ctx context.Context, retention time.Duration) (int64, error)
}

// Config controls the sweep schedule.
type Config struct {
	Interval  time.Duration
	Retention time.Duration
	Logger    *slog.Logger
}

// Sweeper runs ClientSweeper on a fixed interval.
type Sweeper struct {
	target    ClientSweeper
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// New creates a Sweeper. It does nothing until Start is called.
func New(target ClientSweeper, cfg Config) *Sweeper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		target:    target,
		interval:  cfg.Interval,
		retention: cfg.Retention,
		logger:    logger.With("component", "sweeper"),
		// overlapping sweeps would race on the same rows
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start schedules the sweep every Interval. Jobs receive ctx.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("sweeper already running")
	}
	if s.interval <= 0 {
		return fmt.Errorf("invalid sweep interval %s", s.interval)
	}

	schedule := "@every " + s.interval.String()
	if _, err := s.cron.AddFunc(schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("sweeper started",
		"interval", s.interval.String(),
		"retention", s.retention.String(),
	)
	return nil
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	return s.target.Sweep(ctx, s.retention)
}

func (s *Sweeper) run(ctx context.Context) {
	removed, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("sweep completed", "removed", removed)
	} else {
		s.logger.Debug("sweep completed, nothing to remove")
	}
}

// Stop halts the schedule and waits for a running sweep, or for ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the schedule is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled sweep, or nil when not scheduled.
func (s *Sweeper) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
