// Package schedule triggers runs on a fixed interval.
package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/IshaanNene/StockGoat/internal/types"
)

// Starter starts a run. *engine.Engine satisfies it.
type Starter interface {
	Start(names []string) (string, error)
}

// Scheduler calls Start every interval. A tick that lands while a run is active
// is skipped.
type Scheduler struct {
	starter      Starter
	interval     time.Duration
	distributors []string
	tick         func(time.Duration) (<-chan time.Time, func())
	logger       *slog.Logger
}

// New creates a scheduler. An empty distributors list runs every enabled distributor.
func New(starter Starter, interval time.Duration, distributors []string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		starter:      starter,
		interval:     interval,
		distributors: distributors,
		tick: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
		logger: logger.With("component", "scheduler"),
	}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticks, stop := s.tick(s.interval)
	defer stop()

	s.logger.Info("scheduler started", "interval", s.interval, "distributors", s.distributors)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticks:
			s.Trigger()
		}
	}
}

// Trigger attempts one run and reports whether it started.
func (s *Scheduler) Trigger() bool {
	runID, err := s.starter.Start(s.distributors)
	switch {
	case errors.Is(err, types.ErrRunInProgress):
		s.logger.Info("scheduled run skipped, previous run still active")
		return false
	case err != nil:
		s.logger.Error("scheduled run failed to start", "error", err)
		return false
	}
	s.logger.Info("scheduled run started", "run_id", runID)
	return true
}
