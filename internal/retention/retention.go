// Package retention purges alert history older than the configured
// retention period on a cron schedule.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/river-wqi-etl/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

const purgeTimeout = time.Minute

// Purger deletes alert records raised before a cutoff.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler runs the retention purge on a standard five-field cron schedule
// or a descriptor such as "@daily".
type Scheduler struct {
	cron      *cron.Cron
	purger    Purger
	retention time.Duration
	clock     clockwork.Clock
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewScheduler validates the schedule and prepares the purge job. The job
// does not run until Start.
func NewScheduler(purger Purger, retention time.Duration, schedule string, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) (*Scheduler, error) {
	if retention <= 0 {
		return nil, errors.New("retention must be positive")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &Scheduler{
		cron:      cron.New(),
		purger:    purger,
		retention: retention,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("parse purge schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.logger.Info("alert retention scheduled", "retention", s.retention)
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running purge until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// PurgeOnce deletes every record raised more than the retention period ago.
func (s *Scheduler) PurgeOnce(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().UTC().Add(-s.retention)
	n, err := s.purger.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge alerts before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	s.metrics.AlertsPurged.Add(float64(n))
	s.logger.Info("alert history purged", "cutoff", cutoff, "deleted", n)
	return n, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()

	if _, err := s.PurgeOnce(ctx); err != nil {
		s.logger.Error("scheduled alert purge failed", "error", err)
	}
}
