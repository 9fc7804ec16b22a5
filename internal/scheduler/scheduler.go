// Package scheduler runs the service's periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ashureev/vish/internal/metrics"
)

const jobTimeout = 30 * time.Second

// Pruner removes archived transcripts older than a cutoff.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Connector re-establishes the knowledge service connection.
type Connector interface {
	Connect(ctx context.Context) bool
}

// Scheduler manages cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time
}

// NewScheduler creates an idle scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		logger: logger,
		now:    time.Now,
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Entries returns the number of scheduled jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// ScheduleRetention prunes transcripts older than retention on spec.
func (s *Scheduler) ScheduleRetention(spec string, p Pruner, retention time.Duration) error {
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		_, _ = s.PruneTranscripts(ctx, p, retention)
	}); err != nil {
		return fmt.Errorf("schedule transcript retention %q: %w", spec, err)
	}
	return nil
}

// ScheduleReconnect probes the knowledge service every interval. onChange
// receives the probe result.
func (s *Scheduler) ScheduleReconnect(interval time.Duration, c Connector, onChange func(bool)) error {
	if interval <= 0 {
		return fmt.Errorf("reconnect interval must be > 0")
	}
	if _, err := s.cron.AddFunc("@every "+interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		connected := c.Connect(ctx)
		if onChange != nil {
			onChange(connected)
		}
	}); err != nil {
		return fmt.Errorf("schedule reconnect: %w", err)
	}
	return nil
}

// PruneTranscripts runs one retention pass.
func (s *Scheduler) PruneTranscripts(ctx context.Context, p Pruner, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention)
	n, err := p.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("transcript retention failed", "call", "delete_older_than", "error", err)
		return 0, err
	}
	metrics.TranscriptsPruned.Add(float64(n))
	s.logger.Info("transcript retention complete", "removed", n, "cutoff", cutoff.UTC().Format(time.RFC3339))
	return n, nil
}
