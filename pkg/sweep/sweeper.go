// Package sweep periodically scans open corrective actions for passed due
// dates. Overdue is an annotation, not a state: the sweep never mutates
// actions, it only refreshes the overdue cache and counters that dashboards
// and notifiers read.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/fieldsafe/sentinel/pkg/contracts"
)

// Store is the read surface the sweeper needs.
type Store interface {
	ListOpenActions(ctx context.Context) ([]contracts.CorrectiveAction, error)
}

// Cache holds the current overdue set for cheap reads.
type Cache interface {
	// Replace swaps the cached overdue set.
	Replace(ctx context.Context, actionIDs []string) error
	// Overdue reports whether an action is in the cached set.
	Overdue(ctx context.Context, actionID string) (bool, error)
	// IDs returns the cached set.
	IDs(ctx context.Context) ([]string, error)
}

// Sweeper runs the periodic scan. It takes no engine locks: it reads a
// snapshot, so a close racing the sweep at worst leaves the action cached
// until the next pass.
type Sweeper struct {
	store    Store
	cache    Cache
	interval time.Duration
	logger   *slog.Logger
	clock    func() time.Time

	overdueGauge metric.Int64Gauge
	sweepCounter metric.Int64Counter
}

// New creates a Sweeper. Interval must be positive.
func New(store Store, cache Cache, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	meter := otel.Meter("sentinel/sweep")
	gauge, _ := meter.Int64Gauge("sweep.overdue_actions",
		metric.WithDescription("Open corrective actions past their due date"))
	counter, _ := meter.Int64Counter("sweep.runs",
		metric.WithDescription("Completed sweep passes"))
	return &Sweeper{
		store:        store,
		cache:        cache,
		interval:     interval,
		logger:       logger,
		clock:        time.Now,
		overdueGauge: gauge,
		sweepCounter: counter,
	}
}

// WithClock overrides the time source. Test hook.
func (s *Sweeper) WithClock(clock func() time.Time) *Sweeper {
	s.clock = clock
	return s
}

// Run sweeps on the configured interval until ctx is canceled. One pass
// runs immediately on start.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if _, err := s.SweepOnce(ctx); err != nil {
		s.logger.Error("sweep failed", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce performs one pass and returns the overdue count.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.clock()
	actions, err := s.store.ListOpenActions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open actions: %w", err)
	}

	var overdue []string
	for i := range actions {
		if actions[i].Overdue(now) {
			overdue = append(overdue, actions[i].ID)
		}
	}

	// Cache refresh is best-effort; a stale cache heals on the next pass.
	if err := s.cache.Replace(ctx, overdue); err != nil {
		s.logger.Warn("overdue cache refresh failed", "error", err)
	}

	s.overdueGauge.Record(ctx, int64(len(overdue)))
	s.sweepCounter.Add(ctx, 1)
	s.logger.Debug("sweep complete", "open", len(actions), "overdue", len(overdue))
	return len(overdue), nil
}
