package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/digitaltwin/internal/types"
)

// UserLister enumerates the users whose reports are kept warm.
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Refresher regenerates one user's report.
type Refresher interface {
	Refresh(ctx context.Context, userID string) (*types.DigitalTwinCurveOutput, error)
}

// RefreshObserver records per-user refresh results. *metrics.Metrics
// satisfies it.
type RefreshObserver interface {
	ObserveRefresh(ok bool)
}

// RefreshWorker periodically regenerates every user's curve report so the
// cache and archive track new check-ins.
type RefreshWorker struct {
	users     UserLister
	refresher Refresher
	observer  RefreshObserver
	interval  time.Duration
}

// NewRefreshWorker creates a worker with the given user source, refresher and
// interval. observer may be nil.
func NewRefreshWorker(users UserLister, refresher Refresher, observer RefreshObserver, interval time.Duration) *RefreshWorker {
	return &RefreshWorker{
		users:     users,
		refresher: refresher,
		observer:  observer,
		interval:  interval,
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
// Does NOT run immediately on start; reports are generated on demand until
// the first tick.
func (w *RefreshWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "curve-refresh",
		"interval", w.interval.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "curve-refresh",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.runRefresh(ctx)
		}
	}
}

// runRefresh executes a single refresh cycle.
func (w *RefreshWorker) runRefresh(ctx context.Context) {
	start := time.Now()

	ids, err := w.users.ListUserIDs(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("refresh failed",
			"component", "worker",
			"action", "refresh_list_failed",
			"error", err,
		)
		return
	}

	var refreshed, failed int
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.refresher.Refresh(ctx, id); err != nil {
			if ctx.Err() != nil {
				return
			}
			failed++
			w.observe(false)
			slog.Warn("user refresh failed",
				"component", "worker",
				"action", "refresh_user_failed",
				"user_id", id,
				"error_kind", types.KindOf(err).String(),
				"error", err,
			)
			continue
		}
		refreshed++
		w.observe(true)
	}

	slog.Info("refresh cycle completed",
		"component", "worker",
		"action", "refresh_complete",
		"refreshed", refreshed,
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (w *RefreshWorker) observe(ok bool) {
	if w.observer != nil {
		w.observer.ObserveRefresh(ok)
	}
}
