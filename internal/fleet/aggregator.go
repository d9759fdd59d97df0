// Package fleet owns instance gauge and history updates and the cross-fleet
// dashboard rollups built from them.
package fleet

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/LibreCodeCoop/libresign-saas/internal/model"
)

// InstanceStore is the persistence surface the aggregator needs. Metric
// updates write only the gauge/history/alert fields so they never clobber
// concurrent edits to credentials or status.
type InstanceStore interface {
	ListInstances(ctx context.Context) ([]model.Instance, error)
	// UpdateInstanceMetrics persists the instance's gauge, history, and
	// alert fields. current_users is written only when syncUsers is set;
	// otherwise the stored count, which provisioning increments
	// concurrently, is left untouched.
	UpdateInstanceMetrics(ctx context.Context, inst *model.Instance, syncUsers bool) error
}

// Aggregator is the single owner of instance gauge mutation. Collection
// cycles hand it a snapshot plus the evaluated alerts; nothing else writes
// those fields.
type Aggregator struct {
	store  InstanceStore
	logger zerolog.Logger
	now    func() time.Time
}

func NewAggregator(store InstanceStore, logger zerolog.Logger) *Aggregator {
	return &Aggregator{store: store, logger: logger, now: time.Now}
}

// Update folds one snapshot into the instance record: live gauges are
// overwritten, one point is appended to each bounded history series, and the
// alert list is replaced wholesale.
func (a *Aggregator) Update(ctx context.Context, inst *model.Instance, snapshot model.MetricsSnapshot, alerts []model.Alert) error {
	ts := a.now().UTC()

	inst.StorageUsed = snapshot.Storage.Used
	if snapshot.Storage.Total > 0 {
		inst.StorageAllocated = snapshot.Storage.Total
	}
	// Only a live user listing may overwrite current_users. A fallback
	// count is a copy of what the row already held when collection began,
	// and writing it back would erase seats reserved since then.
	if snapshot.Users.Live {
		inst.CurrentUsers = snapshot.Users.Total
	}
	inst.ActiveUsers = snapshot.Users.Active
	inst.CPUUsage = snapshot.System.CPUUsage
	inst.MemoryUsage = snapshot.System.MemoryUsage
	inst.DiskIO = snapshot.System.DiskIO
	inst.NetThroughput = snapshot.System.NetThroughput

	inst.StorageGrowth = appendBounded(inst.StorageGrowth, model.StoragePoint{
		Timestamp: ts,
		Value:     float64(snapshot.Storage.Used),
	})
	inst.UserActivity = appendBounded(inst.UserActivity, model.ActivityPoint{
		Timestamp: ts,
		Total:     snapshot.Users.Total,
		Active:    snapshot.Users.Active,
	})
	// ResponseTimes is fed by a different probe; Update only enforces its
	// bound when something else has grown it.
	if len(inst.ResponseTimes) > historyLimit {
		inst.ResponseTimes = inst.ResponseTimes[len(inst.ResponseTimes)-historyLimit:]
	}

	inst.Alerts = alerts
	inst.UpdatedAt = ts

	if err := a.store.UpdateInstanceMetrics(ctx, inst, snapshot.Users.Live); err != nil {
		return err
	}

	a.logger.Debug().
		Str("instance", inst.Name).
		Int("users", inst.CurrentUsers).
		Int("alerts", len(alerts)).
		Msg("instance metrics updated")
	return nil
}

// RecordResponseTime appends one response-time measurement, in milliseconds,
// to the instance's bounded series and persists it.
func (a *Aggregator) RecordResponseTime(ctx context.Context, inst *model.Instance, ms float64) error {
	inst.ResponseTimes = appendBounded(inst.ResponseTimes, model.StoragePoint{
		Timestamp: a.now().UTC(),
		Value:     ms,
	})
	return a.store.UpdateInstanceMetrics(ctx, inst, false)
}
