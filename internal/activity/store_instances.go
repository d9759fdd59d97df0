package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.temporal.io/sdk/temporal"

	"github.com/LibreCodeCoop/libresign-saas/internal/model"
	"github.com/LibreCodeCoop/libresign-saas/internal/registry"
)

const instanceColumns = `id, name, url, version, management_method,
	ssh_host, ssh_port, ssh_user, ssh_private_key, docker_container_name,
	api_username, api_password,
	status, max_users, current_users, active_users,
	storage_used, storage_allocated, cpu_usage, memory_usage, disk_io, network_throughput,
	storage_growth, user_activity, response_times, alerts,
	health_check_results, last_health_check, notes, created_at, updated_at`

func scanInstance(row pgx.Row) (*model.Instance, error) {
	var i model.Instance
	err := row.Scan(&i.ID, &i.Name, &i.URL, &i.Version, &i.ManagementMethod,
		&i.SSHHost, &i.SSHPort, &i.SSHUser, &i.SSHPrivateKey, &i.DockerContainerName,
		&i.APIUsername, &i.APIPassword,
		&i.Status, &i.MaxUsers, &i.CurrentUsers, &i.ActiveUsers,
		&i.StorageUsed, &i.StorageAllocated, &i.CPUUsage, &i.MemoryUsage, &i.DiskIO, &i.NetThroughput,
		&i.StorageGrowth, &i.UserActivity, &i.ResponseTimes, &i.Alerts,
		&i.HealthCheckResults, &i.LastHealthCheck, &i.Notes, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// GetInstanceByID retrieves an instance by its ID.
func (a *Store) GetInstanceByID(ctx context.Context, id string) (*model.Instance, error) {
	inst, err := scanInstance(a.db.QueryRow(ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get instance by id: %w", err)
	}
	return inst, nil
}

func (a *Store) listInstances(ctx context.Context, query string, args ...any) ([]model.Instance, error) {
	rows, err := a.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []model.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, *inst)
	}
	return instances, rows.Err()
}

// ListInstances returns every instance, for fleet rollups.
func (a *Store) ListInstances(ctx context.Context) ([]model.Instance, error) {
	instances, err := a.listInstances(ctx,
		`SELECT `+instanceColumns+` FROM instances ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	return instances, nil
}

// ListActiveInstances returns active instances in creation order, which
// keeps registry tie-breaking deterministic.
func (a *Store) ListActiveInstances(ctx context.Context) ([]model.Instance, error) {
	instances, err := a.listInstances(ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE status = $1 ORDER BY created_at`,
		model.InstanceActive)
	if err != nil {
		return nil, fmt.Errorf("list active instances: %w", err)
	}
	return instances, nil
}

// ListActiveInstanceIDs returns the ids of active instances, for periodic
// sweeps that fan out one activity per instance.
func (a *Store) ListActiveInstanceIDs(ctx context.Context) ([]string, error) {
	rows, err := a.db.Query(ctx,
		`SELECT id FROM instances WHERE status = $1 ORDER BY created_at`, model.InstanceActive)
	if err != nil {
		return nil, fmt.Errorf("list active instance ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TryReserve atomically takes one seat on the instance. The condition in the
// UPDATE closes the select-then-increment race: the statement succeeds only
// while a seat is actually free.
func (a *Store) TryReserve(ctx context.Context, instanceID string) (bool, error) {
	tag, err := a.db.Exec(ctx,
		`UPDATE instances SET current_users = current_users + 1, updated_at = now()
		 WHERE id = $1 AND status = $2 AND current_users < max_users`,
		instanceID, model.InstanceActive)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Release gives a seat back, clamped at zero so the counter never goes
// negative.
func (a *Store) Release(ctx context.Context, instanceID string) error {
	_, err := a.db.Exec(ctx,
		`UPDATE instances SET current_users = GREATEST(current_users - 1, 0), updated_at = now()
		 WHERE id = $1`, instanceID)
	return err
}

// AcquireInstance selects the least-occupied available instance and reserves
// one seat on it. A full fleet is a fatal provisioning precondition, so it
// surfaces as a non-retryable error rather than burning the retry budget.
func (a *Store) AcquireInstance(ctx context.Context) (*model.Instance, error) {
	inst, err := a.registry.Acquire(ctx)
	if errors.Is(err, registry.ErrNoCapacity) {
		return nil, temporal.NewNonRetryableApplicationError("no instance available", "NoCapacity", err)
	}
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// ReleaseInstance is the activity-facing wrapper around Release.
func (a *Store) ReleaseInstance(ctx context.Context, instanceID string) error {
	return a.registry.Release(ctx, instanceID)
}

// UpdateInstanceMetrics persists the gauge, history and alert fields of an
// instance. Identity, credentials and status columns are deliberately not
// part of this statement. current_users is written only when syncUsers is
// set: a stale count would overwrite seats TryReserve took in the meantime,
// so callers pass true only when the count came from a live user listing.
func (a *Store) UpdateInstanceMetrics(ctx context.Context, inst *model.Instance, syncUsers bool) error {
	_, err := a.db.Exec(ctx,
		`UPDATE instances
		 SET current_users = CASE WHEN $2::bool THEN $1 ELSE current_users END,
		     active_users = $3,
		     storage_used = $4, storage_allocated = $5,
		     cpu_usage = $6, memory_usage = $7, disk_io = $8, network_throughput = $9,
		     storage_growth = $10, user_activity = $11, response_times = $12, alerts = $13,
		     updated_at = now()
		 WHERE id = $14`,
		inst.CurrentUsers, syncUsers, inst.ActiveUsers,
		inst.StorageUsed, inst.StorageAllocated,
		inst.CPUUsage, inst.MemoryUsage, inst.DiskIO, inst.NetThroughput,
		jsonOrEmpty(inst.StorageGrowth), jsonOrEmpty(inst.UserActivity),
		jsonOrEmpty(inst.ResponseTimes), jsonOrEmpty(inst.Alerts),
		inst.ID)
	if err != nil {
		return fmt.Errorf("update instance metrics: %w", err)
	}
	return nil
}

// UpdateInstanceVersionParams holds the parameters for UpdateInstanceVersion.
type UpdateInstanceVersionParams struct {
	InstanceID string
	Version    string
}

// UpdateInstanceVersion records the version string probed from status.php.
func (a *Store) UpdateInstanceVersion(ctx context.Context, params UpdateInstanceVersionParams) error {
	_, err := a.db.Exec(ctx,
		`UPDATE instances SET version = $1, updated_at = now() WHERE id = $2`,
		params.Version, params.InstanceID)
	return err
}

// RecordHealthCheckParams holds the parameters for RecordHealthCheck.
type RecordHealthCheckParams struct {
	InstanceID string
	Results    json.RawMessage
	Healthy    bool
	CheckedAt  time.Time
}

// RecordHealthCheck stores the result blob of a health-check run. An
// unhealthy run also flips the instance into the error status so the
// registry stops placing tenants on it; a healthy run restores it.
func (a *Store) RecordHealthCheck(ctx context.Context, params RecordHealthCheckParams) error {
	status := model.InstanceActive
	if !params.Healthy {
		status = model.InstanceError
	}
	_, err := a.db.Exec(ctx,
		`UPDATE instances
		 SET health_check_results = $1, last_health_check = $2, status = $3, updated_at = now()
		 WHERE id = $4 AND status IN ($5, $6)`,
		params.Results, params.CheckedAt, status,
		params.InstanceID, model.InstanceActive, model.InstanceError)
	return err
}

func jsonOrEmpty(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return json.RawMessage("[]")
	}
	return b
}
