package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/LibreCodeCoop/libresign-saas/internal/fleet"
	"github.com/LibreCodeCoop/libresign-saas/internal/metrics"
	"github.com/LibreCodeCoop/libresign-saas/internal/model"
	"github.com/LibreCodeCoop/libresign-saas/internal/monitor"
	"github.com/LibreCodeCoop/libresign-saas/internal/nextcloud"
	"github.com/LibreCodeCoop/libresign-saas/internal/platform"
)

// versionProbeTimeout bounds the status.php request.
const versionProbeTimeout = 10 * time.Second

// Monitor contains the periodic-sweep activities: metrics collection, the
// version probe and the end-to-end health check.
type Monitor struct {
	store      *Store
	remote     *Remote
	collector  *monitor.Collector
	aggregator *fleet.Aggregator
	http       *retryablehttp.Client
	logger     zerolog.Logger
}

// NewMonitor creates a new Monitor activity struct.
func NewMonitor(store *Store, remote *Remote, logger zerolog.Logger) *Monitor {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 2
	httpClient.Logger = nil
	httpClient.HTTPClient.Timeout = versionProbeTimeout

	return &Monitor{
		store:      store,
		remote:     remote,
		collector:  monitor.NewCollector(logger),
		aggregator: fleet.NewAggregator(store, logger),
		http:       httpClient,
		logger:     logger,
	}
}

// CollectResult summarizes one collection cycle for workflow logging.
type CollectResult struct {
	InstanceName string
	Users        int
	StoragePct   int
	Alerts       int
}

// CollectInstanceMetrics runs one full collection cycle for an instance:
// collect a snapshot, evaluate alerts, fold both into the instance record.
func (a *Monitor) CollectInstanceMetrics(ctx context.Context, instanceID string) (*CollectResult, error) {
	started := time.Now()

	inst, err := a.store.GetInstanceByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	client, err := a.remote.client(inst)
	if err != nil {
		return nil, remoteErr(nextcloud.OpTestConnection, err)
	}

	snapshot := a.collector.Collect(ctx, client, inst)
	alerts := monitor.EvaluateAlerts(snapshot)
	if err := a.aggregator.Update(ctx, inst, snapshot, alerts); err != nil {
		return nil, err
	}

	metrics.CollectionDuration.WithLabelValues(inst.Name).Observe(time.Since(started).Seconds())
	metrics.InstanceUsers.WithLabelValues(inst.Name).Set(float64(inst.CurrentUsers))
	warnings, criticals := 0, 0
	for _, al := range alerts {
		if al.Level == model.AlertCritical {
			criticals++
		} else {
			warnings++
		}
	}
	metrics.ActiveAlerts.WithLabelValues(inst.Name, model.AlertWarning).Set(float64(warnings))
	metrics.ActiveAlerts.WithLabelValues(inst.Name, model.AlertCritical).Set(float64(criticals))

	return &CollectResult{
		InstanceName: inst.Name,
		Users:        snapshot.Users.Total,
		StoragePct:   snapshot.Storage.UsagePct,
		Alerts:       len(alerts),
	}, nil
}

// ProbeInstanceVersion reads the public status.php endpoint and records the
// reported version string.
func (a *Monitor) ProbeInstanceVersion(ctx context.Context, instanceID string) (string, error) {
	inst, err := a.store.GetInstanceByID(ctx, instanceID)
	if err != nil {
		return "", err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", inst.URL+"/status.php", nil)
	if err != nil {
		return "", err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return "", &nextcloud.UnreachableError{Op: "status_probe", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("status.php returned %d", resp.StatusCode)
	}

	var status struct {
		Version       string `json:"version"`
		VersionString string `json:"versionstring"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", fmt.Errorf("decode status.php: %w", err)
	}
	version := status.VersionString
	if version == "" {
		version = status.Version
	}

	if err := a.store.UpdateInstanceVersion(ctx, UpdateInstanceVersionParams{
		InstanceID: instanceID,
		Version:    version,
	}); err != nil {
		return "", err
	}
	return version, nil
}

// HealthCheckStep is one step's outcome inside a health-check run.
type HealthCheckStep struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// HealthCheckResult is the persisted blob of one health-check run.
type HealthCheckResult struct {
	Healthy   bool                       `json:"healthy"`
	Steps     map[string]HealthCheckStep `json:"steps"`
	CheckedAt time.Time                  `json:"checked_at"`
}

// RunInstanceHealthCheck exercises the full account lifecycle against an
// instance with a throwaway user and group, then cleans up after itself.
// The run is recorded on the instance; an unhealthy result flips it into
// the error status so no new tenants land on it.
func (a *Monitor) RunInstanceHealthCheck(ctx context.Context, instanceID string) (*HealthCheckResult, error) {
	inst, err := a.store.GetInstanceByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	client, err := a.remote.client(inst)
	if err != nil {
		return nil, remoteErr(nextcloud.OpTestConnection, err)
	}

	result := &HealthCheckResult{
		Healthy:   true,
		Steps:     map[string]HealthCheckStep{},
		CheckedAt: time.Now().UTC(),
	}
	step := func(name string, err error) bool {
		if err != nil {
			result.Steps[name] = HealthCheckStep{Message: err.Error()}
			result.Healthy = false
			return false
		}
		result.Steps[name] = HealthCheckStep{Success: true}
		return true
	}

	probe := fmt.Sprintf("healthcheck_%d", result.CheckedAt.Unix())
	group := probe + "_grp"

	if step("connection", client.TestConnection(ctx)) {
		if step("create_user", client.CreateUser(ctx, probe, "Health Check", "", platform.NewPassword(24))) {
			users, err := client.ListUsers(ctx)
			if err == nil && !contains(users, probe) {
				err = fmt.Errorf("created user %s missing from listing", probe)
			}
			step("list_users", err)

			if step("create_group", client.CreateGroup(ctx, group)) {
				step("add_to_group", client.AddUserToGroup(ctx, probe, group))
				if err := client.DeleteGroup(ctx, group); err != nil {
					a.logger.Warn().Str("instance", inst.Name).Err(err).Msg("health check group cleanup failed")
				}
			}
			if err := client.DeleteUser(ctx, probe); err != nil {
				a.logger.Warn().Str("instance", inst.Name).Err(err).Msg("health check user cleanup failed")
			}
		}
	}

	blob, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	if err := a.store.RecordHealthCheck(ctx, RecordHealthCheckParams{
		InstanceID: instanceID,
		Results:    blob,
		Healthy:    result.Healthy,
		CheckedAt:  result.CheckedAt,
	}); err != nil {
		return nil, err
	}
	return result, nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
