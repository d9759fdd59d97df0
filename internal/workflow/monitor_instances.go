package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/LibreCodeCoop/libresign-saas/internal/activity"
)

// MonitorInstancesWorkflow runs every five minutes and collects metrics for
// every active instance. Collections run in parallel and are isolated from
// each other: one slow or unreachable instance neither stalls nor fails the
// sweep.
func MonitorInstancesWorkflow(ctx workflow.Context) error {
	logger := workflow.GetLogger(ctx)

	var ids []string
	err := workflow.ExecuteActivity(storeCtx(ctx), "ListActiveInstanceIDs").Get(ctx, &ids)
	if err != nil {
		return err
	}

	collectCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    2,
			InitialInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
		},
	})

	futures := make([]workflow.Future, len(ids))
	for i, id := range ids {
		futures[i] = workflow.ExecuteActivity(collectCtx, "CollectInstanceMetrics", id)
	}

	failed := 0
	for i, future := range futures {
		var result activity.CollectResult
		if err := future.Get(ctx, &result); err != nil {
			logger.Error("instance metrics collection failed", "instance_id", ids[i], "error", err)
			failed++
			continue
		}
		if result.Alerts > 0 {
			logger.Warn("instance has active alerts",
				"instance", result.InstanceName,
				"alerts", result.Alerts,
				"storage_pct", result.StoragePct)
		}
	}

	logger.Info("instance sweep finished", "instances", len(ids), "failed", failed)
	return nil
}

// InstanceHealthCheckWorkflow runs the end-to-end health check and the
// version probe against one instance.
func InstanceHealthCheckWorkflow(ctx workflow.Context, instanceID string) error {
	logger := workflow.GetLogger(ctx)

	checkCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 2,
			InitialInterval: 30 * time.Second,
		},
	})

	// The version probe is informational; its failure does not mark the
	// instance unhealthy.
	var version string
	if err := workflow.ExecuteActivity(checkCtx, "ProbeInstanceVersion", instanceID).Get(ctx, &version); err != nil {
		logger.Warn("version probe failed", "instance_id", instanceID, "error", err)
	}

	var result activity.HealthCheckResult
	if err := workflow.ExecuteActivity(checkCtx, "RunInstanceHealthCheck", instanceID).Get(ctx, &result); err != nil {
		return err
	}
	if !result.Healthy {
		logger.Error("instance health check failed", "instance_id", instanceID)
	}
	return nil
}

// HealthCheckAllInstancesWorkflow fans the health check out over the fleet.
func HealthCheckAllInstancesWorkflow(ctx workflow.Context) error {
	logger := workflow.GetLogger(ctx)

	var ids []string
	err := workflow.ExecuteActivity(storeCtx(ctx), "ListActiveInstanceIDs").Get(ctx, &ids)
	if err != nil {
		return err
	}

	for _, id := range ids {
		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: "health-check-" + id,
		})
		if err := workflow.ExecuteChildWorkflow(childCtx, InstanceHealthCheckWorkflow, id).Get(ctx, nil); err != nil {
			logger.Error("instance health check workflow failed", "instance_id", id, "error", err)
		}
	}
	return nil
}

// PurgeLoginTokensWorkflow deletes single-use login tokens older than a day.
func PurgeLoginTokensWorkflow(ctx workflow.Context) error {
	var deleted int64
	err := workflow.ExecuteActivity(storeCtx(ctx), "PurgeLoginTokens").Get(ctx, &deleted)
	if err != nil {
		return err
	}
	workflow.GetLogger(ctx).Info("login token purge finished", "deleted", deleted)
	return nil
}
