package workflow

import (
	"fmt"

	"go.temporal.io/sdk/workflow"

	"github.com/LibreCodeCoop/libresign-saas/internal/activity"
	"github.com/LibreCodeCoop/libresign-saas/internal/model"
	"github.com/LibreCodeCoop/libresign-saas/internal/plan"
)

// SyncTenantQuotaWorkflow re-applies the tenant's plan quota on the remote
// account, typically after a plan change.
func SyncTenantQuotaWorkflow(ctx workflow.Context, tenantID string) error {
	var tenant model.Tenant
	err := workflow.ExecuteActivity(storeCtx(ctx), "GetTenantByID", tenantID).Get(ctx, &tenant)
	if err != nil {
		return err
	}
	if !tenant.Provisioned() {
		return fmt.Errorf("tenant %s has no remote account", tenantID)
	}

	var instance model.Instance
	err = workflow.ExecuteActivity(storeCtx(ctx), "GetInstanceByID", *tenant.InstanceID).Get(ctx, &instance)
	if err != nil {
		return err
	}

	var tenantPlan *model.Plan
	if err := workflow.ExecuteActivity(storeCtx(ctx), "GetPlanBySlug", tenant.PlanType).Get(ctx, &tenantPlan); err != nil {
		return err
	}

	return workflow.ExecuteActivity(remoteCtx(ctx), "SetRemoteQuota", activity.SetRemoteQuotaParams{
		Instance: instance,
		UserID:   *tenant.RemoteUserID,
		Quota:    plan.QuotaString(tenantPlan),
	}).Get(ctx, nil)
}

// SyncTenantMetricsWorkflow reads usage from the tenant's remote account and
// writes it onto the tenant record.
func SyncTenantMetricsWorkflow(ctx workflow.Context, tenantID string) error {
	var tenant model.Tenant
	err := workflow.ExecuteActivity(storeCtx(ctx), "GetTenantByID", tenantID).Get(ctx, &tenant)
	if err != nil {
		return err
	}
	if !tenant.Provisioned() {
		return nil
	}

	var instance model.Instance
	err = workflow.ExecuteActivity(storeCtx(ctx), "GetInstanceByID", *tenant.InstanceID).Get(ctx, &instance)
	if err != nil {
		return err
	}

	var usage activity.RemoteUserUsage
	err = workflow.ExecuteActivity(syncCtx(ctx), "GetRemoteUserUsage", activity.RemoteUserParams{
		Instance: instance,
		UserID:   *tenant.RemoteUserID,
	}).Get(ctx, &usage)
	if err != nil {
		return err
	}

	return workflow.ExecuteActivity(storeCtx(ctx), "UpdateTenantUsage", activity.UpdateTenantUsageParams{
		TenantID:          tenantID,
		StorageUsedBytes:  usage.StorageUsedBytes,
		StorageQuotaBytes: usage.StorageQuotaBytes,
		FileCount:         tenant.FileCount,
		LastLoginAt:       usage.LastLoginAt,
	}).Get(ctx, nil)
}

// SyncAllTenantMetricsWorkflow is the daily sweep over every provisioned
// tenant. Each tenant syncs in its own child workflow so one broken account
// or unreachable instance cannot stall the rest.
func SyncAllTenantMetricsWorkflow(ctx workflow.Context) error {
	logger := workflow.GetLogger(ctx)

	var ids []string
	err := workflow.ExecuteActivity(storeCtx(ctx), "ListProvisionedTenantIDs").Get(ctx, &ids)
	if err != nil {
		return err
	}

	failed := 0
	for _, id := range ids {
		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: "sync-tenant-metrics-" + id,
		})
		if err := workflow.ExecuteChildWorkflow(childCtx, SyncTenantMetricsWorkflow, id).Get(ctx, nil); err != nil {
			logger.Error("tenant metrics sync failed", "tenant_id", id, "error", err)
			failed++
		}
	}

	logger.Info("tenant metrics sweep finished", "tenants", len(ids), "failed", failed)
	return nil
}
