package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/LibreCodeCoop/libresign-saas/internal/activity"
	"github.com/LibreCodeCoop/libresign-saas/internal/model"
)

// DeprovisionTenantWorkflow removes a tenant's remote account and gives its
// seat back to the instance. Remote cleanup is best-effort: a remote account
// that is already gone must not block releasing the seat and unlinking the
// tenant.
func DeprovisionTenantWorkflow(ctx workflow.Context, tenantID string) error {
	logger := workflow.GetLogger(ctx)

	var tenant model.Tenant
	err := workflow.ExecuteActivity(storeCtx(ctx), "GetTenantByID", tenantID).Get(ctx, &tenant)
	if err != nil {
		return err
	}
	if !tenant.Provisioned() {
		logger.Info("tenant has no remote account, nothing to deprovision", "tenant_id", tenantID)
		return nil
	}

	var instance model.Instance
	err = workflow.ExecuteActivity(storeCtx(ctx), "GetInstanceByID", *tenant.InstanceID).Get(ctx, &instance)
	if err != nil {
		return err
	}

	// Best-effort remote cleanup: account first, then the personal group.
	err = workflow.ExecuteActivity(remoteCtx(ctx), "DeleteRemoteUser", activity.RemoteUserParams{
		Instance: instance,
		UserID:   *tenant.RemoteUserID,
	}).Get(ctx, nil)
	if err != nil {
		logger.Warn("delete remote user failed", "tenant_id", tenantID, "error", err)
	}
	err = workflow.ExecuteActivity(remoteCtx(ctx), "DeleteRemoteGroup", activity.RemoteGroupParams{
		Instance: instance,
		GroupID:  tenant.Email,
	}).Get(ctx, nil)
	if err != nil {
		logger.Warn("delete tenant group failed", "tenant_id", tenantID, "error", err)
	}

	if err := workflow.ExecuteActivity(storeCtx(ctx), "ReleaseInstance", instance.ID).Get(ctx, nil); err != nil {
		return err
	}
	return workflow.ExecuteActivity(storeCtx(ctx), "ClearTenantLink", tenantID).Get(ctx, nil)
}
