package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/LibreCodeCoop/libresign-saas/internal/activity"
	"github.com/LibreCodeCoop/libresign-saas/internal/model"
	"github.com/LibreCodeCoop/libresign-saas/internal/plan"
	"github.com/LibreCodeCoop/libresign-saas/internal/platform"
)

// ProvisionTenantWorkflow creates a tenant's remote account on the least
// occupied active instance and links it to the tenant record.
//
// Steps fall into two classes. Fatal steps (instance selection, remote user
// creation) abort the workflow and leave the tenant in the failed status
// with the error message captured verbatim. Advisory steps (quota, groups,
// welcome email) are logged and skipped on failure; the account stays
// usable and an operator can fix them later.
//
// The remote user id derives deterministically from the tenant email, so a
// retried run addresses the same remote account. Remote creation itself is
// not idempotent: if a previous attempt created the account but failed to
// persist the link, the retry fails on re-create and the orphaned remote
// account needs operator reconciliation.
func ProvisionTenantWorkflow(ctx workflow.Context, tenantID string) error {
	logger := workflow.GetLogger(ctx)

	// Mark the tenant creating; also clears any error from an earlier run.
	err := workflow.ExecuteActivity(storeCtx(ctx), "UpdateTenantStatus", activity.UpdateTenantStatusParams{
		ID:     tenantID,
		Status: model.TenantCreating,
	}).Get(ctx, nil)
	if err != nil {
		return err
	}

	var tenant model.Tenant
	err = workflow.ExecuteActivity(storeCtx(ctx), "GetTenantByID", tenantID).Get(ctx, &tenant)
	if err != nil {
		_ = setTenantFailed(ctx, tenantID, err)
		return err
	}

	// Select and reserve a seat on an instance. No capacity is fatal.
	var instance model.Instance
	err = workflow.ExecuteActivity(storeCtx(ctx), "AcquireInstance").Get(ctx, &instance)
	if err != nil {
		_ = setTenantFailed(ctx, tenantID, err)
		return err
	}
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if err := workflow.ExecuteActivity(storeCtx(ctx), "ReleaseInstance", instance.ID).Get(ctx, nil); err != nil {
			logger.Error("release reserved seat failed", "instance_id", instance.ID, "error", err)
		}
	}

	remoteUserID := platform.RemoteUserID(tenant.Email)

	// The password never derives from user input and never touches the
	// tenant record; the welcome email flow hands control of it to the
	// user.
	var password string
	if err := workflow.SideEffect(ctx, func(workflow.Context) interface{} {
		return platform.NewPassword(20)
	}).Get(&password); err != nil {
		release()
		_ = setTenantFailed(ctx, tenantID, err)
		return err
	}

	// Create the remote account. Fatal on failure.
	err = workflow.ExecuteActivity(remoteCtx(ctx), "CreateRemoteUser", activity.CreateRemoteUserParams{
		Instance:    instance,
		UserID:      remoteUserID,
		DisplayName: tenant.Name,
		Email:       tenant.Email,
		Password:    password,
	}).Get(ctx, nil)
	if err != nil {
		release()
		_ = setTenantFailed(ctx, tenantID, err)
		return err
	}

	// Resolve the plan quota; an unresolvable plan falls back to the
	// default quota rather than failing the account.
	var tenantPlan *model.Plan
	if err := workflow.ExecuteActivity(storeCtx(ctx), "GetPlanBySlug", tenant.PlanType).Get(ctx, &tenantPlan); err != nil {
		logger.Warn("plan lookup failed, using default quota", "plan", tenant.PlanType, "error", err)
	}
	quota := plan.QuotaString(tenantPlan)

	// Advisory: quota can be fixed later.
	err = workflow.ExecuteActivity(remoteCtx(ctx), "SetRemoteQuota", activity.SetRemoteQuotaParams{
		Instance: instance,
		UserID:   remoteUserID,
		Quota:    quota,
	}).Get(ctx, nil)
	if err != nil {
		logger.Warn("set quota failed", "tenant_id", tenantID, "quota", quota, "error", err)
	}

	// Advisory: personal group, named after the tenant email.
	err = workflow.ExecuteActivity(remoteCtx(ctx), "CreateRemoteGroup", activity.RemoteGroupParams{
		Instance: instance,
		GroupID:  tenant.Email,
	}).Get(ctx, nil)
	if err != nil {
		logger.Warn("create tenant group failed", "tenant_id", tenantID, "error", err)
	} else {
		err = workflow.ExecuteActivity(remoteCtx(ctx), "AddUserToRemoteGroup", activity.GroupMemberParams{
			Instance: instance,
			UserID:   remoteUserID,
			GroupID:  tenant.Email,
		}).Get(ctx, nil)
		if err != nil {
			logger.Warn("add to tenant group failed", "tenant_id", tenantID, "error", err)
		}
	}

	// Advisory: fleet-wide default group.
	err = workflow.ExecuteActivity(remoteCtx(ctx), "AddUserToDefaultGroup", activity.RemoteUserParams{
		Instance: instance,
		UserID:   remoteUserID,
	}).Get(ctx, nil)
	if err != nil {
		logger.Warn("add to default group failed", "tenant_id", tenantID, "error", err)
	}

	// Advisory: welcome email.
	err = workflow.ExecuteActivity(remoteCtx(ctx), "SendWelcomeEmail", activity.RemoteUserParams{
		Instance: instance,
		UserID:   remoteUserID,
	}).Get(ctx, nil)
	if err != nil {
		logger.Warn("welcome email failed", "tenant_id", tenantID, "error", err)
	}

	// Link the remote account and mark the tenant active in one write.
	err = workflow.ExecuteActivity(storeCtx(ctx), "RecordProvisioned", activity.RecordProvisionedParams{
		TenantID:     tenantID,
		InstanceID:   instance.ID,
		RemoteUserID: remoteUserID,
		PlatformURL:  instance.URL,
	}).Get(ctx, nil)
	if err != nil {
		// The remote account exists but the link was not persisted; keep
		// the seat reserved since the account occupies it.
		_ = setTenantFailed(ctx, tenantID, err)
		return err
	}

	logger.Info("tenant provisioned",
		"tenant_id", tenantID,
		"instance", instance.Name,
		"remote_user_id", remoteUserID)
	return nil
}
